package importer

import (
	"context"
	"fmt"

	"warehouse-service/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Catalog разрешает коды во внутренние идентификаторы и отдаёт текущие остатки.
type Catalog interface {
	UpsertProduct(ctx context.Context, p ProductRecord) (uuid.UUID, error)
	// ResolveLocation: пустой код даёт staging-локацию по умолчанию; отсутствующие создаются.
	ResolveLocation(ctx context.Context, code string) (uuid.UUID, error)
	CurrentStock(ctx context.Context, productID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
}

// Adjuster: единственный путь записи остатков для импорта. AdjustTo сам считает дельту
// под блокировкой ячейки, так что отбор между CurrentStock и записью не сбивает итог.
type Adjuster interface {
	AdjustTo(ctx context.Context, productID, locationID uuid.UUID, target decimal.Decimal, reason string) (service.StockLevel, error)
}

type Options struct {
	DryRun bool
}

type ProductFailure struct {
	SKU  string
	Code service.Code
	Err  string
}

type Summary struct {
	Rows        int
	Products    int
	Adjustments int
	Cleanups    int
	Failed      []ProductFailure
	DryRun      bool
}

type Importer struct {
	catalog Catalog
	adj     Adjuster
	log     *zap.Logger
}

func New(catalog Catalog, adj Adjuster, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{catalog: catalog, adj: adj, log: log}
}

// Run сходит к целевым остаткам товар за товаром. Отказ ядра по одному товару
// записывается в Summary.Failed и не останавливает прогон; ошибки хранилища прерывают его.
func (im *Importer) Run(ctx context.Context, batch *Batch, opt Options) (Summary, error) {
	sum := Summary{Rows: batch.Rows, DryRun: opt.DryRun}
	im.log.Info("Импорт остатков", zap.Int("rows", batch.Rows), zap.Int("skus", len(batch.Items)), zap.Bool("dry_run", opt.DryRun))

	if opt.DryRun {
		sum.Products = len(batch.Items)
		im.log.Info("Dry run: запись в БД не выполнялась")
		return sum, nil
	}

	for _, it := range batch.Items {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		adjusted, cleaned, err := im.importItem(ctx, it)
		sum.Adjustments += adjusted
		sum.Cleanups += cleaned
		if err != nil {
			if !service.IsLedgerError(err) {
				return sum, fmt.Errorf("import sku %s: %w", it.Product.SKU, err)
			}
			im.log.Warn("Товар не сведён", zap.String("sku", it.Product.SKU), zap.Error(err))
			sum.Failed = append(sum.Failed, ProductFailure{SKU: it.Product.SKU, Code: service.GetCode(err), Err: err.Error()})
			continue
		}
		sum.Products++
	}

	im.log.Info("Импорт завершён",
		zap.Int("products", sum.Products),
		zap.Int("adjustments", sum.Adjustments),
		zap.Int("cleanups", sum.Cleanups),
		zap.Int("failed", len(sum.Failed)),
	)
	return sum, nil
}

func (im *Importer) importItem(ctx context.Context, it *Item) (int, int, error) {
	productID, err := im.catalog.UpsertProduct(ctx, it.Product)
	if err != nil {
		return 0, 0, err
	}

	desired := make(map[uuid.UUID]decimal.Decimal, len(it.Locations))
	for _, code := range it.Locations {
		locID, err := im.catalog.ResolveLocation(ctx, code)
		if err != nil {
			return 0, 0, err
		}
		desired[locID] = desired[locID].Add(it.Quantities[code])
	}

	// current только выбирает ячейки для записи; дельта пересчитывается в AdjustTo
	current, err := im.catalog.CurrentStock(ctx, productID)
	if err != nil {
		return 0, 0, err
	}

	var adjusted, cleaned int
	for _, a := range Plan(current, desired) {
		if _, err := im.adj.AdjustTo(ctx, productID, a.LocationID, a.Target, a.Reason); err != nil {
			return adjusted, cleaned, err
		}
		if a.Reason == ReasonCleanup {
			cleaned++
		} else {
			adjusted++
		}
	}
	return adjusted, cleaned, nil
}
