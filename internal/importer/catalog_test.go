package importer_test

import (
	"context"
	"testing"

	"warehouse-service/internal/importer"
	"warehouse-service/internal/migrate"
	"warehouse-service/internal/models"
	"warehouse-service/internal/repository"
	"warehouse-service/internal/service"
	"warehouse-service/pkg/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// pickAfterRead: отбор со склада успевает пройти между чтением остатков и записью импорта.
type pickAfterRead struct {
	importer.Catalog
	pick func(productID uuid.UUID)
}

func (c *pickAfterRead) CurrentStock(ctx context.Context, productID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	out, err := c.Catalog.CurrentStock(ctx, productID)
	if err == nil && c.pick != nil {
		c.pick(productID)
	}
	return out, err
}

func TestRepoCatalog_ConvergesThroughAdjust(t *testing.T) {
	db := testutil.SetupTestPostgres(t)
	if err := migrate.MigrateWarehouseDB(context.Background(), db, zap.NewNop(), migrate.DefaultMigrateOptions()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	repo := repository.New(db)
	ctx := context.Background()

	inv := service.NewInventoryService(repo, zap.NewNop())
	im := importer.New(importer.NewRepoCatalog(repo, "DEFAULT", "STAGING"), inv, zap.NewNop())

	text := "sku,name,type,category,quantity,location\n" +
		"H-1,Hose,HOSE,Hoses,5,A-01\n" +
		"H-1,Hose,HOSE,Hoses,2,\n"

	sum, err := im.Run(ctx, parse(t, text), importer.Options{})
	if err != nil {
		t.Fatalf("Run #1: %v", err)
	}
	if sum.Adjustments != 2 || len(sum.Failed) != 0 {
		t.Fatalf("unexpected summary %+v", sum)
	}

	staging, err := repo.Locations.GetByCode(ctx, "STAGING")
	if err != nil || staging == nil {
		t.Fatalf("staging location not created: %v", err)
	}
	wh, _ := repo.Warehouses.GetByCode(ctx, "DEFAULT")
	if wh == nil || staging.WarehouseID == nil || *staging.WarehouseID != wh.ID {
		t.Fatalf("staging should belong to DEFAULT warehouse, got %+v", staging)
	}

	p, _ := repo.Products.GetBySKU(ctx, "H-1")
	if p == nil || p.CategoryID == nil {
		t.Fatalf("expected product with category, got %+v", p)
	}

	adj := models.MovementAdjustment
	_, before, _ := inv.ListMovements(ctx, service.MovementFilter{ProductID: &p.ID, Type: &adj})

	sum, err = im.Run(ctx, parse(t, text), importer.Options{})
	if err != nil {
		t.Fatalf("Run #2: %v", err)
	}
	_, after, _ := inv.ListMovements(ctx, service.MovementFilter{ProductID: &p.ID, Type: &adj})
	if sum.Adjustments != 0 || after != before {
		t.Fatalf("second run must not adjust, got %d adjustments, movements %d -> %d", sum.Adjustments, before, after)
	}

	stock, _ := inv.ListStockByProduct(ctx, p.ID)
	total := decimal.Zero
	for _, s := range stock {
		total = total.Add(s.Level.Quantity)
	}
	if !total.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("expected 7 units across slots, got %s", total)
	}
}

func TestRepoCatalog_PickBetweenReadAndWrite(t *testing.T) {
	db := testutil.SetupTestPostgres(t)
	if err := migrate.MigrateWarehouseDB(context.Background(), db, zap.NewNop(), migrate.DefaultMigrateOptions()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	repo := repository.New(db)
	ctx := context.Background()
	inv := service.NewInventoryService(repo, zap.NewNop())
	header := "sku,name,type,quantity,location\n"

	if _, err := importer.New(importer.NewRepoCatalog(repo, "DEFAULT", "STAGING"), inv, zap.NewNop()).
		Run(ctx, parse(t, header+"H-2,Hose,HOSE,8,A-01\n"), importer.Options{}); err != nil {
		t.Fatalf("Run #1: %v", err)
	}
	loc, _ := repo.Locations.GetByCode(ctx, "A-01")
	if loc == nil {
		t.Fatal("A-01 not created")
	}

	cat := &pickAfterRead{Catalog: importer.NewRepoCatalog(repo, "DEFAULT", "STAGING")}
	cat.pick = func(productID uuid.UUID) {
		cat.pick = nil
		if _, err := inv.Pick(ctx, productID, loc.ID, decimal.NewFromInt(2), "SO-1", service.PickMeta{}); err != nil {
			t.Fatalf("Pick: %v", err)
		}
	}
	sum, err := importer.New(cat, inv, zap.NewNop()).
		Run(ctx, parse(t, header+"H-2,Hose,HOSE,5,A-01\n"), importer.Options{})
	if err != nil || len(sum.Failed) != 0 {
		t.Fatalf("Run #2: %+v %v", sum, err)
	}

	p, _ := repo.Products.GetBySKU(ctx, "H-2")
	level, err := inv.GetStock(ctx, p.ID, loc.ID)
	if err != nil {
		t.Fatalf("GetStock: %v", err)
	}
	// снимок видел 8, отбор оставил 6; файл требует 5
	if !level.Quantity.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected slot at file target 5, got %s", level.Quantity)
	}
	adj := models.MovementAdjustment
	list, _, _ := inv.ListMovements(ctx, service.MovementFilter{ProductID: &p.ID, LocationID: &loc.ID, Type: &adj})
	if len(list) != 2 {
		t.Fatalf("expected two adjustments, got %d", len(list))
	}
	var last models.InventoryMovement
	for _, m := range list {
		if m.Quantity.IsNegative() {
			last = m
		}
	}
	if !last.Quantity.Equal(decimal.NewFromInt(-1)) {
		t.Fatalf("expected -1 adjustment computed under lock, got %s", last.Quantity)
	}
}
