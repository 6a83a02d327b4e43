package service

import (
	"context"
	"strings"

	"warehouse-service/internal/models"
	"warehouse-service/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type inventoryService struct {
	repo *repository.Repository
	ledgerHooks
}

func NewInventoryService(repo *repository.Repository, log *zap.Logger, opts ...Option) *inventoryService {
	return &inventoryService{
		repo:        repo,
		ledgerHooks: newHooks(log, opts),
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func requireSlot(productID, locationID uuid.UUID) error {
	if productID == uuid.Nil {
		return ErrProductRequired
	}
	if locationID == uuid.Nil {
		return ErrLocationRequired
	}
	return nil
}

// slotChange описывает одну мутацию ячейки: как пересчитать счётчики и какую запись добавить в журнал.
type slotChange struct {
	op       string
	key      repository.SlotKey
	lazy     bool // создать пустую ячейку, если её нет
	apply    func(inv *models.Inventory) (StockLevel, error)
	movement models.InventoryMovement
	// targeted: количество движения считается под блокировкой как разница quantity;
	// нулевая разница ничего не пишет
	targeted bool
}

// mutate: чтение ячейки под блокировкой, запись счётчиков и вставка движения в одной транзакции.
func (s *inventoryService) mutate(ctx context.Context, c slotChange) (StockLevel, error) {
	var (
		level   StockLevel
		rec     models.InventoryMovement
		changed bool
	)
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		changed = false
		if c.lazy {
			if err := tx.Inventory.EnsureSlot(ctx, c.key); err != nil {
				return err
			}
		}
		inv, err := tx.Inventory.GetForUpdate(ctx, c.key)
		if err != nil {
			return err
		}
		var prev StockLevel
		if inv != nil {
			prev = levelOf(inv)
		}
		next, err := c.apply(inv)
		if err != nil {
			return err
		}
		// запись пересобирается на каждой попытке: после отката ID от прошлой попытки недействителен
		rec = c.movement
		if c.targeted {
			rec.Quantity = next.Quantity.Sub(prev.Quantity)
			if rec.Quantity.IsZero() {
				level = next
				return nil
			}
		}
		if inv == nil {
			return ErrInventoryNotFound
		}
		if err := tx.Inventory.SaveLevels(ctx, inv.ID, next.Quantity, next.Reserved, next.Available); err != nil {
			return err
		}
		if err := tx.Movements.Create(ctx, &rec); err != nil {
			return err
		}
		level, changed = next, true
		return nil
	})
	if err != nil {
		return StockLevel{}, s.txError(c.op, err)
	}
	if !changed {
		return level, nil
	}

	s.log.Info(c.op,
		zap.String("product_id", c.key.ProductID.String()),
		zap.String("location_id", c.key.LocationID.String()),
		zap.String("qty", rec.Quantity.String()),
		zap.String("quantity", level.Quantity.String()),
		zap.String("reserved", level.Reserved.String()),
		zap.String("available", level.Available.String()),
	)
	s.afterCommit(ctx, []repository.SlotKey{c.key}, []MovementEvent{eventOf(rec, level)})
	return level, nil
}

func (s *inventoryService) Receive(ctx context.Context, productID, locationID uuid.UUID, qty decimal.Decimal, reference string, meta ReceiveMeta) (StockLevel, error) {
	if err := requireSlot(productID, locationID); err != nil {
		return StockLevel{}, err
	}
	qty, err := requirePositive(qty)
	if err != nil {
		return StockLevel{}, err
	}

	loc := locationID
	mv := models.InventoryMovement{
		Type:       models.MovementIn,
		ProductID:  productID,
		LocationID: &loc,
		Quantity:   qty,
		Reference:  optional(reference),
		Notes:      optional(meta.Notes),
	}
	if f := meta.File; f != nil {
		mv.ReferenceFilePath = optional(f.Path)
		mv.ReferenceFileName = optional(f.Name)
		mv.ReferenceFileMime = optional(f.Mime)
		if f.Size > 0 {
			size := f.Size
			mv.ReferenceFileSize = &size
		}
	}

	return s.mutate(ctx, slotChange{
		op:   "inventory receive",
		key:  repository.SlotKey{ProductID: productID, LocationID: locationID},
		lazy: true,
		apply: func(inv *models.Inventory) (StockLevel, error) {
			return applyReceive(levelOf(inv), qty)
		},
		movement: mv,
	})
}

func (s *inventoryService) Pick(ctx context.Context, productID, locationID uuid.UUID, qty decimal.Decimal, reference string, meta PickMeta) (StockLevel, error) {
	if err := requireSlot(productID, locationID); err != nil {
		return StockLevel{}, err
	}
	qty, err := requirePositive(qty)
	if err != nil {
		return StockLevel{}, err
	}

	loc := locationID
	return s.mutate(ctx, slotChange{
		op:  "inventory pick",
		key: repository.SlotKey{ProductID: productID, LocationID: locationID},
		apply: func(inv *models.Inventory) (StockLevel, error) {
			if inv == nil {
				return StockLevel{}, ErrInventoryNotFound
			}
			return applyPick(levelOf(inv), qty)
		},
		movement: models.InventoryMovement{
			Type:       models.MovementOut,
			ProductID:  productID,
			LocationID: &loc,
			Quantity:   qty,
			Reference:  optional(reference),
			Notes:      optional(meta.Notes),
		},
	})
}

// Adjust: корректировка на знаковую дельту. Отрицательная дельта ячейку не создаёт.
func (s *inventoryService) Adjust(ctx context.Context, productID, locationID uuid.UUID, delta decimal.Decimal, reason string) (StockLevel, error) {
	if err := requireSlot(productID, locationID); err != nil {
		return StockLevel{}, err
	}
	delta = normalize(delta)
	if delta.IsZero() || !inRange(delta) {
		return StockLevel{}, ErrInvalidQuantity
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return StockLevel{}, ErrInvalidReason
	}

	loc := locationID
	return s.mutate(ctx, slotChange{
		op:   "inventory adjust",
		key:  repository.SlotKey{ProductID: productID, LocationID: locationID},
		lazy: delta.IsPositive(),
		apply: func(inv *models.Inventory) (StockLevel, error) {
			if inv == nil {
				return StockLevel{}, ErrNegativeStock
			}
			return applyAdjust(levelOf(inv), delta)
		},
		movement: models.InventoryMovement{
			Type:       models.MovementAdjustment,
			ProductID:  productID,
			LocationID: &loc,
			Quantity:   delta,
			Notes:      &reason,
		},
	})
}

// AdjustTo приводит quantity ячейки к target одной корректировкой. Дельта считается
// под блокировкой строки, поэтому параллельный отбор не сбивает итог. Если ячейка уже
// на target, движение не пишется.
func (s *inventoryService) AdjustTo(ctx context.Context, productID, locationID uuid.UUID, target decimal.Decimal, reason string) (StockLevel, error) {
	if err := requireSlot(productID, locationID); err != nil {
		return StockLevel{}, err
	}
	target = normalize(target)
	if target.IsNegative() || !inRange(target) {
		return StockLevel{}, ErrInvalidQuantity
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return StockLevel{}, ErrInvalidReason
	}

	loc := locationID
	return s.mutate(ctx, slotChange{
		op:       "inventory adjust to target",
		key:      repository.SlotKey{ProductID: productID, LocationID: locationID},
		lazy:     target.IsPositive(),
		targeted: true,
		apply: func(inv *models.Inventory) (StockLevel, error) {
			if inv == nil {
				return StockLevel{}, nil
			}
			cur := levelOf(inv)
			return applyAdjust(cur, target.Sub(cur.Quantity))
		},
		movement: models.InventoryMovement{
			Type:       models.MovementAdjustment,
			ProductID:  productID,
			LocationID: &loc,
			Notes:      &reason,
		},
	})
}

func (s *inventoryService) GetStock(ctx context.Context, productID, locationID uuid.UUID) (StockLevel, error) {
	if err := requireSlot(productID, locationID); err != nil {
		return StockLevel{}, err
	}

	var (
		gen    int64
		canSet bool
	)
	if s.cache != nil {
		level, ok, g, err := s.cache.Get(ctx, productID, locationID)
		switch {
		case err != nil:
			s.log.Warn("stock cache get failed", zap.Error(err))
		case ok:
			return level, nil
		default:
			gen, canSet = g, true
		}
	}

	inv, err := s.repo.Inventory.Get(ctx, repository.SlotKey{ProductID: productID, LocationID: locationID})
	if err != nil {
		return StockLevel{}, s.txError("inventory get", err)
	}
	if inv == nil {
		return StockLevel{}, ErrInventoryNotFound
	}
	level := levelOf(inv)

	if canSet {
		if _, err := s.cache.Fill(ctx, productID, locationID, level, gen); err != nil {
			s.log.Warn("stock cache fill failed", zap.Error(err))
		}
	}
	return level, nil
}

func (s *inventoryService) ListStockByProduct(ctx context.Context, productID uuid.UUID) ([]SlotStock, error) {
	if productID == uuid.Nil {
		return nil, ErrProductRequired
	}
	rows, err := s.repo.Inventory.ListByProduct(ctx, productID)
	if err != nil {
		return nil, s.txError("inventory list", err)
	}
	out := make([]SlotStock, 0, len(rows))
	for i := range rows {
		out = append(out, SlotStock{
			ProductID:  rows[i].ProductID,
			LocationID: rows[i].LocationID,
			Level:      levelOf(&rows[i]),
		})
	}
	return out, nil
}

func (s *inventoryService) ListMovements(ctx context.Context, f MovementFilter) ([]models.InventoryMovement, int64, error) {
	list, total, err := s.repo.Movements.List(ctx, repository.MovementListFilter{
		ProductID:  f.ProductID,
		LocationID: f.LocationID,
		Type:       f.Type,
		Reference:  strings.TrimSpace(f.Reference),
		Limit:      f.Limit,
		Offset:     f.Offset,
	})
	if err != nil {
		return nil, 0, s.txError("movements list", err)
	}
	return list, total, nil
}
