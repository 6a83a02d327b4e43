package service

import (
	"context"
	"errors"
	"strings"

	"warehouse-service/internal/models"
	"warehouse-service/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type productionService struct {
	repo *repository.Repository
	ledgerHooks
}

func NewProductionService(repo *repository.Repository, log *zap.Logger, opts ...Option) *productionService {
	return &productionService{
		repo:        repo,
		ledgerHooks: newHooks(log, opts),
	}
}

func validPriority(p int) bool { return p >= 1 && p <= 5 }

func (s *productionService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.ProductionOrder, error) {
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	if code == "" {
		return nil, ErrOrderCodeRequired
	}
	status := in.Status
	if status == "" {
		status = models.ProductionDraft
	}
	if !ValidStatus(status) {
		return nil, withDetail(ErrInvalidStatus, string(status))
	}
	// новый заказ без строк нечего резервировать; в работу он переводится отдельно
	if !itemsEditable(status) {
		return nil, withDetail(ErrInvalidTransition, "new order must be DRAFT or OPEN")
	}
	priority := in.Priority
	if priority == 0 {
		priority = defaultPriority
	}
	if !validPriority(priority) {
		return nil, ErrInvalidPriority
	}

	order := &models.ProductionOrder{
		Code:         code,
		Status:       status,
		WarehouseID:  in.WarehouseID,
		CustomerName: optional(in.CustomerName),
		Priority:     priority,
		DueDate:      in.DueDate,
		Notes:        optional(in.Notes),
	}

	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		wh, err := tx.Warehouses.GetByID(ctx, in.WarehouseID)
		if err != nil {
			return err
		}
		if wh == nil {
			return ErrWarehouseNotFound
		}
		existing, err := tx.Orders.GetByCode(ctx, code)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrOrderCodeExists
		}
		if err := tx.Orders.Create(ctx, order); err != nil {
			if repository.IsUniqueViolation(err) {
				return ErrOrderCodeExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, s.txError("production order create", err)
	}

	s.log.Info("production order created", zap.String("code", order.Code), zap.String("status", string(order.Status)))
	return order, nil
}

func (s *productionService) GetOrder(ctx context.Context, id uuid.UUID) (*models.ProductionOrder, error) {
	o, err := s.repo.Orders.GetByID(ctx, id)
	if err != nil {
		return nil, s.txError("production order get", err)
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (s *productionService) ListOrders(ctx context.Context, f OrderListFilter) ([]models.ProductionOrder, int64, error) {
	if f.Status != nil && !ValidStatus(*f.Status) {
		return nil, 0, withDetail(ErrInvalidStatus, string(*f.Status))
	}
	list, total, err := s.repo.Orders.List(ctx, repository.ProductionOrderFilter{
		Status:      f.Status,
		WarehouseID: f.WarehouseID,
		Limit:       f.Limit,
		Offset:      f.Offset,
	})
	if err != nil {
		return nil, 0, s.txError("production order list", err)
	}
	return list, total, nil
}

func (s *productionService) ChangeStatus(ctx context.Context, id uuid.UUID, status models.ProductionStatus) (*models.ProductionOrder, error) {
	return s.UpdateOrder(ctx, id, OrderPatch{Status: &status})
}

// UpdateOrder применяет побочные эффекты перехода и описательные поля в одной транзакции.
func (s *productionService) UpdateOrder(ctx context.Context, id uuid.UUID, patch OrderPatch) (*models.ProductionOrder, error) {
	if patch.Priority != nil && !validPriority(*patch.Priority) {
		return nil, ErrInvalidPriority
	}
	if patch.Status != nil && !ValidStatus(*patch.Status) {
		return nil, withDetail(ErrInvalidStatus, string(*patch.Status))
	}

	var (
		touched []repository.SlotKey
		events  []MovementEvent
		from    models.ProductionStatus
		code    string
	)
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		touched, events = nil, nil

		order, err := tx.Orders.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		from, code = order.Status, order.Code

		fields := map[string]any{}
		if patch.Status != nil && *patch.Status != order.Status {
			to := *patch.Status
			if err := checkTransition(order.Status, to); err != nil {
				return err
			}
			touched, events, err = s.transition(ctx, tx, order, to)
			if err != nil {
				return err
			}
			fields["status"] = to
		}
		if patch.CustomerName != nil {
			fields["customer_name"] = optional(*patch.CustomerName)
		}
		if patch.Priority != nil {
			fields["priority"] = *patch.Priority
		}
		if patch.ClearDueDate {
			fields["due_date"] = nil
		} else if patch.DueDate != nil {
			fields["due_date"] = *patch.DueDate
		}
		if patch.Notes != nil {
			fields["notes"] = optional(*patch.Notes)
		}
		return tx.Orders.Update(ctx, order.ID, fields)
	})
	if err != nil {
		return nil, s.txError("production order update", err)
	}

	if patch.Status != nil && *patch.Status != from {
		s.log.Info("production order status changed",
			zap.String("code", code),
			zap.String("from", string(from)),
			zap.String("to", string(*patch.Status)),
			zap.Int("slots", len(touched)),
		)
	}
	s.afterCommit(ctx, touched, events)
	return s.GetOrder(ctx, id)
}

// transition выполняет складскую часть перехода. Резерв держит только IN_PROGRESS,
// поэтому отмена из DRAFT/OPEN ничего не освобождает.
func (s *productionService) transition(ctx context.Context, tx *repository.Repository, order *models.ProductionOrder, to models.ProductionStatus) ([]repository.SlotKey, []MovementEvent, error) {
	switch to {
	case models.ProductionInProgress:
		keys, _, err := applyToSlots(ctx, tx, order.Items, ErrInsufficientInventory, applyReserve)
		return keys, nil, err

	case models.ProductionCompleted:
		keys, levels, err := applyToSlots(ctx, tx, order.Items, ErrInsufficientInventory, applyConsume)
		if err != nil {
			return nil, nil, err
		}
		events := make([]MovementEvent, 0, len(order.Items))
		for _, it := range order.Items {
			loc := it.LocationID
			ref := order.Code
			note := ConsumptionNote
			mv := models.InventoryMovement{
				Type:       models.MovementOut,
				ProductID:  it.ProductID,
				LocationID: &loc,
				Quantity:   it.Quantity,
				Reference:  &ref,
				Notes:      &note,
			}
			if err := tx.Movements.Create(ctx, &mv); err != nil {
				return nil, nil, err
			}
			events = append(events, eventOf(mv, levels[repository.SlotKey{ProductID: it.ProductID, LocationID: it.LocationID}]))
		}
		return keys, events, nil

	case models.ProductionCancelled:
		if order.Status != models.ProductionInProgress {
			return nil, nil, nil
		}
		keys, _, err := applyToSlots(ctx, tx, order.Items, nil, releaseOp)
		return keys, nil, err
	}
	return nil, nil, nil
}

func releaseOp(cur StockLevel, qty decimal.Decimal) (StockLevel, error) {
	return applyRelease(cur, qty), nil
}

type slotOp func(cur StockLevel, qty decimal.Decimal) (StockLevel, error)

// applyToSlots работает по принципу всё или ничего: ячейки блокируются в порядке SlotKey.Less,
// первая же ошибка откатывает всю транзакцию. Отсутствующая ячейка даёт missing,
// либо пропускается, если missing == nil.
func applyToSlots(ctx context.Context, tx *repository.Repository, items []models.ProductionOrderItem, missing error, op slotOp) ([]repository.SlotKey, map[repository.SlotKey]StockLevel, error) {
	if len(items) == 0 {
		return nil, nil, nil
	}
	want := make(map[repository.SlotKey]decimal.Decimal, len(items))
	keys := make([]repository.SlotKey, 0, len(items))
	for _, it := range items {
		k := repository.SlotKey{ProductID: it.ProductID, LocationID: it.LocationID}
		if _, ok := want[k]; !ok {
			keys = append(keys, k)
			want[k] = decimal.Zero
		}
		want[k] = want[k].Add(it.Quantity)
	}
	repository.SortSlotKeys(keys)

	locked, err := tx.Inventory.LockMany(ctx, keys)
	if err != nil {
		return nil, nil, err
	}

	touched := make([]repository.SlotKey, 0, len(keys))
	levels := make(map[repository.SlotKey]StockLevel, len(keys))
	for _, k := range keys {
		inv, ok := locked[k]
		if !ok {
			if missing != nil {
				return nil, nil, withDetail(asLedger(missing), slotDetail(k))
			}
			continue
		}
		next, err := op(levelOf(inv), want[k])
		if err != nil {
			if le := asLedger(err); le != nil {
				return nil, nil, withDetail(le, slotDetail(k))
			}
			return nil, nil, err
		}
		if err := tx.Inventory.SaveLevels(ctx, inv.ID, next.Quantity, next.Reserved, next.Available); err != nil {
			return nil, nil, err
		}
		touched = append(touched, k)
		levels[k] = next
	}
	return touched, levels, nil
}

func asLedger(err error) *LedgerError {
	var le *LedgerError
	if errors.As(err, &le) {
		return le
	}
	return nil
}

func slotDetail(k repository.SlotKey) string {
	return "product " + k.ProductID.String() + " at location " + k.LocationID.String()
}

// AddItem не резервирует: резерв появляется только при переходе в IN_PROGRESS.
func (s *productionService) AddItem(ctx context.Context, orderID, productID, locationID uuid.UUID, qty decimal.Decimal) (*models.ProductionOrderItem, error) {
	if err := requireSlot(productID, locationID); err != nil {
		return nil, err
	}
	qty, err := requirePositive(qty)
	if err != nil {
		return nil, err
	}

	var item *models.ProductionOrderItem
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		order, err := tx.Orders.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if !itemsEditable(order.Status) {
			return ErrOrderLocked
		}

		loc, err := tx.Locations.GetByID(ctx, locationID)
		if err != nil {
			return err
		}
		if loc == nil {
			return ErrLocationNotFound
		}
		if loc.WarehouseID == nil || *loc.WarehouseID != order.WarehouseID {
			return ErrInvalidLocation
		}

		inv, err := tx.Inventory.Get(ctx, repository.SlotKey{ProductID: productID, LocationID: locationID})
		if err != nil {
			return err
		}
		if inv == nil || !inv.Available.IsPositive() {
			return ErrNoStockAtLocation
		}
		if qty.GreaterThan(inv.Available) {
			return ErrQuantityExceedsAvailable
		}

		item, err = tx.OrderItems.UpsertIncrement(ctx, orderID, productID, locationID, qty)
		return err
	})
	if err != nil {
		return nil, s.txError("production order add item", err)
	}
	return item, nil
}

// RemoveItem возвращает удалённую строку.
func (s *productionService) RemoveItem(ctx context.Context, orderID, itemID uuid.UUID) (*models.ProductionOrderItem, error) {
	var removed *models.ProductionOrderItem
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		removed = nil
		order, err := tx.Orders.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if !itemsEditable(order.Status) {
			return ErrOrderLocked
		}
		it, err := tx.OrderItems.GetByID(ctx, orderID, itemID)
		if err != nil {
			return err
		}
		if it == nil {
			return ErrItemNotFound
		}
		ok, err := tx.OrderItems.Delete(ctx, orderID, itemID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrItemNotFound
		}
		removed = it
		return nil
	})
	if err != nil {
		return nil, s.txError("production order remove item", err)
	}
	return removed, nil
}

// DeleteOrder для заказа в работе сначала освобождает резерв, как при отмене.
func (s *productionService) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	var touched []repository.SlotKey
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		touched = nil
		order, err := tx.Orders.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if order.Status == models.ProductionInProgress {
			touched, _, err = applyToSlots(ctx, tx, order.Items, nil, releaseOp)
			if err != nil {
				return err
			}
		}
		_, err = tx.Orders.Delete(ctx, order.ID)
		return err
	})
	if err != nil {
		return s.txError("production order delete", err)
	}
	s.log.Info("production order deleted", zap.String("order_id", id.String()), zap.Int("released_slots", len(touched)))
	s.afterCommit(ctx, touched, nil)
	return nil
}
