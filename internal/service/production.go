package service

import (
	"context"
	"time"

	"warehouse-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultPriority = 3
	// ConsumptionNote пишется в OUT-движение при завершении заказа.
	ConsumptionNote = "Production consumption"
)

type CreateOrderInput struct {
	Code         string
	WarehouseID  uuid.UUID
	Status       models.ProductionStatus // пусто: DRAFT
	CustomerName string
	Priority     int // 0: по умолчанию
	DueDate      *time.Time
	Notes        string
}

// OrderPatch: nil-поля не меняются.
type OrderPatch struct {
	Status       *models.ProductionStatus
	CustomerName *string
	Priority     *int
	DueDate      *time.Time
	ClearDueDate bool
	Notes        *string
}

type OrderListFilter struct {
	Status      *models.ProductionStatus
	WarehouseID *uuid.UUID
	Limit       int
	Offset      int
}

type ProductionService interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*models.ProductionOrder, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*models.ProductionOrder, error)
	ListOrders(ctx context.Context, f OrderListFilter) ([]models.ProductionOrder, int64, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, patch OrderPatch) (*models.ProductionOrder, error)
	ChangeStatus(ctx context.Context, id uuid.UUID, status models.ProductionStatus) (*models.ProductionOrder, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error

	AddItem(ctx context.Context, orderID, productID, locationID uuid.UUID, qty decimal.Decimal) (*models.ProductionOrderItem, error)
	RemoveItem(ctx context.Context, orderID, itemID uuid.UUID) (*models.ProductionOrderItem, error)
}

var statusRank = map[models.ProductionStatus]int{
	models.ProductionDraft:      0,
	models.ProductionOpen:       1,
	models.ProductionInProgress: 2,
	models.ProductionCompleted:  3,
}

func ValidStatus(s models.ProductionStatus) bool {
	if s == models.ProductionCancelled {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

func isTerminal(s models.ProductionStatus) bool {
	return s == models.ProductionCompleted || s == models.ProductionCancelled
}

// checkTransition: вперёд по DRAFT → OPEN → IN_PROGRESS → COMPLETED, COMPLETED только
// из IN_PROGRESS, CANCELLED из любого нетерминального. Тот же статус не считается переходом.
func checkTransition(from, to models.ProductionStatus) error {
	if !ValidStatus(to) {
		return withDetail(ErrInvalidStatus, string(to))
	}
	if from == to {
		return nil
	}
	if isTerminal(from) {
		return withDetail(ErrInvalidTransition, string(from)+" -> "+string(to))
	}
	if to == models.ProductionCancelled {
		return nil
	}
	if to == models.ProductionCompleted && from != models.ProductionInProgress {
		return withDetail(ErrInvalidTransition, string(from)+" -> "+string(to))
	}
	if statusRank[to] < statusRank[from] {
		return withDetail(ErrInvalidTransition, string(from)+" -> "+string(to))
	}
	return nil
}

func itemsEditable(s models.ProductionStatus) bool {
	return s == models.ProductionDraft || s == models.ProductionOpen
}
