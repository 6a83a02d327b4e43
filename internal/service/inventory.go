package service

import (
	"context"
	"time"

	"warehouse-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AttachedFile: метаданные приложенного документа (накладная и т.п.). Сам файл ядро не хранит.
type AttachedFile struct {
	Path string
	Name string
	Mime string
	Size int64
}

type ReceiveMeta struct {
	Notes string
	File  *AttachedFile
}

type PickMeta struct {
	Notes string
}

type MovementFilter struct {
	ProductID  *uuid.UUID
	LocationID *uuid.UUID
	Type       *models.MovementType
	Reference  string
	Limit      int
	Offset     int
}

// SlotStock: ячейка вместе с текущими счётчиками.
type SlotStock struct {
	ProductID  uuid.UUID
	LocationID uuid.UUID
	Level      StockLevel
}

type InventoryService interface {
	Receive(ctx context.Context, productID, locationID uuid.UUID, qty decimal.Decimal, reference string, meta ReceiveMeta) (StockLevel, error)
	Pick(ctx context.Context, productID, locationID uuid.UUID, qty decimal.Decimal, reference string, meta PickMeta) (StockLevel, error)
	Adjust(ctx context.Context, productID, locationID uuid.UUID, delta decimal.Decimal, reason string) (StockLevel, error)
	AdjustTo(ctx context.Context, productID, locationID uuid.UUID, target decimal.Decimal, reason string) (StockLevel, error)

	GetStock(ctx context.Context, productID, locationID uuid.UUID) (StockLevel, error)
	ListStockByProduct(ctx context.Context, productID uuid.UUID) ([]SlotStock, error)
	ListMovements(ctx context.Context, f MovementFilter) ([]models.InventoryMovement, int64, error)
}

// StockCache: снимки ячеек для чтения. Источник истины всегда БД.
// Get при промахе отдаёт поколение ключа; Invalidate его увеличивает, а Fill пишет снимок,
// только если поколение с момента Get не менялось. Так чтение, начатое до коммита,
// не может положить в кэш устаревший снимок.
type StockCache interface {
	Get(ctx context.Context, productID, locationID uuid.UUID) (level StockLevel, hit bool, gen int64, err error)
	Fill(ctx context.Context, productID, locationID uuid.UUID, level StockLevel, gen int64) (bool, error)
	Invalidate(ctx context.Context, productID, locationID uuid.UUID) error
}

// MovementEvent публикуется после коммита, по одному на запись журнала.
type MovementEvent struct {
	MovementID uuid.UUID           `json:"movement_id"`
	Type       models.MovementType `json:"type"`
	ProductID  uuid.UUID           `json:"product_id"`
	LocationID uuid.UUID           `json:"location_id"`
	Quantity   decimal.Decimal     `json:"quantity"`
	Reference  string              `json:"reference,omitempty"`
	Level      StockLevel          `json:"level"`
	OccurredAt time.Time           `json:"occurred_at"`
}

type EventBus interface {
	PublishMovements(ctx context.Context, events []MovementEvent) error
}
