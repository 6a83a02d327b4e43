package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProductType string

const (
	ProductTypeHose      ProductType = "HOSE"
	ProductTypeFitting   ProductType = "FITTING"
	ProductTypeAssembly  ProductType = "ASSEMBLY"
	ProductTypeAccessory ProductType = "ACCESSORY"
)

type Category struct {
	ID   uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name string    `gorm:"type:text;not null;uniqueIndex:ux_categories_name"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (Category) TableName() string { return "categories" }

type Product struct {
	ID            uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SKU           string              `gorm:"type:text;not null;uniqueIndex:ux_products_sku"`
	ReferenceCode *string             `gorm:"type:text;index"`
	Name          string              `gorm:"type:text;not null"`
	Description   *string             `gorm:"type:text"`
	Type          ProductType         `gorm:"type:text;not null"`
	Brand         *string             `gorm:"type:text"`
	BaseCost      decimal.NullDecimal `gorm:"type:numeric(18,4)"`
	Price         decimal.NullDecimal `gorm:"type:numeric(18,4)"`
	Attributes    *string             `gorm:"type:jsonb"`
	ImageURL      *string             `gorm:"type:text"`
	CategoryID    *uuid.UUID          `gorm:"type:uuid;index"`
	IsActive      bool                `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"not null;default:now();index"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (Product) TableName() string { return "products" }

type Warehouse struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Code        string    `gorm:"type:text;not null;uniqueIndex:ux_warehouses_code"`
	Name        string    `gorm:"type:text;not null"`
	Description *string   `gorm:"type:text"`
	IsActive    bool      `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (Warehouse) TableName() string { return "warehouses" }

type Location struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Code        string     `gorm:"type:text;not null;uniqueIndex:ux_locations_code"`
	Name        string     `gorm:"type:text;not null"`
	Zone        *string    `gorm:"type:text"`
	IsActive    bool       `gorm:"not null;default:true"`
	WarehouseID *uuid.UUID `gorm:"type:uuid;index"` // nil: локация без склада

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (Location) TableName() string { return "locations" }

// Inventory: складская ячейка (product, location). Available хранится избыточно
// и всегда равен Quantity - Reserved.
type Inventory struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID  uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:ux_inventories_product_location"`
	LocationID uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:ux_inventories_product_location"`
	Quantity   decimal.Decimal `gorm:"type:numeric(18,4);not null;default:0"`
	Reserved   decimal.Decimal `gorm:"type:numeric(18,4);not null;default:0"`
	Available  decimal.Decimal `gorm:"type:numeric(18,4);not null;default:0"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (Inventory) TableName() string { return "inventories" }

type MovementType string

const (
	MovementIn         MovementType = "IN"
	MovementOut        MovementType = "OUT"
	MovementAdjustment MovementType = "ADJUSTMENT"
)

// InventoryMovement: неизменяемая запись журнала. Quantity для IN/OUT положительный,
// для ADJUSTMENT со знаком.
type InventoryMovement struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Type       MovementType    `gorm:"type:text;not null;index"`
	ProductID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	LocationID *uuid.UUID      `gorm:"type:uuid;index"`
	Quantity   decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	Reference  *string         `gorm:"type:text"`
	Notes      *string         `gorm:"type:text"`

	ReferenceFilePath *string `gorm:"type:text"`
	ReferenceFileName *string `gorm:"type:text"`
	ReferenceFileMime *string `gorm:"type:text"`
	ReferenceFileSize *int64

	CreatedAt time.Time `gorm:"not null;default:now();index"`
}

func (InventoryMovement) TableName() string { return "inventory_movements" }

type ProductionStatus string

const (
	ProductionDraft      ProductionStatus = "DRAFT"
	ProductionOpen       ProductionStatus = "OPEN"
	ProductionInProgress ProductionStatus = "IN_PROGRESS"
	ProductionCompleted  ProductionStatus = "COMPLETED"
	ProductionCancelled  ProductionStatus = "CANCELLED"
)

type ProductionOrder struct {
	ID           uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Code         string           `gorm:"type:text;not null;uniqueIndex:ux_production_orders_code"`
	Status       ProductionStatus `gorm:"type:text;not null;default:'DRAFT';index"`
	WarehouseID  uuid.UUID        `gorm:"type:uuid;not null;index"`
	CustomerName *string          `gorm:"type:text"`
	Priority     int              `gorm:"not null;default:3"`
	DueDate      *time.Time
	Notes        *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:now();index"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`

	Items []ProductionOrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (ProductionOrder) TableName() string { return "production_orders" }

type ProductionOrderItem struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:ux_production_order_items_line"`
	ProductID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:ux_production_order_items_line"`
	LocationID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:ux_production_order_items_line"`
	Quantity   decimal.Decimal `gorm:"type:numeric(18,4);not null"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
}

func (ProductionOrderItem) TableName() string { return "production_order_items" }
