package repository

import (
	"context"

	"warehouse-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MovementListFilter struct {
	ProductID  *uuid.UUID
	LocationID *uuid.UUID
	Type       *models.MovementType
	Reference  string
	Limit      int
	Offset     int
}

// MovementRepo: журнал только на добавление: обновления и удаления не предусмотрены.
type MovementRepo interface {
	Create(ctx context.Context, m *models.InventoryMovement) error
	List(ctx context.Context, f MovementListFilter) ([]models.InventoryMovement, int64, error)
}

type movementRepo struct{ db *gorm.DB }

func NewMovementRepo(db *gorm.DB) MovementRepo { return &movementRepo{db: db} }

func (r *movementRepo) Create(ctx context.Context, m *models.InventoryMovement) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *movementRepo) List(ctx context.Context, f MovementListFilter) ([]models.InventoryMovement, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.InventoryMovement{})

	if f.ProductID != nil {
		q = q.Where("product_id = ?", *f.ProductID)
	}
	if f.LocationID != nil {
		q = q.Where("location_id = ?", *f.LocationID)
	}
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.Reference != "" {
		q = q.Where("reference = ?", f.Reference)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var list []models.InventoryMovement
	err := q.Order("created_at DESC").Order("id").Limit(f.Limit).Offset(f.Offset).Find(&list).Error
	return list, total, err
}
