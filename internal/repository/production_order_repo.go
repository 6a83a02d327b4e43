package repository

import (
	"context"
	"errors"

	"warehouse-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductionOrderFilter struct {
	Status      *models.ProductionStatus
	WarehouseID *uuid.UUID
	Limit       int
	Offset      int
}

type ProductionOrderRepo interface {
	Create(ctx context.Context, o *models.ProductionOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ProductionOrder, error)
	// GetByIDForUpdate блокирует строку заказа; переходы статуса сериализуются на ней.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.ProductionOrder, error)
	GetByCode(ctx context.Context, code string) (*models.ProductionOrder, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, f ProductionOrderFilter) ([]models.ProductionOrder, int64, error)
}

type productionOrderRepo struct{ db *gorm.DB }

func NewProductionOrderRepo(db *gorm.DB) ProductionOrderRepo { return &productionOrderRepo{db: db} }

func (r *productionOrderRepo) Create(ctx context.Context, o *models.ProductionOrder) error {
	return r.db.WithContext(ctx).Omit("Items").Create(o).Error
}

func (r *productionOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ProductionOrder, error) {
	return r.first(r.db.WithContext(ctx), "id = ?", id)
}

func (r *productionOrderRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.ProductionOrder, error) {
	var o models.ProductionOrder
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&o, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", o.ID).
		Order("created_at ASC").Order("id").
		Find(&o.Items).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *productionOrderRepo) GetByCode(ctx context.Context, code string) (*models.ProductionOrder, error) {
	return r.first(r.db.WithContext(ctx), "code = ?", code)
}

func (r *productionOrderRepo) first(q *gorm.DB, where string, arg any) (*models.ProductionOrder, error) {
	var o models.ProductionOrder
	err := q.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC").Order("id")
	}).Where(where, arg).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *productionOrderRepo) Update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	tx := r.db.WithContext(ctx).
		Model(&models.ProductionOrder{}).
		Where("id = ?", id).
		Updates(fields)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *productionOrderRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tx := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ProductionOrder{})
	return tx.RowsAffected > 0, tx.Error
}

func (r *productionOrderRepo) List(ctx context.Context, f ProductionOrderFilter) ([]models.ProductionOrder, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.ProductionOrder{})
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.WarehouseID != nil {
		q = q.Where("warehouse_id = ?", *f.WarehouseID)
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

	var list []models.ProductionOrder
	err := q.Preload("Items").
		Order("priority ASC").
		Order("due_date ASC NULLS LAST").
		Order("created_at DESC").
		Limit(f.Limit).Offset(f.Offset).
		Find(&list).Error
	return list, total, err
}
