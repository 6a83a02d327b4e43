package repository

import (
	"context"
	"errors"
	"strings"

	"warehouse-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WarehouseRepo interface {
	Create(ctx context.Context, w *models.Warehouse) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Warehouse, error)
	GetByCode(ctx context.Context, code string) (*models.Warehouse, error)
	EnsureByCode(ctx context.Context, code string) (*models.Warehouse, error)
}

type warehouseRepo struct{ db *gorm.DB }

func NewWarehouseRepo(db *gorm.DB) WarehouseRepo { return &warehouseRepo{db: db} }

func (r *warehouseRepo) Create(ctx context.Context, w *models.Warehouse) error {
	return r.db.WithContext(ctx).Create(w).Error
}

func (r *warehouseRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Warehouse, error) {
	var w models.Warehouse
	err := r.db.WithContext(ctx).First(&w, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &w, err
}

func (r *warehouseRepo) GetByCode(ctx context.Context, code string) (*models.Warehouse, error) {
	var w models.Warehouse
	err := r.db.WithContext(ctx).Where("code = ?", strings.TrimSpace(code)).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &w, err
}

func (r *warehouseRepo) EnsureByCode(ctx context.Context, code string) (*models.Warehouse, error) {
	code = strings.TrimSpace(code)
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(&models.Warehouse{Code: code, Name: code, IsActive: true}).Error; err != nil {
		return nil, err
	}
	w, err := r.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return w, nil
}

type LocationRepo interface {
	Create(ctx context.Context, l *models.Location) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Location, error)
	GetByCode(ctx context.Context, code string) (*models.Location, error)
	// EnsureByCode создаёт локацию в складе warehouseID, если кода ещё нет. Существующая локация не переносится.
	EnsureByCode(ctx context.Context, code string, warehouseID uuid.UUID) (*models.Location, error)
}

type locationRepo struct{ db *gorm.DB }

func NewLocationRepo(db *gorm.DB) LocationRepo { return &locationRepo{db: db} }

func (r *locationRepo) Create(ctx context.Context, l *models.Location) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *locationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Location, error) {
	var l models.Location
	err := r.db.WithContext(ctx).First(&l, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &l, err
}

func (r *locationRepo) GetByCode(ctx context.Context, code string) (*models.Location, error) {
	var l models.Location
	err := r.db.WithContext(ctx).Where("code = ?", strings.TrimSpace(code)).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &l, err
}

func (r *locationRepo) EnsureByCode(ctx context.Context, code string, warehouseID uuid.UUID) (*models.Location, error) {
	code = strings.TrimSpace(code)
	wid := warehouseID
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(&models.Location{Code: code, Name: code, IsActive: true, WarehouseID: &wid}).Error; err != nil {
		return nil, err
	}
	l, err := r.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return l, nil
}
