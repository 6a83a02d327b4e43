package repository

import (
	"context"
	"errors"

	"warehouse-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductionOrderItemRepo interface {
	GetByID(ctx context.Context, orderID, itemID uuid.UUID) (*models.ProductionOrderItem, error)
	GetByLine(ctx context.Context, orderID, productID, locationID uuid.UUID) (*models.ProductionOrderItem, error)
	// UpsertIncrement добавляет qty к строке (order, product, location) или создаёт её.
	UpsertIncrement(ctx context.Context, orderID, productID, locationID uuid.UUID, qty decimal.Decimal) (*models.ProductionOrderItem, error)
	Delete(ctx context.Context, orderID, itemID uuid.UUID) (bool, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.ProductionOrderItem, error)
}

type productionOrderItemRepo struct{ db *gorm.DB }

func NewProductionOrderItemRepo(db *gorm.DB) ProductionOrderItemRepo {
	return &productionOrderItemRepo{db: db}
}

func (r *productionOrderItemRepo) GetByID(ctx context.Context, orderID, itemID uuid.UUID) (*models.ProductionOrderItem, error) {
	var it models.ProductionOrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND id = ?", orderID, itemID).
		First(&it).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &it, err
}

func (r *productionOrderItemRepo) GetByLine(ctx context.Context, orderID, productID, locationID uuid.UUID) (*models.ProductionOrderItem, error) {
	var it models.ProductionOrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND product_id = ? AND location_id = ?", orderID, productID, locationID).
		First(&it).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &it, err
}

func (r *productionOrderItemRepo) UpsertIncrement(ctx context.Context, orderID, productID, locationID uuid.UUID, qty decimal.Decimal) (*models.ProductionOrderItem, error) {
	rec := models.ProductionOrderItem{
		OrderID:    orderID,
		ProductID:  productID,
		LocationID: locationID,
		Quantity:   qty,
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}, {Name: "product_id"}, {Name: "location_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity": gorm.Expr("production_order_items.quantity + EXCLUDED.quantity"),
			}),
		}).
		Create(&rec).Error; err != nil {
		return nil, err
	}
	return r.GetByLine(ctx, orderID, productID, locationID)
}

func (r *productionOrderItemRepo) Delete(ctx context.Context, orderID, itemID uuid.UUID) (bool, error) {
	tx := r.db.WithContext(ctx).
		Where("order_id = ? AND id = ?", orderID, itemID).
		Delete(&models.ProductionOrderItem{})
	return tx.RowsAffected > 0, tx.Error
}

func (r *productionOrderItemRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.ProductionOrderItem, error) {
	var list []models.ProductionOrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id").
		Find(&list).Error
	return list, err
}
