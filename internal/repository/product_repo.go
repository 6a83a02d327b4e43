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

type ProductRepo interface {
	Create(ctx context.Context, p *models.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetBySKU(ctx context.Context, sku string) (*models.Product, error)
	// FindByCode ищет по SKU или по ReferenceCode (сканер штрихкодов).
	FindByCode(ctx context.Context, code string) (*models.Product, error)
	// UpsertBySKU создаёт товар или обновляет описательные поля существующего; p.ID заполняется.
	UpsertBySKU(ctx context.Context, p *models.Product) error
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepo { return &productRepo{db: db} }

func (r *productRepo) Create(ctx context.Context, p *models.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *productRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &p, err
}

func (r *productRepo) GetBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).Where("sku = ?", strings.TrimSpace(sku)).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &p, err
}

func (r *productRepo) FindByCode(ctx context.Context, code string) (*models.Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	var p models.Product
	err := r.db.WithContext(ctx).
		Where("sku = ? OR reference_code = ?", code, code).
		Order("created_at ASC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &p, err
}

func (r *productRepo) UpsertBySKU(ctx context.Context, p *models.Product) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "sku"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"reference_code", "name", "description", "type", "brand",
				"base_cost", "price", "attributes", "image_url", "category_id", "updated_at",
			}),
		}).
		Create(p).Error
	if err != nil {
		return err
	}
	if p.ID == uuid.Nil {
		got, err := r.GetBySKU(ctx, p.SKU)
		if err != nil {
			return err
		}
		if got == nil {
			return gorm.ErrRecordNotFound
		}
		p.ID = got.ID
	}
	return nil
}

type CategoryRepo interface {
	UpsertByName(ctx context.Context, name string) (*models.Category, error)
}

type categoryRepo struct{ db *gorm.DB }

func NewCategoryRepo(db *gorm.DB) CategoryRepo { return &categoryRepo{db: db} }

func (r *categoryRepo) UpsertByName(ctx context.Context, name string) (*models.Category, error) {
	c := models.Category{Name: strings.TrimSpace(name)}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&c).Error; err != nil {
		return nil, err
	}
	var got models.Category
	if err := r.db.WithContext(ctx).Where("name = ?", c.Name).First(&got).Error; err != nil {
		return nil, err
	}
	return &got, nil
}
