package importer

import (
	"context"
	"strings"

	"warehouse-service/internal/models"
	"warehouse-service/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type repoCatalog struct {
	repo             *repository.Repository
	defaultWarehouse string
	defaultLocation  string

	warehouseID uuid.UUID
	locations   map[string]uuid.UUID
}

// NewRepoCatalog: Catalog поверх репозиториев. Недостающие локации создаются
// в складе defaultWarehouse (он тоже создаётся при необходимости).
func NewRepoCatalog(repo *repository.Repository, defaultWarehouse, defaultLocation string) *repoCatalog {
	return &repoCatalog{
		repo:             repo,
		defaultWarehouse: defaultWarehouse,
		defaultLocation:  defaultLocation,
		locations:        map[string]uuid.UUID{},
	}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (c *repoCatalog) UpsertProduct(ctx context.Context, p ProductRecord) (uuid.UUID, error) {
	var categoryID *uuid.UUID
	if p.Category != "" {
		cat, err := c.repo.Categories.UpsertByName(ctx, p.Category)
		if err != nil {
			return uuid.Nil, err
		}
		categoryID = &cat.ID
	}

	m := models.Product{
		SKU:           p.SKU,
		ReferenceCode: strPtr(p.ReferenceCode),
		Name:          p.Name,
		Description:   strPtr(p.Description),
		Type:          p.Type,
		Brand:         strPtr(p.Brand),
		BaseCost:      p.BaseCost,
		Price:         p.Price,
		Attributes:    strPtr(p.Attributes),
		ImageURL:      strPtr(p.ImageURL),
		CategoryID:    categoryID,
		IsActive:      true,
	}
	if err := c.repo.Products.UpsertBySKU(ctx, &m); err != nil {
		return uuid.Nil, err
	}
	return m.ID, nil
}

func (c *repoCatalog) ResolveLocation(ctx context.Context, code string) (uuid.UUID, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		code = c.defaultLocation
	}
	if id, ok := c.locations[code]; ok {
		return id, nil
	}

	loc, err := c.repo.Locations.GetByCode(ctx, code)
	if err != nil {
		return uuid.Nil, err
	}
	if loc == nil {
		whID, err := c.ensureWarehouse(ctx)
		if err != nil {
			return uuid.Nil, err
		}
		if loc, err = c.repo.Locations.EnsureByCode(ctx, code, whID); err != nil {
			return uuid.Nil, err
		}
	}
	c.locations[code] = loc.ID
	return loc.ID, nil
}

func (c *repoCatalog) ensureWarehouse(ctx context.Context) (uuid.UUID, error) {
	if c.warehouseID != uuid.Nil {
		return c.warehouseID, nil
	}
	wh, err := c.repo.Warehouses.EnsureByCode(ctx, c.defaultWarehouse)
	if err != nil {
		return uuid.Nil, err
	}
	c.warehouseID = wh.ID
	return wh.ID, nil
}

func (c *repoCatalog) CurrentStock(ctx context.Context, productID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	rows, err := c.repo.Inventory.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]decimal.Decimal, len(rows))
	for _, r := range rows {
		out[r.LocationID] = r.Quantity
	}
	return out, nil
}
