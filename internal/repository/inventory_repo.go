package repository

import (
	"bytes"
	"context"
	"errors"
	"sort"

	"warehouse-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SlotKey: идентичность складской ячейки.
type SlotKey struct {
	ProductID  uuid.UUID
	LocationID uuid.UUID
}

// Less задаёт порядок захвата блокировок для многоячеечных транзакций.
func (k SlotKey) Less(o SlotKey) bool {
	if c := bytes.Compare(k.ProductID[:], o.ProductID[:]); c != 0 {
		return c < 0
	}
	return bytes.Compare(k.LocationID[:], o.LocationID[:]) < 0
}

func SortSlotKeys(keys []SlotKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}

type InventoryRepo interface {
	// Get читает ячейку без блокировки; nil, nil если её нет.
	Get(ctx context.Context, key SlotKey) (*models.Inventory, error)
	// GetForUpdate берёт строковую блокировку (SELECT ... FOR UPDATE) до конца транзакции.
	GetForUpdate(ctx context.Context, key SlotKey) (*models.Inventory, error)
	// LockMany блокирует ячейки строго в порядке SlotKey.Less; отсутствующие ячейки в карту не попадают.
	LockMany(ctx context.Context, keys []SlotKey) (map[SlotKey]*models.Inventory, error)
	// EnsureSlot создаёт пустую ячейку, если её ещё нет (INSERT ... ON CONFLICT DO NOTHING).
	EnsureSlot(ctx context.Context, key SlotKey) error
	SaveLevels(ctx context.Context, id uuid.UUID, quantity, reserved, available decimal.Decimal) error
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.Inventory, error)
	CountByKey(ctx context.Context, key SlotKey) (int64, error)
}

type inventoryRepo struct{ db *gorm.DB }

func NewInventoryRepo(db *gorm.DB) InventoryRepo { return &inventoryRepo{db: db} }

func (r *inventoryRepo) Get(ctx context.Context, key SlotKey) (*models.Inventory, error) {
	return r.first(r.db.WithContext(ctx), key)
}

func (r *inventoryRepo) GetForUpdate(ctx context.Context, key SlotKey) (*models.Inventory, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), key)
}

func (r *inventoryRepo) first(q *gorm.DB, key SlotKey) (*models.Inventory, error) {
	var inv models.Inventory
	err := q.Where("product_id = ? AND location_id = ?", key.ProductID, key.LocationID).First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *inventoryRepo) LockMany(ctx context.Context, keys []SlotKey) (map[SlotKey]*models.Inventory, error) {
	sorted := make([]SlotKey, len(keys))
	copy(sorted, keys)
	SortSlotKeys(sorted)

	out := make(map[SlotKey]*models.Inventory, len(sorted))
	for _, k := range sorted {
		if _, seen := out[k]; seen {
			continue
		}
		inv, err := r.GetForUpdate(ctx, k)
		if err != nil {
			return nil, err
		}
		if inv != nil {
			out[k] = inv
		}
	}
	return out, nil
}

func (r *inventoryRepo) EnsureSlot(ctx context.Context, key SlotKey) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}, {Name: "location_id"}},
			DoNothing: true,
		}).
		Create(&models.Inventory{
			ProductID:  key.ProductID,
			LocationID: key.LocationID,
			Quantity:   decimal.Zero,
			Reserved:   decimal.Zero,
			Available:  decimal.Zero,
		}).Error
}

func (r *inventoryRepo) SaveLevels(ctx context.Context, id uuid.UUID, quantity, reserved, available decimal.Decimal) error {
	tx := r.db.WithContext(ctx).
		Model(&models.Inventory{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"quantity":  quantity,
			"reserved":  reserved,
			"available": available,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *inventoryRepo) ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.Inventory, error) {
	var list []models.Inventory
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}

func (r *inventoryRepo) CountByKey(ctx context.Context, key SlotKey) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&models.Inventory{}).
		Where("product_id = ? AND location_id = ?", key.ProductID, key.LocationID).
		Count(&cnt).Error
	return cnt, err
}
