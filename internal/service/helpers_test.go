package service_test

import (
	"context"
	"sync"
	"testing"

	"warehouse-service/internal/migrate"
	"warehouse-service/internal/models"
	"warehouse-service/internal/repository"
	"warehouse-service/internal/service"
	"warehouse-service/pkg/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func setupRepo(t *testing.T) *repository.Repository {
	t.Helper()
	db := testutil.SetupTestPostgres(t)
	if err := migrate.MigrateWarehouseDB(context.Background(), db, zap.NewNop(), migrate.DefaultMigrateOptions()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repository.New(db)
}

type world struct {
	product   models.Product
	warehouse models.Warehouse
	location  models.Location
}

func seedWorld(t *testing.T, repo *repository.Repository, suffix string) world {
	t.Helper()
	ctx := context.Background()
	w := world{
		product:   models.Product{SKU: "P-" + suffix, Name: "Hose " + suffix, Type: models.ProductTypeHose, IsActive: true},
		warehouse: models.Warehouse{Code: "W-" + suffix, Name: "Main " + suffix, IsActive: true},
	}
	if err := repo.Products.Create(ctx, &w.product); err != nil {
		t.Fatalf("create product: %v", err)
	}
	if err := repo.Warehouses.Create(ctx, &w.warehouse); err != nil {
		t.Fatalf("create warehouse: %v", err)
	}
	w.location = addLocation(t, repo, "L-"+suffix, w.warehouse.ID)
	return w
}

func addLocation(t *testing.T, repo *repository.Repository, code string, warehouseID uuid.UUID) models.Location {
	t.Helper()
	wid := warehouseID
	loc := models.Location{Code: code, Name: code, IsActive: true, WarehouseID: &wid}
	if err := repo.Locations.Create(context.Background(), &loc); err != nil {
		t.Fatalf("create location: %v", err)
	}
	return loc
}

func q(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func expectLevel(t *testing.T, got service.StockLevel, quantity, reserved, available string) {
	t.Helper()
	if !got.Quantity.Equal(q(quantity)) || !got.Reserved.Equal(q(reserved)) || !got.Available.Equal(q(available)) {
		t.Fatalf("expected %s/%s/%s, got %s/%s/%s", quantity, reserved, available,
			got.Quantity, got.Reserved, got.Available)
	}
}

func slotLevel(t *testing.T, repo *repository.Repository, productID, locationID uuid.UUID) *models.Inventory {
	t.Helper()
	inv, err := repo.Inventory.Get(context.Background(), repository.SlotKey{ProductID: productID, LocationID: locationID})
	if err != nil {
		t.Fatalf("get slot: %v", err)
	}
	return inv
}

// MockEventBus
type MockEventBus struct {
	mu                   sync.Mutex
	Events               []service.MovementEvent
	PublishMovementsFunc func(ctx context.Context, events []service.MovementEvent) error
}

func (m *MockEventBus) PublishMovements(ctx context.Context, events []service.MovementEvent) error {
	m.mu.Lock()
	m.Events = append(m.Events, events...)
	m.mu.Unlock()
	if m.PublishMovementsFunc != nil {
		return m.PublishMovementsFunc(ctx, events)
	}
	return nil
}

func (m *MockEventBus) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Events)
}

// MockStockCache: кэш в памяти с поколениями ключей, как у Redis-реализации.
// BeforeFill вызывается без блокировки, поэтому может сам дёргать сервис.
type MockStockCache struct {
	mu          sync.Mutex
	entries     map[repository.SlotKey]service.StockLevel
	gens        map[repository.SlotKey]int64
	Invalidated int
	Fills       int

	GetFunc        func(ctx context.Context, productID, locationID uuid.UUID) (service.StockLevel, bool, error)
	BeforeFill     func()
	InvalidateFunc func(ctx context.Context, productID, locationID uuid.UUID) error
}

func (m *MockStockCache) Get(ctx context.Context, productID, locationID uuid.UUID) (service.StockLevel, bool, int64, error) {
	k := repository.SlotKey{ProductID: productID, LocationID: locationID}
	m.mu.Lock()
	gen := m.gens[k]
	level, ok := m.entries[k]
	m.mu.Unlock()
	if m.GetFunc != nil {
		level, ok, err := m.GetFunc(ctx, productID, locationID)
		return level, ok, gen, err
	}
	return level, ok, gen, nil
}

func (m *MockStockCache) Fill(ctx context.Context, productID, locationID uuid.UUID, level service.StockLevel, gen int64) (bool, error) {
	if m.BeforeFill != nil {
		m.BeforeFill()
	}
	k := repository.SlotKey{ProductID: productID, LocationID: locationID}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gens[k] != gen {
		return false, nil
	}
	if m.entries == nil {
		m.entries = map[repository.SlotKey]service.StockLevel{}
	}
	m.entries[k] = level
	m.Fills++
	return true, nil
}

func (m *MockStockCache) Invalidate(ctx context.Context, productID, locationID uuid.UUID) error {
	k := repository.SlotKey{ProductID: productID, LocationID: locationID}
	m.mu.Lock()
	m.Invalidated++
	if m.gens == nil {
		m.gens = map[repository.SlotKey]int64{}
	}
	m.gens[k]++
	delete(m.entries, k)
	m.mu.Unlock()
	if m.InvalidateFunc != nil {
		return m.InvalidateFunc(ctx, productID, locationID)
	}
	return nil
}
