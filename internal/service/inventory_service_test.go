package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"warehouse-service/internal/models"
	"warehouse-service/internal/repository"
	"warehouse-service/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestInventory_ReceiveAccumulates(t *testing.T) {
	repo := setupRepo(t)
	w := seedWorld(t, repo, "A")
	svc := service.NewInventoryService(repo, zap.NewNop())
	ctx := context.Background()

	if _, err := svc.Receive(ctx, w.product.ID, w.location.ID, q("5"), "PO-100", service.ReceiveMeta{}); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	level, err := svc.Receive(ctx, w.product.ID, w.location.ID, q("3"), "  ", service.ReceiveMeta{
		Notes: "second pallet",
		File:  &service.AttachedFile{Path: "/docs/inv.pdf", Name: "inv.pdf", Mime: "application/pdf", Size: 2048},
	})
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	expectLevel(t, level, "8", "0", "8")

	cnt, _ := repo.Inventory.CountByKey(ctx, repository.SlotKey{ProductID: w.product.ID, LocationID: w.location.ID})
	if cnt != 1 {
		t.Fatalf("expected exactly one slot, got %d", cnt)
	}

	in := models.MovementIn
	list, total, err := svc.ListMovements(ctx, service.MovementFilter{ProductID: &w.product.ID, Type: &in})
	if err != nil {
		t.Fatalf("ListMovements: %v", err)
	}
	if total != 2 || len(list) != 2 {
		t.Fatalf("expected 2 IN movements, got %d", total)
	}
	var withFile *models.InventoryMovement
	for i := range list {
		if list[i].ReferenceFileName != nil {
			withFile = &list[i]
		}
	}
	if withFile == nil || withFile.Reference != nil || *withFile.ReferenceFileSize != 2048 {
		t.Fatalf("expected file metadata and NULL reference on second movement, got %+v", withFile)
	}
}

func TestInventory_PickAdmissionControl(t *testing.T) {
	repo := setupRepo(t)
	w := seedWorld(t, repo, "B")
	svc := service.NewInventoryService(repo, zap.NewNop())
	ctx := context.Background()

	if _, err := svc.Receive(ctx, w.product.ID, w.location.ID, q("5"), "", service.ReceiveMeta{}); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	level, err := svc.Pick(ctx, w.product.ID, w.location.ID, q("3"), "SO-1", service.PickMeta{Notes: "line 1"})
	if err != nil {
		t.Fatalf("Pick: %v", err)
	}
	expectLevel(t, level, "2", "0", "2")

	if _, err := svc.Pick(ctx, w.product.ID, w.location.ID, q("5"), "SO-2", service.PickMeta{}); !errors.Is(err, service.ErrInsufficientAvailable) {
		t.Fatalf("expected ErrInsufficientAvailable, got %v", err)
	}
	stock, err := svc.GetStock(ctx, w.product.ID, w.location.ID)
	if err != nil {
		t.Fatalf("GetStock: %v", err)
	}
	expectLevel(t, stock, "2", "0", "2")

	out := models.MovementOut
	_, total, _ := svc.ListMovements(ctx, service.MovementFilter{ProductID: &w.product.ID, Type: &out})
	if total != 1 {
		t.Fatalf("failed pick must not append a movement, got %d OUT", total)
	}
}

func TestInventory_PickMissingSlot(t *testing.T) {
	repo := setupRepo(t)
	w := seedWorld(t, repo, "PM")
	svc := service.NewInventoryService(repo, zap.NewNop())

	_, err := svc.Pick(context.Background(), w.product.ID, w.location.ID, q("1"), "", service.PickMeta{})
	if !errors.Is(err, service.ErrInventoryNotFound) {
		t.Fatalf("expected ErrInventoryNotFound, got %v", err)
	}
	if slotLevel(t, repo, w.product.ID, w.location.ID) != nil {
		t.Fatal("pick must not create a slot")
	}
}

func TestInventory_AdjustNegativeOnAbsentSlot(t *testing.T) {
	repo := setupRepo(t)
	w := seedWorld(t, repo, "C")
	svc := service.NewInventoryService(repo, zap.NewNop())

	_, err := svc.Adjust(context.Background(), w.product.ID, w.location.ID, q("-10"), "correction")
	if !errors.Is(err, service.ErrNegativeStock) {
		t.Fatalf("expected ErrNegativeStock, got %v", err)
	}
	if slotLevel(t, repo, w.product.ID, w.location.ID) != nil {
		t.Fatal("expected no slot created")
	}
}

func TestInventory_AdjustRules(t *testing.T) {
	repo := setupRepo(t)
	w := seedWorld(t, repo, "ADJ")
	svc := service.NewInventoryService(repo, zap.NewNop())
	ctx := context.Background()

	level, err := svc.Adjust(ctx, w.product.ID, w.location.ID, q("4"), "count")
	if err != nil {
		t.Fatalf("Adjust positive on absent slot: %v", err)
	}
	expectLevel(t, level, "4", "0", "4")

	if _, err := svc.Adjust(ctx, w.product.ID, w.location.ID, decimal.Zero, "count"); !errors.Is(err, service.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity for zero delta, got %v", err)
	}
	if _, err := svc.Adjust(ctx, w.product.ID, w.location.ID, q("1"), "   "); !errors.Is(err, service.ErrInvalidReason) {
		t.Fatalf("expected ErrInvalidReason, got %v", err)
	}
	if _, err := svc.Adjust(ctx, w.product.ID, w.location.ID, q("-5"), "count"); !errors.Is(err, service.ErrNegativeStock) {
		t.Fatalf("expected ErrNegativeStock, got %v", err)
	}

	adj := models.MovementAdjustment
	list, _, _ := svc.ListMovements(ctx, service.MovementFilter{ProductID: &w.product.ID, Type: &adj})
	if len(list) != 1 || !list[0].Quantity.Equal(q("4")) || list[0].Notes == nil || *list[0].Notes != "count" {
		t.Fatalf("expected one ADJUSTMENT carrying delta and reason, got %+v", list)
	}
}

func TestInventory_ValidationBeforeStorage(t *testing.T) {
	repo := setupRepo(t)
	svc := service.NewInventoryService(repo, nil)
	ctx := context.Background()
	pid, lid := uuid.New(), uuid.New()

	if _, err := svc.Receive(ctx, uuid.Nil, lid, q("1"), "", service.ReceiveMeta{}); !errors.Is(err, service.ErrProductRequired) {
		t.Fatalf("expected ErrProductRequired, got %v", err)
	}
	if _, err := svc.Receive(ctx, pid, uuid.Nil, q("1"), "", service.ReceiveMeta{}); !errors.Is(err, service.ErrLocationRequired) {
		t.Fatalf("expected ErrLocationRequired, got %v", err)
	}
	if _, err := svc.Receive(ctx, pid, lid, q("-1"), "", service.ReceiveMeta{}); !errors.Is(err, service.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := svc.Pick(ctx, pid, lid, decimal.Zero, "", service.PickMeta{}); !errors.Is(err, service.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestInventory_RoundTrip(t *testing.T) {
	repo := setupRepo(t)
	w := seedWorld(t, repo, "RT")
	svc := service.NewInventoryService(repo, zap.NewNop())
	ctx := context.Background()

	if _, err := svc.Receive(ctx, w.product.ID, w.location.ID, q("2.75"), "", service.ReceiveMeta{}); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	level, err := svc.Pick(ctx, w.product.ID, w.location.ID, q("2.75"), "", service.PickMeta{})
	if err != nil {
		t.Fatalf("Pick: %v", err)
	}
	expectLevel(t, level, "0", "0", "0")
}

func TestInventory_ConcurrentPicks(t *testing.T) {
	repo := setupRepo(t)
	w := seedWorld(t, repo, "CC")
	svc := service.NewInventoryService(repo, zap.NewNop())
	ctx := context.Background()

	const n = 8
	if _, err := svc.Receive(ctx, w.product.ID, w.location.ID, q("14"), "", service.ReceiveMeta{}); err != nil {
		t.Fatalf("Receive: %v", err)
	}

	var (
		wg           sync.WaitGroup
		successCount int64
		rejectCount  int64
		mu           sync.Mutex
		otherErrs    []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Pick(ctx, w.product.ID, w.location.ID, q("2"), "", service.PickMeta{})
			switch {
			case err == nil:
				atomic.AddInt64(&successCount, 1)
			case errors.Is(err, service.ErrInsufficientAvailable):
				atomic.AddInt64(&rejectCount, 1)
			default:
				mu.Lock()
				otherErrs = append(otherErrs, err)
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if len(otherErrs) > 0 {
		t.Fatalf("unexpected errors: %v", otherErrs)
	}
	if successCount != n-1 || rejectCount != 1 {
		t.Fatalf("expected %d successes and 1 rejection, got %d/%d", n-1, successCount, rejectCount)
	}

	inv := slotLevel(t, repo, w.product.ID, w.location.ID)
	if !inv.Quantity.IsZero() || !inv.Available.IsZero() {
		t.Fatalf("expected empty slot, got %+v", inv)
	}
}

func TestInventory_AfterCommitHooks(t *testing.T) {
	repo := setupRepo(t)
	w := seedWorld(t, repo, "HK")
	bus := &MockEventBus{PublishMovementsFunc: func(ctx context.Context, events []service.MovementEvent) error {
		return errors.New("broker down")
	}}
	cache := &MockStockCache{}
	svc := service.NewInventoryService(repo, zap.NewNop(), service.WithEventBus(bus), service.WithStockCache(cache))
	ctx := context.Background()

	level, err := svc.Receive(ctx, w.product.ID, w.location.ID, q("3"), "GRN-7", service.ReceiveMeta{})
	if err != nil {
		t.Fatalf("publish failure must not fail a committed receive: %v", err)
	}
	expectLevel(t, level, "3", "0", "3")

	if bus.Count() != 1 || cache.Invalidated != 1 {
		t.Fatalf("expected 1 event and 1 invalidation, got %d/%d", bus.Count(), cache.Invalidated)
	}
	ev := bus.Events[0]
	if ev.Type != models.MovementIn || ev.Reference != "GRN-7" || ev.LocationID != w.location.ID {
		t.Fatalf("unexpected event %+v", ev)
	}

	if _, err := svc.Pick(ctx, w.product.ID, w.location.ID, q("9"), "", service.PickMeta{}); err == nil {
		t.Fatal("expected pick failure")
	}
	if bus.Count() != 1 {
		t.Fatal("rolled back operations must not publish")
	}
}

func TestInventory_GetStockUsesCache(t *testing.T) {
	repo := setupRepo(t)
	svc := service.NewInventoryService(repo, zap.NewNop(), service.WithStockCache(&MockStockCache{
		GetFunc: func(ctx context.Context, productID, locationID uuid.UUID) (service.StockLevel, bool, error) {
			return service.StockLevel{Quantity: q("9"), Reserved: q("1"), Available: q("8")}, true, nil
		},
	}))

	level, err := svc.GetStock(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("GetStock: %v", err)
	}
	expectLevel(t, level, "9", "1", "8")

	noCache := service.NewInventoryService(repo, zap.NewNop())
	if _, err := noCache.GetStock(context.Background(), uuid.New(), uuid.New()); !errors.Is(err, service.ErrInventoryNotFound) {
		t.Fatalf("expected ErrInventoryNotFound, got %v", err)
	}
}

func TestInventory_GetStockDropsFillRacingACommit(t *testing.T) {
	repo := setupRepo(t)
	w := seedWorld(t, repo, "RC")
	cache := &MockStockCache{}
	svc := service.NewInventoryService(repo, zap.NewNop(), service.WithStockCache(cache))
	ctx := context.Background()

	if _, err := svc.Receive(ctx, w.product.ID, w.location.ID, q("5"), "", service.ReceiveMeta{}); err != nil {
		t.Fatalf("Receive: %v", err)
	}

	// приход коммитится после чтения из БД, но до заполнения кэша
	var raced bool
	cache.BeforeFill = func() {
		if raced {
			return
		}
		raced = true
		if _, err := svc.Receive(ctx, w.product.ID, w.location.ID, q("2"), "", service.ReceiveMeta{}); err != nil {
			t.Errorf("racing Receive: %v", err)
		}
	}
	level, err := svc.GetStock(ctx, w.product.ID, w.location.ID)
	if err != nil {
		t.Fatalf("GetStock: %v", err)
	}
	expectLevel(t, level, "5", "0", "5")
	if cache.Fills != 0 {
		t.Fatalf("stale snapshot was cached (%d fills)", cache.Fills)
	}

	cache.BeforeFill = nil
	level, err = svc.GetStock(ctx, w.product.ID, w.location.ID)
	if err != nil {
		t.Fatalf("GetStock: %v", err)
	}
	expectLevel(t, level, "7", "0", "7")
	if cache.Fills != 1 {
		t.Fatalf("expected the fresh snapshot to be cached, fills=%d", cache.Fills)
	}

	level, err = svc.GetStock(ctx, w.product.ID, w.location.ID)
	if err != nil {
		t.Fatalf("GetStock: %v", err)
	}
	expectLevel(t, level, "7", "0", "7")
}

func TestInventory_QuantityOverflowIsLedgerError(t *testing.T) {
	repo := setupRepo(t)
	w := seedWorld(t, repo, "OV")
	svc := service.NewInventoryService(repo, zap.NewNop())
	ctx := context.Background()

	nearMax := service.MaxQuantity.Sub(q("1"))
	if _, err := svc.Receive(ctx, w.product.ID, w.location.ID, nearMax, "", service.ReceiveMeta{}); err != nil {
		t.Fatalf("Receive near max: %v", err)
	}
	_, err := svc.Receive(ctx, w.product.ID, w.location.ID, q("2"), "", service.ReceiveMeta{})
	if !errors.Is(err, service.ErrQuantityOverflow) {
		t.Fatalf("expected ErrQuantityOverflow, got %v", err)
	}
	if _, err := svc.Adjust(ctx, w.product.ID, w.location.ID, q("100000000000000"), "recount"); !errors.Is(err, service.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity for out-of-range delta, got %v", err)
	}

	inv := slotLevel(t, repo, w.product.ID, w.location.ID)
	if !inv.Quantity.Equal(nearMax) {
		t.Fatalf("slot changed by rejected receive: %s", inv.Quantity)
	}
}

func TestInventory_AdjustToTarget(t *testing.T) {
	repo := setupRepo(t)
	w := seedWorld(t, repo, "AT")
	bus := &MockEventBus{}
	svc := service.NewInventoryService(repo, zap.NewNop(), service.WithEventBus(bus))
	ctx := context.Background()

	if _, err := svc.Receive(ctx, w.product.ID, w.location.ID, q("5"), "", service.ReceiveMeta{}); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	level, err := svc.AdjustTo(ctx, w.product.ID, w.location.ID, q("3"), "Import")
	if err != nil {
		t.Fatalf("AdjustTo: %v", err)
	}
	expectLevel(t, level, "3", "0", "3")

	adj := models.MovementAdjustment
	list, total, _ := svc.ListMovements(ctx, service.MovementFilter{ProductID: &w.product.ID, Type: &adj})
	if total != 1 || !list[0].Quantity.Equal(q("-2")) {
		t.Fatalf("expected a single -2 adjustment, got %+v", list)
	}

	published := bus.Count()
	level, err = svc.AdjustTo(ctx, w.product.ID, w.location.ID, q("3"), "Import")
	if err != nil {
		t.Fatalf("AdjustTo at target: %v", err)
	}
	expectLevel(t, level, "3", "0", "3")
	if _, total, _ = svc.ListMovements(ctx, service.MovementFilter{ProductID: &w.product.ID, Type: &adj}); total != 1 {
		t.Fatalf("slot already at target must not log a movement, got %d", total)
	}
	if bus.Count() != published {
		t.Fatal("no-op must not publish")
	}

	empty := addLocation(t, repo, "L-AT-EMPTY", w.warehouse.ID)
	level, err = svc.AdjustTo(ctx, w.product.ID, empty.ID, q("0"), "Import cleanup")
	if err != nil {
		t.Fatalf("AdjustTo zero on absent slot: %v", err)
	}
	expectLevel(t, level, "0", "0", "0")
	if slotLevel(t, repo, w.product.ID, empty.ID) != nil {
		t.Fatal("zero target must not create a slot")
	}

	if _, err := svc.AdjustTo(ctx, w.product.ID, w.location.ID, q("-1"), "Import"); !errors.Is(err, service.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := svc.AdjustTo(ctx, w.product.ID, w.location.ID, q("1"), " "); !errors.Is(err, service.ErrInvalidReason) {
		t.Fatalf("expected ErrInvalidReason, got %v", err)
	}
}
