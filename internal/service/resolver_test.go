package service_test

import (
	"context"
	"errors"
	"testing"

	"warehouse-service/internal/service"

	"go.uber.org/zap"
)

func TestResolver_Codes(t *testing.T) {
	repo := setupRepo(t)
	w := seedWorld(t, repo, "RES")
	ctx := context.Background()

	ref := "REF-RES-1"
	w.product.ReferenceCode = &ref
	if err := repo.DB.Save(&w.product).Error; err != nil {
		t.Fatalf("save product: %v", err)
	}
	r := service.NewResolver(repo, zap.NewNop())

	for _, code := range []string{"P-RES", " REF-RES-1 "} {
		id, err := r.ProductByCode(ctx, code)
		if err != nil || id != w.product.ID {
			t.Fatalf("ProductByCode(%q) = %s, %v", code, id, err)
		}
	}
	if _, err := r.ProductByCode(ctx, "NOPE"); !errors.Is(err, service.ErrProductRequired) {
		t.Fatalf("expected ErrProductRequired, got %v", err)
	}
	if _, err := r.ProductByCode(ctx, ""); !errors.Is(err, service.ErrProductRequired) {
		t.Fatalf("expected ErrProductRequired for blank code, got %v", err)
	}

	id, err := r.LocationByCode(ctx, "L-RES")
	if err != nil || id != w.location.ID {
		t.Fatalf("LocationByCode = %s, %v", id, err)
	}
	if _, err := r.LocationByCode(ctx, "L-NOPE"); !errors.Is(err, service.ErrLocationNotFound) {
		t.Fatalf("expected ErrLocationNotFound, got %v", err)
	}
}
