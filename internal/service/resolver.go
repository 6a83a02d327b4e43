package service

import (
	"context"
	"strings"

	"warehouse-service/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Resolver переводит коды со сканера в идентификаторы: товар ищется по SKU
// или по reference code, локация по своему коду.
type Resolver interface {
	ProductByCode(ctx context.Context, code string) (uuid.UUID, error)
	LocationByCode(ctx context.Context, code string) (uuid.UUID, error)
}

type codeResolver struct {
	repo *repository.Repository
	ledgerHooks
}

func NewResolver(repo *repository.Repository, log *zap.Logger) *codeResolver {
	return &codeResolver{repo: repo, ledgerHooks: newHooks(log, nil)}
}

func (r *codeResolver) ProductByCode(ctx context.Context, code string) (uuid.UUID, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return uuid.Nil, ErrProductRequired
	}
	p, err := r.repo.Products.FindByCode(ctx, code)
	if err != nil {
		return uuid.Nil, r.txError("product resolve", err)
	}
	if p == nil {
		return uuid.Nil, withDetail(ErrProductRequired, "unknown code "+code)
	}
	return p.ID, nil
}

func (r *codeResolver) LocationByCode(ctx context.Context, code string) (uuid.UUID, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return uuid.Nil, ErrLocationRequired
	}
	l, err := r.repo.Locations.GetByCode(ctx, code)
	if err != nil {
		return uuid.Nil, r.txError("location resolve", err)
	}
	if l == nil {
		return uuid.Nil, withDetail(ErrLocationNotFound, code)
	}
	return l.ID, nil
}
