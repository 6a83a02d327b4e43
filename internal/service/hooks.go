package service

import (
	"context"
	"errors"
	"fmt"

	"warehouse-service/internal/models"
	"warehouse-service/internal/repository"

	"go.uber.org/zap"
)

type Option func(*ledgerHooks)

// WithStockCache включает кэш остатков; без него GetStock всегда читает БД.
func WithStockCache(c StockCache) Option {
	return func(h *ledgerHooks) { h.cache = c }
}

func WithEventBus(b EventBus) Option {
	return func(h *ledgerHooks) { h.bus = b }
}

// ledgerHooks: всё, что происходит после коммита: сброс кэша и публикация движений.
type ledgerHooks struct {
	cache StockCache
	bus   EventBus
	log   *zap.Logger
}

func newHooks(log *zap.Logger, opts []Option) ledgerHooks {
	if log == nil {
		log = zap.NewNop()
	}
	h := ledgerHooks{log: log}
	for _, o := range opts {
		o(&h)
	}
	return h
}

func (h ledgerHooks) afterCommit(ctx context.Context, keys []repository.SlotKey, events []MovementEvent) {
	if h.cache != nil {
		for _, k := range keys {
			if err := h.cache.Invalidate(ctx, k.ProductID, k.LocationID); err != nil {
				h.log.Warn("stock cache invalidate failed",
					zap.String("product_id", k.ProductID.String()),
					zap.String("location_id", k.LocationID.String()),
					zap.Error(err))
			}
		}
	}
	if h.bus != nil && len(events) > 0 {
		if err := h.bus.PublishMovements(ctx, events); err != nil {
			h.log.Warn("movement events publish failed", zap.Int("count", len(events)), zap.Error(err))
		}
	}
}

// txError приводит ошибку транзакции к таксономии: LedgerError как есть,
// исчерпанные повторы в ErrConcurrentConflict, остальное оборачивается с именем операции.
func (h ledgerHooks) txError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case IsLedgerError(err):
		return err
	case errors.Is(err, repository.ErrRetriesExhausted):
		h.log.Warn(op+": retries exhausted", zap.Error(err))
		return ErrConcurrentConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	default:
		h.log.Error(op+" failed", zap.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}
}

func eventOf(m models.InventoryMovement, level StockLevel) MovementEvent {
	ev := MovementEvent{
		MovementID: m.ID,
		Type:       m.Type,
		ProductID:  m.ProductID,
		Quantity:   m.Quantity,
		Level:      level,
		OccurredAt: m.CreatedAt,
	}
	if m.LocationID != nil {
		ev.LocationID = *m.LocationID
	}
	if m.Reference != nil {
		ev.Reference = *m.Reference
	}
	return ev
}
