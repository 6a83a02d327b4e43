package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrRetriesExhausted: транзакция так и не прошла из-за конфликтов блокировок/сериализации.
var ErrRetriesExhausted = errors.New("transaction retries exhausted")

type TxOptions struct {
	LockTimeout time.Duration // SET LOCAL lock_timeout; 0 без ограничения
	MaxRetries  int           // повторы после первой попытки
	Backoff     time.Duration // базовая пауза, растёт линейно
	OnRetry     func(attempt int, err error)
}

func DefaultTxOptions() TxOptions {
	return TxOptions{
		LockTimeout: 5 * time.Second,
		MaxRetries:  3,
		Backoff:     20 * time.Millisecond,
	}
}

type Repository struct {
	DB         *gorm.DB
	Categories CategoryRepo
	Products   ProductRepo
	Warehouses WarehouseRepo
	Locations  LocationRepo
	Inventory  InventoryRepo
	Movements  MovementRepo
	Orders     ProductionOrderRepo
	OrderItems ProductionOrderItemRepo

	opts TxOptions
}

func buildRepository(db *gorm.DB, opts TxOptions) *Repository {
	return &Repository{
		DB:         db,
		Categories: NewCategoryRepo(db),
		Products:   NewProductRepo(db),
		Warehouses: NewWarehouseRepo(db),
		Locations:  NewLocationRepo(db),
		Inventory:  NewInventoryRepo(db),
		Movements:  NewMovementRepo(db),
		Orders:     NewProductionOrderRepo(db),
		OrderItems: NewProductionOrderItemRepo(db),
		opts:       opts,
	}
}

func New(db *gorm.DB) *Repository { return buildRepository(db, DefaultTxOptions()) }

func NewWithOptions(db *gorm.DB, opts TxOptions) *Repository { return buildRepository(db, opts) }

// WithTx выполняет fn в одной транзакции на весь набор репо. Конфликты
// (serialization failure, deadlock, lock timeout) повторяются не более MaxRetries раз,
// любая другая ошибка fn откатывает транзакцию и возвращается как есть.
// fn может вызываться несколько раз, поэтому не должна иметь внешних побочных эффектов.
func (r *Repository) WithTx(ctx context.Context, fn func(tx *Repository) error) error {
	var err error
	for attempt := 0; attempt <= r.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if r.opts.OnRetry != nil {
				r.opts.OnRetry(attempt, err)
			}
			if werr := sleepCtx(ctx, time.Duration(attempt)*r.opts.Backoff); werr != nil {
				return werr
			}
		}

		err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if r.opts.LockTimeout > 0 {
				stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.opts.LockTimeout.Milliseconds())
				if err := tx.Exec(stmt).Error; err != nil {
					return err
				}
			}
			return fn(buildRepository(tx, r.opts))
		})
		if err == nil || !IsTransient(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrRetriesExhausted, err)
}

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
	sqlStateUniqueViolation      = "23505"
)

// IsTransient сообщает, имеет ли смысл повторить транзакцию целиком.
func IsTransient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable:
		return true
	}
	return false
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlStateUniqueViolation
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
