package service

import (
	"warehouse-service/internal/models"

	"github.com/shopspring/decimal"
)

// StockLevel: тройка счётчиков ячейки. Available всегда считается как Quantity - Reserved.
type StockLevel struct {
	Quantity  decimal.Decimal `json:"quantity"`
	Reserved  decimal.Decimal `json:"reserved"`
	Available decimal.Decimal `json:"available"`
}

func levelOf(inv *models.Inventory) StockLevel {
	if inv == nil {
		return StockLevel{Quantity: decimal.Zero, Reserved: decimal.Zero, Available: decimal.Zero}
	}
	return StockLevel{Quantity: inv.Quantity, Reserved: inv.Reserved, Available: inv.Available}
}

func newLevel(quantity, reserved decimal.Decimal) StockLevel {
	return StockLevel{Quantity: quantity, Reserved: reserved, Available: quantity.Sub(reserved)}
}

func checkInvariants(l StockLevel) error {
	if l.Quantity.IsNegative() {
		return ErrNegativeStock
	}
	if l.Reserved.IsNegative() || l.Reserved.GreaterThan(l.Quantity) {
		return ErrReservedExceedsQuantity
	}
	if !l.Available.Equal(l.Quantity.Sub(l.Reserved)) {
		return ErrReservedExceedsQuantity
	}
	if l.Quantity.GreaterThan(MaxQuantity) {
		return ErrQuantityOverflow
	}
	return nil
}

func applyReceive(cur StockLevel, qty decimal.Decimal) (StockLevel, error) {
	next := newLevel(cur.Quantity.Add(qty), cur.Reserved)
	if next.Reserved.GreaterThan(next.Quantity) {
		return cur, ErrReservedExceedsQuantity
	}
	return next, checkInvariants(next)
}

// applyPick проверяет available до изменения: зарезервированное под заказы отобрать нельзя.
func applyPick(cur StockLevel, qty decimal.Decimal) (StockLevel, error) {
	if cur.Available.LessThan(qty) {
		return cur, ErrInsufficientAvailable
	}
	next := newLevel(cur.Quantity.Sub(qty), cur.Reserved)
	if next.Reserved.GreaterThan(next.Quantity) {
		return cur, ErrReservedExceedsQuantity
	}
	return next, checkInvariants(next)
}

func applyAdjust(cur StockLevel, delta decimal.Decimal) (StockLevel, error) {
	q := cur.Quantity.Add(delta)
	if q.IsNegative() {
		return cur, ErrNegativeStock
	}
	if q.LessThan(cur.Reserved) {
		return cur, ErrReservedExceedsQuantity
	}
	next := newLevel(q, cur.Reserved)
	return next, checkInvariants(next)
}

func applyReserve(cur StockLevel, qty decimal.Decimal) (StockLevel, error) {
	if cur.Available.LessThan(qty) {
		return cur, ErrInsufficientInventory
	}
	next := newLevel(cur.Quantity, cur.Reserved.Add(qty))
	return next, checkInvariants(next)
}

func applyConsume(cur StockLevel, qty decimal.Decimal) (StockLevel, error) {
	if cur.Quantity.LessThan(qty) || cur.Reserved.LessThan(qty) {
		return cur, ErrInsufficientInventory
	}
	next := newLevel(cur.Quantity.Sub(qty), cur.Reserved.Sub(qty))
	return next, checkInvariants(next)
}

// applyRelease никогда не отказывает по остатку: освобождается min(reserved, qty).
func applyRelease(cur StockLevel, qty decimal.Decimal) StockLevel {
	release := decimal.Min(cur.Reserved, qty)
	if release.IsNegative() {
		release = decimal.Zero
	}
	return newLevel(cur.Quantity, cur.Reserved.Sub(release))
}
