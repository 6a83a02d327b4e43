package service

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// QuantityScale совпадает с numeric(18,4) в схеме.
const QuantityScale = 4

// MaxQuantity: наибольшее значение, которое помещается в numeric(18,4).
var MaxQuantity = decimal.RequireFromString("99999999999999.9999")

func normalize(q decimal.Decimal) decimal.Decimal {
	return q.Round(QuantityScale)
}

func inRange(q decimal.Decimal) bool {
	return q.Abs().LessThanOrEqual(MaxQuantity)
}

// QuantityFromFloat отклоняет NaN и ±Inf до конвертации: decimal.NewFromFloat на них паникует.
func QuantityFromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, ErrInvalidQuantity
	}
	q := normalize(decimal.NewFromFloat(f))
	if !inRange(q) {
		return decimal.Zero, withDetail(ErrInvalidQuantity, "out of range")
	}
	return q, nil
}

// ParseQuantity принимает и "1.5", и "1,5".
func ParseQuantity(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return decimal.Zero, ErrInvalidQuantity
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, withDetail(ErrInvalidQuantity, s)
	}
	d = normalize(d)
	if !inRange(d) {
		return decimal.Zero, withDetail(ErrInvalidQuantity, "out of range")
	}
	return d, nil
}

func requirePositive(q decimal.Decimal) (decimal.Decimal, error) {
	q = normalize(q)
	if !q.IsPositive() || !inRange(q) {
		return decimal.Zero, ErrInvalidQuantity
	}
	return q, nil
}
