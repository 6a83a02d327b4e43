package importer

import (
	"bytes"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ReasonImport  = "Import"
	ReasonCleanup = "Import cleanup"
)

// Adjustment: Delta посчитана по снимку current, Target задаёт итог для записи.
type Adjustment struct {
	LocationID uuid.UUID
	Delta      decimal.Decimal
	Target     decimal.Decimal
	Reason     string
}

// Plan сводит текущие остатки товара к желаемым: дельта для каждой локации из файла
// и обнуление ячеек, которых в файле нет. Нулевые дельты не планируются, поэтому
// повторный прогон того же файла не даёт ни одной корректировки.
func Plan(current, desired map[uuid.UUID]decimal.Decimal) []Adjustment {
	var out []Adjustment

	for _, loc := range sortedKeys(desired) {
		delta := desired[loc].Sub(current[loc])
		if !delta.IsZero() {
			out = append(out, Adjustment{LocationID: loc, Delta: delta, Target: desired[loc], Reason: ReasonImport})
		}
	}
	for _, loc := range sortedKeys(current) {
		if _, wanted := desired[loc]; wanted {
			continue
		}
		if q := current[loc]; !q.IsZero() {
			out = append(out, Adjustment{LocationID: loc, Delta: q.Neg(), Target: decimal.Zero, Reason: ReasonCleanup})
		}
	}
	return out
}

func sortedKeys(m map[uuid.UUID]decimal.Decimal) []uuid.UUID {
	keys := make([]uuid.UUID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i][:], keys[j][:]) < 0 })
	return keys
}
