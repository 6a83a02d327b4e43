package grpc

import (
	"errors"
	"strings"
	"time"

	"warehouse-service/internal/models"
	"warehouse-service/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/structpb"
)

func field(in *structpb.Struct, key string) *structpb.Value {
	return in.GetFields()[key]
}

func has(in *structpb.Struct, key string) bool {
	v, ok := in.GetFields()[key]
	if !ok {
		return false
	}
	_, isNull := v.GetKind().(*structpb.Value_NullValue)
	return !isNull
}

func str(in *structpb.Struct, key string) string {
	return strings.TrimSpace(field(in, key).GetStringValue())
}

// uuidOf: отсутствующее поле даёт uuid.Nil, дальше ядро само вернёт *_REQUIRED.
func uuidOf(in *structpb.Struct, key string) (uuid.UUID, error) {
	s := str(in, key)
	if s == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, invalidArg(key, err)
	}
	return id, nil
}

// quantityOf принимает и число, и строку ("2,5" тоже).
func quantityOf(in *structpb.Struct, key string) (decimal.Decimal, error) {
	v := field(in, key)
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		return service.QuantityFromFloat(k.NumberValue)
	case *structpb.Value_StringValue:
		return service.ParseQuantity(k.StringValue)
	default:
		return decimal.Zero, service.ErrInvalidQuantity
	}
}

func intOf(in *structpb.Struct, key string) (int, error) {
	v := field(in, key)
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != float64(int(n.NumberValue)) {
		return 0, invalidArg(key, errors.New("integer expected"))
	}
	return int(n.NumberValue), nil
}

func timeOf(in *structpb.Struct, key string) (*time.Time, error) {
	s := str(in, key)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, invalidArg(key, err)
	}
	return &t, nil
}

func statusOf(in *structpb.Struct, key string) models.ProductionStatus {
	return models.ProductionStatus(strings.ToUpper(str(in, key)))
}

func page(in *structpb.Struct) (limit, offset int, err error) {
	if has(in, "limit") {
		if limit, err = intOf(in, "limit"); err != nil {
			return 0, 0, err
		}
	}
	if has(in, "offset") {
		if offset, err = intOf(in, "offset"); err != nil {
			return 0, 0, err
		}
	}
	return limit, offset, nil
}

func levelMap(l service.StockLevel) map[string]any {
	return map[string]any{
		"quantity":  l.Quantity.String(),
		"reserved":  l.Reserved.String(),
		"available": l.Available.String(),
	}
}

func optString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func optTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func movementMap(m models.InventoryMovement) map[string]any {
	out := map[string]any{
		"id":         m.ID.String(),
		"type":       string(m.Type),
		"product_id": m.ProductID.String(),
		"quantity":   m.Quantity.String(),
		"reference":  optString(m.Reference),
		"notes":      optString(m.Notes),
		"created_at": m.CreatedAt.UTC().Format(time.RFC3339),
	}
	if m.LocationID != nil {
		out["location_id"] = m.LocationID.String()
	} else {
		out["location_id"] = nil
	}
	return out
}

func itemMap(it models.ProductionOrderItem) map[string]any {
	return map[string]any{
		"id":          it.ID.String(),
		"product_id":  it.ProductID.String(),
		"location_id": it.LocationID.String(),
		"quantity":    it.Quantity.String(),
	}
}

func orderMap(o *models.ProductionOrder) map[string]any {
	items := make([]any, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, itemMap(it))
	}
	return map[string]any{
		"id":            o.ID.String(),
		"code":          o.Code,
		"status":        string(o.Status),
		"warehouse_id":  o.WarehouseID.String(),
		"customer_name": optString(o.CustomerName),
		"priority":      o.Priority,
		"due_date":      optTime(o.DueDate),
		"notes":         optString(o.Notes),
		"created_at":    o.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":    o.UpdatedAt.UTC().Format(time.RFC3339),
		"items":         items,
	}
}

func reply(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, err
	}
	return out, nil
}
