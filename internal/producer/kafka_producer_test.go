package producer

import (
	"encoding/json"
	"testing"
	"time"

	"warehouse-service/internal/models"
	"warehouse-service/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestBuildMessages(t *testing.T) {
	pid, lid := uuid.New(), uuid.New()
	ev := service.MovementEvent{
		MovementID: uuid.New(),
		Type:       models.MovementOut,
		ProductID:  pid,
		LocationID: lid,
		Quantity:   decimal.RequireFromString("4"),
		Reference:  "PO-D",
		Level:      service.StockLevel{Quantity: decimal.Zero, Reserved: decimal.Zero, Available: decimal.Zero},
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	msgs, err := buildMessages([]service.MovementEvent{ev})
	if err != nil {
		t.Fatalf("buildMessages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if string(msgs[0].Key) != pid.String()+":"+lid.String() {
		t.Fatalf("unexpected key %s", msgs[0].Key)
	}
	if len(msgs[0].Headers) != 1 || string(msgs[0].Headers[0].Value) != "OUT" {
		t.Fatalf("unexpected headers %+v", msgs[0].Headers)
	}

	var body map[string]any
	if err := json.Unmarshal(msgs[0].Value, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["type"] != "OUT" || body["reference"] != "PO-D" || body["quantity"] != "4" {
		t.Fatalf("unexpected payload %v", body)
	}
}
