package importer

import (
	"errors"
	"strings"
	"testing"

	"warehouse-service/internal/models"

	"github.com/shopspring/decimal"
)

func TestParse_AggregatesBySKUAndLocation(t *testing.T) {
	csvText := "\xEF\xBB\xBFSKU,Name,Type,Reference_Code,imageUrl,quantity,location,price,attributes,category\n" +
		"H-1,Hose 1/4,hose,REF-1,http://img/1.png,\"2,5\",A-01,10.50,\"{\"\"psi\"\": 3263}\",Hoses\n" +
		"H-1,Hose 1/4,HOSE,,,1.5,A-01,,,\n" +
		"H-1,Hose 1/4,HOSE,,,4,,,,\n" +
		"\n" +
		"F-9,Fitting,FITTING,,,,B-02,,not json,\n"

	b, err := Parse(strings.NewReader(csvText))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if b.Rows != 4 || len(b.Items) != 2 {
		t.Fatalf("expected 4 rows and 2 skus, got %d/%d", b.Rows, len(b.Items))
	}

	hose := b.Items[0]
	if hose.Product.SKU != "H-1" || hose.Product.Type != models.ProductTypeHose {
		t.Fatalf("unexpected product %+v", hose.Product)
	}
	if hose.Product.ReferenceCode != "REF-1" || hose.Product.ImageURL != "http://img/1.png" {
		t.Fatalf("normalized headers not applied: %+v", hose.Product)
	}
	if hose.Product.Attributes != `{"psi":3263}` {
		t.Fatalf("expected compact JSON attributes, got %s", hose.Product.Attributes)
	}
	if !hose.Product.Price.Valid || !hose.Product.Price.Decimal.Equal(decimal.RequireFromString("10.5")) {
		t.Fatalf("unexpected price %+v", hose.Product.Price)
	}
	if !hose.Quantities["A-01"].Equal(decimal.RequireFromString("4")) {
		t.Fatalf("expected A-01 aggregated to 4, got %s", hose.Quantities["A-01"])
	}
	if !hose.Quantities[""].Equal(decimal.RequireFromString("4")) {
		t.Fatalf("expected blank location 4, got %s", hose.Quantities[""])
	}
	if len(hose.Locations) != 2 || hose.Locations[0] != "A-01" {
		t.Fatalf("expected first-seen location order, got %v", hose.Locations)
	}

	fitting := b.Items[1]
	if fitting.Product.Attributes != `{"raw":"not json"}` {
		t.Fatalf("expected raw-wrapped attributes, got %s", fitting.Product.Attributes)
	}
	if !fitting.Quantities["B-02"].IsZero() {
		t.Fatalf("blank quantity is zero, got %s", fitting.Quantities["B-02"])
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	csvText := "sku,name,type,brand\n" +
		",Nameless,HOSE,\n" +
		"X-1,,PIPE,\n" +
		"X-2,Two,HOSE,Acme\n" +
		"X-2,Two,HOSE,Other\n"

	_, err := Parse(strings.NewReader(csvText))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := []string{
		"Line 2: missing sku",
		"Line 3: missing name",
		"Line 3: invalid type (must be HOSE|FITTING|ASSEMBLY|ACCESSORY)",
		"Line 5: sku X-2 has conflicting brand (Acme vs Other)",
	}
	if len(verr.Problems) != len(want) {
		t.Fatalf("expected %d problems, got %v", len(want), verr.Problems)
	}
	for i := range want {
		if verr.Problems[i] != want[i] {
			t.Fatalf("problem %d: got %q, want %q", i, verr.Problems[i], want[i])
		}
	}
}

func TestParse_InvalidQuantity(t *testing.T) {
	_, err := Parse(strings.NewReader("sku,name,type,quantity\nA,B,HOSE,-3\nC,D,HOSE,abc\n"))
	var verr *ValidationError
	if !errors.As(err, &verr) || len(verr.Problems) != 2 {
		t.Fatalf("expected two quantity problems, got %v", err)
	}
}

func TestParse_Empty(t *testing.T) {
	b, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Parse empty: %v", err)
	}
	if b.Rows != 0 || len(b.Items) != 0 {
		t.Fatalf("expected empty batch, got %+v", b)
	}
}

func TestNormalizeHeader(t *testing.T) {
	cases := map[string]string{
		"referenceCode":  "referencecode",
		"reference_code": "referencecode",
		"Reference Code": "referencecode",
		"image-url":      "imageurl",
		" SKU ":          "sku",
		"Base_Cost":      "base_cost",
	}
	for in, want := range cases {
		if got := normalizeHeader(in); got != want {
			t.Fatalf("normalizeHeader(%q) = %q, want %q", in, got, want)
		}
	}
}
