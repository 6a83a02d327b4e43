package importer

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"warehouse-service/internal/models"

	"github.com/shopspring/decimal"
)

// ProductRecord: описательные поля товара из файла. Пустые строки означают NULL.
type ProductRecord struct {
	SKU           string
	Name          string
	Type          models.ProductType
	Description   string
	Brand         string
	ReferenceCode string
	ImageURL      string
	Category      string
	Attributes    string // JSON
	BaseCost      decimal.NullDecimal
	Price         decimal.NullDecimal
}

// Item: товар и желаемые остатки по кодам локаций ("" означает без локации).
type Item struct {
	Product    ProductRecord
	Quantities map[string]decimal.Decimal
	Locations  []string // в порядке первого появления
}

type Batch struct {
	Rows  int
	Items []*Item
}

// ValidationError собирает все проблемы файла, а не только первую.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	const show = 5
	head := e.Problems
	if len(head) > show {
		head = head[:show]
	}
	msg := fmt.Sprintf("csv validation failed (%d problems): %s", len(e.Problems), strings.Join(head, "; "))
	if len(e.Problems) > show {
		msg += "; ..."
	}
	return msg
}

var (
	reReferenceCode = regexp.MustCompile(`(?i)^reference[_\s-]?code$`)
	reImageURL      = regexp.MustCompile(`(?i)^image[_\s-]?url$`)
)

func normalizeHeader(key string) string {
	k := strings.TrimSpace(key)
	switch {
	case reReferenceCode.MatchString(k):
		return "referencecode"
	case reImageURL.MatchString(k):
		return "imageurl"
	}
	return strings.ToLower(k)
}

// parseNumber: запятая считается десятичным разделителем, только если в строке нет точки.
func parseNumber(s string) (decimal.NullDecimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d.Round(4)), nil
}

// parseAttributes сохраняет валидный JSON компактно, иначе оборачивает строку в {"raw": ...}.
func parseAttributes(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	var buf bytes.Buffer
	if json.Valid([]byte(s)) {
		if err := json.Compact(&buf, []byte(s)); err == nil {
			return buf.String()
		}
	}
	raw, _ := json.Marshal(map[string]string{"raw": s})
	return string(raw)
}

func asProductType(s string) (models.ProductType, bool) {
	t := models.ProductType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case models.ProductTypeHose, models.ProductTypeFitting, models.ProductTypeAssembly, models.ProductTypeAccessory:
		return t, true
	}
	return "", false
}

// Parse читает CSV с заголовком. Повторяющиеся SKU сливаются: описание берётся из
// первой строки, количества суммируются по локациям.
func Parse(r io.Reader) (*Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &Batch{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := cols[normalizeHeader(h)]; !dup {
			cols[normalizeHeader(h)] = i
		}
	}

	var (
		problems []string
		batch    = &Batch{}
		bySKU    = map[string]*Item{}
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		get := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		if isBlank(rec) {
			continue
		}
		batch.Rows++

		sku, name := get("sku"), get("name")
		typ, typeOK := asProductType(get("type"))
		if sku == "" {
			problems = append(problems, fmt.Sprintf("Line %d: missing sku", line))
		}
		if name == "" {
			problems = append(problems, fmt.Sprintf("Line %d: missing name", line))
		}
		if !typeOK {
			problems = append(problems, fmt.Sprintf("Line %d: invalid type (must be HOSE|FITTING|ASSEMBLY|ACCESSORY)", line))
		}
		if sku == "" || name == "" || !typeOK {
			continue
		}

		baseCost, err := parseNumber(get("base_cost"))
		if err != nil {
			problems = append(problems, fmt.Sprintf("Line %d: invalid base_cost %q", line, get("base_cost")))
		}
		price, err := parseNumber(get("price"))
		if err != nil {
			problems = append(problems, fmt.Sprintf("Line %d: invalid price %q", line, get("price")))
		}
		qty, err := parseNumber(get("quantity"))
		if err != nil || (qty.Valid && qty.Decimal.IsNegative()) {
			problems = append(problems, fmt.Sprintf("Line %d: invalid quantity %q", line, get("quantity")))
			continue
		}

		pr := ProductRecord{
			SKU:           sku,
			Name:          name,
			Type:          typ,
			Description:   get("description"),
			Brand:         get("brand"),
			ReferenceCode: get("referencecode"),
			ImageURL:      get("imageurl"),
			Category:      get("category"),
			Attributes:    parseAttributes(get("attributes")),
			BaseCost:      baseCost,
			Price:         price,
		}

		it, seen := bySKU[sku]
		if !seen {
			it = &Item{Product: pr, Quantities: map[string]decimal.Decimal{}}
			bySKU[sku] = it
			batch.Items = append(batch.Items, it)
		} else {
			problems = append(problems, conflicts(line, it.Product, pr)...)
		}

		loc := get("location")
		if _, ok := it.Quantities[loc]; !ok {
			it.Locations = append(it.Locations, loc)
			it.Quantities[loc] = decimal.Zero
		}
		if qty.Valid {
			it.Quantities[loc] = it.Quantities[loc].Add(qty.Decimal)
		}
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return batch, nil
}

func conflicts(line int, prev, cur ProductRecord) []string {
	var out []string
	check := func(field, a, b string) {
		if a != "" && b != "" && a != b {
			out = append(out, fmt.Sprintf("Line %d: sku %s has conflicting %s (%s vs %s)", line, cur.SKU, field, a, b))
		}
	}
	check("name", prev.Name, cur.Name)
	check("type", string(prev.Type), string(cur.Type))
	check("brand", prev.Brand, cur.Brand)
	check("category", prev.Category, cur.Category)
	return out
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
