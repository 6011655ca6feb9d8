package mapping

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"deliverydesk/internal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func mkRow(pairs [][2]string) internal.RawRow {
	row := internal.RawRow{Cells: map[string]string{}}
	for _, p := range pairs {
		row.Columns = append(row.Columns, p[0])
		row.Cells[p[0]] = p[1]
	}
	return row
}

func TestResolveSynonyms(t *testing.T) {
	r := NewResolver()
	row := mkRow([][2]string{
		{"Nazwa produktu", "Kabel HDMI"},
		{"Nr LOT", "LOT123456"},
		{"Ilość", "3"},
		{"Cena", "10,50"},
		{"Wartość", "31,50"},
		{"Waluta", "PLN"},
	})

	res := r.Resolve(row)

	if res.ProductName == nil || *res.ProductName != "Kabel HDMI" {
		t.Fatalf("product=%v", res.ProductName)
	}
	if res.LotNumber == nil || *res.LotNumber != "LOT123456" {
		t.Fatalf("lot=%v", res.LotNumber)
	}
	if !res.Quantity.Equal(dec("3")) {
		t.Fatalf("quantity=%s", res.Quantity)
	}
	if !res.Price.Equal(dec("10.5")) {
		t.Fatalf("price=%s", res.Price)
	}
	if !res.Value.Equal(dec("31.5")) {
		t.Fatalf("value=%s", res.Value)
	}
	if res.Currency == nil || *res.Currency != "PLN" {
		t.Fatalf("currency=%v", res.Currency)
	}
	if res.MappedFields[FieldPrice] != "Cena" {
		t.Fatalf("mapped=%v", res.MappedFields)
	}
	if len(res.Diagnostics) != 0 {
		t.Fatalf("diagnostics=%v", res.Diagnostics)
	}
}

func TestResolvePriceFallback(t *testing.T) {
	r := NewResolver()
	row := mkRow([][2]string{
		{"Nazwa", "Mysz"},
		{"Kwota jednostkowa", "25.00"},
	})

	res := r.Resolve(row)

	if !res.Price.Equal(dec("25")) {
		t.Fatalf("price=%s", res.Price)
	}
	if res.MappedFields[FieldPrice] != "Kwota jednostkowa" {
		t.Fatalf("mapped=%v", res.MappedFields)
	}
	found := false
	for _, d := range res.Diagnostics {
		if d.Field == FieldPrice {
			found = true
		}
	}
	if !found {
		t.Fatal("expected fallback diagnostic")
	}
}

func TestResolveValueFallback(t *testing.T) {
	r := NewResolver()
	row := mkRow([][2]string{
		{"Nazwa", "Klawiatura"},
		{"Ilość", "2"},
		{"Cena", "10"},
		{"Kwota całkowita", "20"},
	})

	res := r.Resolve(row)

	if !res.Value.Equal(dec("20")) {
		t.Fatalf("value=%s", res.Value)
	}
	if res.MappedFields[FieldValue] != "Kwota całkowita" {
		t.Fatalf("mapped=%v", res.MappedFields)
	}
}

func TestResolveValueFallbackNeedsPrice(t *testing.T) {
	r := NewResolver()
	row := mkRow([][2]string{
		{"Nazwa", "Monitor"},
		{"Kwota całkowita", "999999"},
	})

	res := r.Resolve(row)

	if _, ok := res.MappedFields[FieldValue]; ok {
		t.Fatalf("mapped=%v", res.MappedFields)
	}
	if !res.Value.IsZero() {
		t.Fatalf("value=%s", res.Value)
	}
}

func TestResolveDefaults(t *testing.T) {
	r := NewResolver()
	row := mkRow([][2]string{
		{"Ilość", "sporo"},
		{"Uwagi", "dostawa poniedziałek"},
	})

	res := r.Resolve(row)

	if !res.Quantity.Equal(dec("1")) {
		t.Fatalf("quantity=%s", res.Quantity)
	}
	if !res.Price.IsZero() || !res.Value.IsZero() {
		t.Fatalf("price=%s value=%s", res.Price, res.Value)
	}
	if res.Additional["Uwagi"] != "dostawa poniedziałek" {
		t.Fatalf("additional=%v", res.Additional)
	}

	var fields []string
	for _, d := range res.Diagnostics {
		fields = append(fields, d.Field)
	}
	wantQty, wantName := false, false
	for _, f := range fields {
		if f == FieldQuantity {
			wantQty = true
		}
		if f == FieldProductName {
			wantName = true
		}
	}
	if !wantQty || !wantName {
		t.Fatalf("diagnostics=%v", res.Diagnostics)
	}
}

func TestResolveDeterministic(t *testing.T) {
	r := NewResolver()
	row := mkRow([][2]string{
		{"Nazwa", "Kabel"},
		{"Ilość", "2"},
		{"Cena", "10"},
		{"Razem netto", "20"},
		{"Uwagi", "x"},
	})

	first := r.Resolve(row)
	second := r.Resolve(row)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("first=%+v second=%+v", first, second)
	}
}

func TestNormalizeColumnName(t *testing.T) {
	if got := NormalizeColumnName("  Nr   LOT "); got != "nrlot" {
		t.Fatalf("got=%s", got)
	}
	if got := NormalizeColumnName("Cena Jednostkowa"); got != "cenajednostkowa" {
		t.Fatalf("got=%s", got)
	}
}
