// Package mapping resolves arbitrary supplier spreadsheet columns onto the
// canonical product fields. Column names are matched against multilingual
// synonym tables by exact equality of their normalized form; price and value
// additionally fall back to a numeric-plausibility scan. A resolver never
// fails a row: unresolved fields get defaults and a diagnostic.
package mapping

import (
	"strings"

	"github.com/shopspring/decimal"

	"deliverydesk/internal"
	"deliverydesk/internal/util"
)

const (
	FieldLotNumber    = "lot_number"
	FieldPalletNumber = "pallet_number"
	FieldProductName  = "product_name"
	FieldEANCode      = "ean_code"
	FieldASINCode     = "asin_code"
	FieldQuantity     = "quantity"
	FieldUnit         = "unit"
	FieldPrice        = "price"
	FieldValue        = "value"
	FieldCurrency     = "currency"
)

// Resolution order matters: quantity must be settled before the value
// fallback runs, and price before value.
var canonicalFields = []fieldSpec{
	{FieldLotNumber, []string{"nr lot", "nr_lot", "nr-lot", "lot", "lot number", "lot_number", "lot-number", "numer partii", "numer_partii", "partia"}},
	{FieldPalletNumber, []string{"nr palety", "nr_palety", "nr-palety", "paleta", "pallet", "pallet number", "pallet_number", "pallet-number", "numer palety"}},
	{FieldProductName, []string{"item desc", "item_desc", "nazwa", "nazwa produktu", "produkt", "product", "product name", "product_name", "description", "desc"}},
	{FieldEANCode, []string{"ean", "kod ean", "kod_ean", "ean code", "ean_code", "kod", "code", "barcode", "bar code", "bar_code"}},
	{FieldASINCode, []string{"asin", "kod asin", "kod_asin", "asin code", "asin_code"}},
	{FieldQuantity, []string{"ilość", "ilosc", "qty", "quantity", "amount", "liczba sztuk", "liczba_sztuk"}},
	{FieldUnit, []string{"jednostka", "jm", "j.m.", "unit", "measure", "unit of measure", "uom"}},
	{FieldPrice, []string{"cena", "price", "unit price", "unit_price", "cena jednostkowa", "cena_jednostkowa", "koszt", "cost", "preis", "prix", "precio", "prezzo", "einzelpreis", "unit cost", "cost per unit", "price per unit", "price per item"}},
	{FieldValue, []string{"wartość", "wartosc", "value", "total", "suma", "total value", "total_value", "wert", "valeur", "valor", "valore", "gesamtwert", "total cost", "total price", "sum", "amount", "line total", "line value", "line amount"}},
	{FieldCurrency, []string{"waluta", "currency", "curr", "waluty", "währung", "monnaie", "moneda", "valuta"}},
}

type fieldSpec struct {
	name     string
	synonyms []string
}

// Diagnostic explains one heuristic decision or gap for a single field.
type Diagnostic struct {
	Field  string
	Reason string
}

// Result is the mapping of one raw row onto the canonical fields, plus the
// provenance of every decision. MappedFields keys are canonical field names;
// values are the source column names, which always exist in the row.
type Result struct {
	LotNumber    *string
	PalletNumber *string
	ProductName  *string
	EANCode      *string
	ASINCode     *string
	Quantity     decimal.Decimal
	Unit         *string
	Price        decimal.Decimal
	Value        decimal.Decimal
	Currency     *string

	MappedFields map[string]string
	Additional   map[string]string
	Diagnostics  []Diagnostic
}

type Resolver struct {
	synonyms map[string]map[string]struct{}
}

func NewResolver() *Resolver {
	synonyms := make(map[string]map[string]struct{}, len(canonicalFields))
	for _, spec := range canonicalFields {
		set := make(map[string]struct{}, len(spec.synonyms))
		for _, s := range spec.synonyms {
			set[NormalizeColumnName(s)] = struct{}{}
		}
		synonyms[spec.name] = set
	}
	return &Resolver{synonyms: synonyms}
}

// NormalizeColumnName lowercases and strips all whitespace. Used for
// comparison only; provenance always records the original column name.
func NormalizeColumnName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "")
}

var priceUpperBound = decimal.NewFromInt(10000)

var valueTolerance = decimal.RequireFromString("0.1")

// Resolve maps one raw row. It is a pure function of the row: running it
// twice yields identical results.
func (r *Resolver) Resolve(row internal.RawRow) Result {
	res := Result{
		MappedFields: map[string]string{},
		Additional:   map[string]string{},
	}

	normalized := make([]string, len(row.Columns))
	for i, col := range row.Columns {
		normalized[i] = NormalizeColumnName(col)
	}

	// Raw cell text per resolved field, before numeric coercion.
	rawValues := map[string]string{}

	for _, spec := range canonicalFields {
		found := false
		for i, col := range row.Columns {
			if _, ok := r.synonyms[spec.name][normalized[i]]; ok {
				rawValues[spec.name] = row.Cells[col]
				res.MappedFields[spec.name] = col
				found = true
				break
			}
		}

		if !found && (spec.name == FieldPrice || spec.name == FieldValue) {
			found = r.numericFallback(spec.name, row, rawValues, &res)
		}

		if !found && spec.name == FieldProductName {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{Field: spec.name, Reason: "no matching column"})
		}
	}

	claimed := map[string]struct{}{}
	for _, col := range res.MappedFields {
		claimed[col] = struct{}{}
	}
	for _, col := range row.Columns {
		if _, ok := claimed[col]; !ok {
			res.Additional[col] = row.Cells[col]
		}
	}

	r.coerce(rawValues, &res)
	return res
}

// numericFallback scans unclaimed columns for values that look like a price
// (a number in (0, 10000)) or like a line value (within 10% of price x
// quantity, price already resolved).
func (r *Resolver) numericFallback(field string, row internal.RawRow, rawValues map[string]string, res *Result) bool {
	claimed := map[string]struct{}{}
	for _, col := range res.MappedFields {
		claimed[col] = struct{}{}
	}

	for _, col := range row.Columns {
		if _, ok := claimed[col]; ok {
			continue
		}
		candidate, ok := util.ParseDecimal(row.Cells[col])
		if !ok {
			continue
		}

		switch field {
		case FieldPrice:
			if candidate.IsPositive() && candidate.LessThan(priceUpperBound) {
				rawValues[field] = row.Cells[col]
				res.MappedFields[field] = col
				res.Diagnostics = append(res.Diagnostics, Diagnostic{Field: field, Reason: "numeric fallback: " + col})
				return true
			}
		case FieldValue:
			priceRaw, priceMapped := rawValues[FieldPrice]
			if !priceMapped {
				return false
			}
			price, ok := util.ParseDecimal(priceRaw)
			if !ok {
				continue
			}
			qty := decimal.NewFromInt(1)
			if qtyRaw, qtyMapped := rawValues[FieldQuantity]; qtyMapped {
				parsed, ok := util.ParseDecimal(qtyRaw)
				if !ok {
					continue
				}
				qty = parsed
			}
			expected := price.Mul(qty)
			if candidate.Sub(expected).Abs().LessThan(candidate.Mul(valueTolerance)) {
				rawValues[field] = row.Cells[col]
				res.MappedFields[field] = col
				res.Diagnostics = append(res.Diagnostics, Diagnostic{Field: field, Reason: "numeric fallback: " + col})
				return true
			}
		}
	}
	return false
}

// coerce fills the typed fields from the raw cell text. Numeric parse
// failures fall back to the field default instead of failing the row.
func (r *Resolver) coerce(rawValues map[string]string, res *Result) {
	res.Quantity = r.coerceNumeric(FieldQuantity, rawValues, decimal.NewFromInt(1), res)
	res.Price = r.coerceNumeric(FieldPrice, rawValues, decimal.Zero, res)
	res.Value = r.coerceNumeric(FieldValue, rawValues, decimal.Zero, res)

	res.LotNumber = coerceString(rawValues[FieldLotNumber])
	res.PalletNumber = coerceString(rawValues[FieldPalletNumber])
	res.ProductName = coerceString(rawValues[FieldProductName])
	res.EANCode = coerceString(rawValues[FieldEANCode])
	res.ASINCode = coerceString(rawValues[FieldASINCode])
	res.Unit = coerceString(rawValues[FieldUnit])
	res.Currency = coerceString(rawValues[FieldCurrency])
}

func (r *Resolver) coerceNumeric(field string, rawValues map[string]string, def decimal.Decimal, res *Result) decimal.Decimal {
	raw, mapped := rawValues[field]
	if !mapped {
		return def
	}
	parsed, ok := util.ParseDecimal(raw)
	if !ok {
		res.Diagnostics = append(res.Diagnostics, Diagnostic{Field: field, Reason: "unparsable number, default applied"})
		return def
	}
	return parsed
}

func coerceString(raw string) *string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	return internal.StringPtr(v)
}
