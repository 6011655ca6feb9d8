// Package valuation computes what a supplier is owed for a delivery: market
// value of the products, conversion to PLN, the contractual percentage cut
// and VAT treatment. All functions are pure and never fail; missing or
// unusable inputs coerce to documented defaults.
package valuation

import (
	"github.com/shopspring/decimal"

	"deliverydesk/internal"
)

// Settings are supplied by the caller per delivery. Zero VATRate and
// ExchangeRate are treated as absent and replaced with 23 and 1. Only "EUR"
// triggers currency conversion; any other code counts as already-PLN.
type Settings struct {
	ValuePercentage decimal.Decimal
	VATRate         decimal.Decimal
	ExchangeRate    decimal.Decimal
	PriceType       string
	Currency        string
}

// ProductLine is the per-product input: unit price and quantity. Currency on
// individual products is ignored; Settings.Currency governs conversion.
type ProductLine struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

type Result struct {
	TotalMarketValue    decimal.Decimal `json:"totalMarketValue"`
	TotalMarketValuePLN decimal.Decimal `json:"totalMarketValuePLN"`
	BaseValue           decimal.Decimal `json:"baseValue"`
	DeliveryValue       decimal.Decimal `json:"deliveryValue"`
	VATAmount           decimal.Decimal `json:"vatAmount"`
}

var (
	hundred     = decimal.NewFromInt(100)
	defaultVAT  = decimal.NewFromInt(23)
	defaultRate = decimal.NewFromInt(1)
	one         = decimal.NewFromInt(1)
)

// CalculateDeliveryValue aggregates price*quantity over all products and
// derives the payable value. PriceType other than "net" takes the gross
// branch.
func CalculateDeliveryValue(products []ProductLine, settings Settings) Result {
	settings = normalize(settings, false)

	total := decimal.Zero
	totalPLN := decimal.Zero
	for _, p := range products {
		lineValue := p.Price.Mul(p.Quantity)
		total = total.Add(lineValue)
		if settings.Currency == internal.CurrencyEUR {
			totalPLN = totalPLN.Add(lineValue.Mul(settings.ExchangeRate))
		} else {
			totalPLN = totalPLN.Add(lineValue)
		}
	}

	return derive(total, totalPLN, settings)
}

// CalculateDeliveryValueSimple takes a pre-aggregated market value instead of
// the per-product loop. An empty PriceType defaults to "net" here.
func CalculateDeliveryValueSimple(totalValue decimal.Decimal, settings Settings) Result {
	settings = normalize(settings, true)

	totalPLN := totalValue
	if settings.Currency == internal.CurrencyEUR {
		totalPLN = totalValue.Mul(settings.ExchangeRate)
	}

	return derive(totalValue, totalPLN, settings)
}

// derive applies the percentage cut and VAT. The net branch rounds
// deliveryValue and vatAmount to 2 decimals, with vatAmount computed from the
// rounded deliveryValue; the gross branch keeps the base unrounded and a vat
// of exactly 0. This asymmetry is contractual, do not "fix" it.
func derive(total, totalPLN decimal.Decimal, settings Settings) Result {
	base := totalPLN.Mul(settings.ValuePercentage).Div(hundred)

	deliveryValue := base
	vatAmount := decimal.Zero
	if settings.PriceType == internal.PriceTypeNet {
		deliveryValue = base.Mul(one.Add(settings.VATRate.Div(hundred))).Round(2)
		vatAmount = deliveryValue.Sub(base).Round(2)
	}

	return Result{
		TotalMarketValue:    total,
		TotalMarketValuePLN: totalPLN,
		BaseValue:           base,
		DeliveryValue:       deliveryValue,
		VATAmount:           vatAmount,
	}
}

func normalize(s Settings, defaultNet bool) Settings {
	if s.VATRate.IsZero() {
		s.VATRate = defaultVAT
	}
	if s.ExchangeRate.IsZero() {
		s.ExchangeRate = defaultRate
	}
	if defaultNet && s.PriceType == "" {
		s.PriceType = internal.PriceTypeNet
	}
	return s
}
