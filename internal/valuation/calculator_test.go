package valuation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"deliverydesk/internal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func requireEqual(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(dec(want)), "want %s got %s", want, got)
}

func TestSimpleNetPLN(t *testing.T) {
	res := CalculateDeliveryValueSimple(dec("1000"), Settings{
		ValuePercentage: dec("50"),
		VATRate:         dec("23"),
		ExchangeRate:    dec("1"),
		PriceType:       internal.PriceTypeNet,
		Currency:        internal.CurrencyPLN,
	})

	requireEqual(t, "1000", res.TotalMarketValue)
	requireEqual(t, "1000", res.TotalMarketValuePLN)
	requireEqual(t, "500", res.BaseValue)
	requireEqual(t, "615.0", res.DeliveryValue)
	requireEqual(t, "115.0", res.VATAmount)
}

func TestSimpleNetEUR(t *testing.T) {
	res := CalculateDeliveryValueSimple(dec("1000"), Settings{
		ValuePercentage: dec("50"),
		VATRate:         dec("23"),
		ExchangeRate:    dec("4.5"),
		PriceType:       internal.PriceTypeNet,
		Currency:        internal.CurrencyEUR,
	})

	requireEqual(t, "1000", res.TotalMarketValue)
	requireEqual(t, "4500", res.TotalMarketValuePLN)
	requireEqual(t, "2250", res.BaseValue)
	requireEqual(t, "2767.5", res.DeliveryValue)
	requireEqual(t, "517.5", res.VATAmount)
}

func TestSimpleGross(t *testing.T) {
	res := CalculateDeliveryValueSimple(dec("1000"), Settings{
		ValuePercentage: dec("50"),
		VATRate:         dec("23"),
		ExchangeRate:    dec("1"),
		PriceType:       internal.PriceTypeGross,
		Currency:        internal.CurrencyPLN,
	})

	requireEqual(t, "500", res.DeliveryValue)
	requireEqual(t, "0", res.VATAmount)
}

func TestSimpleDefaults(t *testing.T) {
	// Zero VAT and exchange rate coerce to 23 and 1, empty price type to net.
	res := CalculateDeliveryValueSimple(dec("1000"), Settings{
		ValuePercentage: dec("50"),
		Currency:        internal.CurrencyPLN,
	})

	requireEqual(t, "615.0", res.DeliveryValue)
	requireEqual(t, "115.0", res.VATAmount)
}

func TestFullPerProduct(t *testing.T) {
	products := []ProductLine{
		{Price: dec("100"), Quantity: dec("5")},
		{Price: dec("50"), Quantity: dec("10")},
	}
	res := CalculateDeliveryValue(products, Settings{
		ValuePercentage: dec("50"),
		VATRate:         dec("23"),
		ExchangeRate:    dec("4.5"),
		PriceType:       internal.PriceTypeNet,
		Currency:        internal.CurrencyEUR,
	})

	requireEqual(t, "1000", res.TotalMarketValue)
	requireEqual(t, "4500", res.TotalMarketValuePLN)
	requireEqual(t, "2767.5", res.DeliveryValue)
}

func TestFullEmptyPriceTypeIsGross(t *testing.T) {
	// Unlike the simple entry point, the per-product calculation does not
	// default an empty price type to net.
	res := CalculateDeliveryValue([]ProductLine{{Price: dec("100"), Quantity: dec("10")}}, Settings{
		ValuePercentage: dec("50"),
		VATRate:         dec("23"),
		Currency:        internal.CurrencyPLN,
	})

	requireEqual(t, "500", res.DeliveryValue)
	requireEqual(t, "0", res.VATAmount)
}

func TestFullNoProducts(t *testing.T) {
	res := CalculateDeliveryValue(nil, Settings{
		ValuePercentage: dec("50"),
		PriceType:       internal.PriceTypeNet,
		Currency:        internal.CurrencyPLN,
	})

	requireEqual(t, "0", res.TotalMarketValue)
	requireEqual(t, "0", res.DeliveryValue)
	requireEqual(t, "0", res.VATAmount)
}
