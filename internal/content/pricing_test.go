package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculatePricing_DiscountBeforeTax(t *testing.T) {
	s := Section{
		Type: TypePricing,
		Data: map[string]any{
			"items": []any{
				map[string]any{"description": "Дизайн", "quantity": 2.0, "unit_price": 500.0},
				map[string]any{"name": "Разработка", "qty": "3", "price": "$1,000"},
				map[string]any{"title": "Поддержка", "rate": 100.0},
			},
			"discount": 10.0,
			"tax_rate": "20",
		},
	}

	totals := CalculatePricing(s)
	require.Len(t, totals.Items, 3)

	assert.Equal(t, 1000.0, totals.Items[0].Amount)
	assert.Equal(t, 3000.0, totals.Items[1].Amount)
	assert.Equal(t, "Поддержка", totals.Items[2].Description)
	assert.Equal(t, 1.0, totals.Items[2].Quantity)

	assert.Equal(t, 4100.0, totals.Subtotal)
	assert.Equal(t, 410.0, totals.DiscountAmount)
	assert.Equal(t, 738.0, totals.TaxAmount)
	assert.Equal(t, 4428.0, totals.Total)
}

func TestCalculatePricing_ClampsValues(t *testing.T) {
	s := Section{
		Type: TypePricing,
		Data: map[string]any{
			"items":    []any{map[string]any{"quantity": -1.0, "unit_price": 50.0}},
			"discount": 150.0,
			"tax":      -5.0,
		},
	}

	totals := CalculatePricing(s)
	assert.Equal(t, 0.0, totals.Subtotal)
	assert.Equal(t, 100.0, totals.DiscountPercent)
	assert.Equal(t, 0.0, totals.TaxPercent)
	assert.Equal(t, 0.0, totals.Total)
}

func TestTotalAmount_SumsOnlyPricingSections(t *testing.T) {
	sections := []Section{
		{Type: TypePricing, Data: map[string]any{"items": []any{map[string]any{"unit_price": 10.5}}}},
		{Type: TypeText, Data: map[string]any{"items": []any{map[string]any{"unit_price": 999.0}}}},
		{Type: TypePricing, Data: map[string]any{"items": []any{map[string]any{"unit_price": 0.25, "quantity": 2.0}}}},
	}

	assert.Equal(t, 11.0, TotalAmount(sections))
}
