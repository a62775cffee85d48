package content

import "math"

// LineItem строка таблицы цен.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Amount      float64 `json:"amount"`
}

// PricingTotals итоги секции цен. Скидка применяется до налога.
type PricingTotals struct {
	Items           []LineItem `json:"items"`
	Subtotal        float64    `json:"subtotal"`
	DiscountPercent float64    `json:"discount_percent"`
	DiscountAmount  float64    `json:"discount_amount"`
	TaxPercent      float64    `json:"tax_percent"`
	TaxAmount       float64    `json:"tax_amount"`
	Total           float64    `json:"total"`
}

// CalculatePricing считает итоги секции цен.
func CalculatePricing(s Section) PricingTotals {
	var totals PricingTotals

	for _, item := range s.Items("items", "line_items", "rows") {
		qty, ok := toFloat(item["quantity"])
		if !ok {
			qty, ok = toFloat(item["qty"])
		}
		if !ok {
			qty = 1
		}
		if qty < 0 {
			qty = 0
		}

		price, ok := toFloat(item["unit_price"])
		if !ok {
			price, ok = toFloat(item["price"])
		}
		if !ok {
			price, _ = toFloat(item["rate"])
		}
		if price < 0 {
			price = 0
		}

		description := firstText(item, "description", "name", "title", "text")
		amount := round2(qty * price)

		totals.Items = append(totals.Items, LineItem{
			Description: description,
			Quantity:    qty,
			UnitPrice:   price,
			Amount:      amount,
		})
		totals.Subtotal += amount
	}

	totals.Subtotal = round2(totals.Subtotal)
	totals.DiscountPercent = clampPercent(s.Data["discount"])
	totals.TaxPercent = clampPercent(firstPresent(s.Data, "tax", "tax_rate"))

	totals.DiscountAmount = round2(totals.Subtotal * totals.DiscountPercent / 100)
	taxable := totals.Subtotal - totals.DiscountAmount
	totals.TaxAmount = round2(taxable * totals.TaxPercent / 100)
	totals.Total = round2(taxable + totals.TaxAmount)

	return totals
}

// TotalAmount суммирует итоги всех секций цен.
func TotalAmount(sections []Section) float64 {
	var total float64
	for _, s := range sections {
		if s.Type == TypePricing {
			total += CalculatePricing(s).Total
		}
	}
	return round2(total)
}

func clampPercent(v any) float64 {
	p, ok := toFloat(v)
	if !ok || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstText(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
