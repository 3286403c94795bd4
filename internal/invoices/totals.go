package invoices

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
)

var minutesPerHour = decimal.NewFromInt(60)

// Scales of the numeric columns. Values with more places would be rounded by
// Postgres on insert and stop matching the totals computed from them.
const (
	taxRateScale  = 4
	quantityScale = 2
)

// Totals are the computed money fields of an invoice, in cents.
type Totals struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	TaxCents      int64 `json:"tax_cents"`
	TotalCents    int64 `json:"total_cents"`
}

// ComputeTotals sums the line totals and applies the tax rate. Tax is rounded
// half away from zero to whole cents.
func ComputeTotals(lines []models.InvoiceLineItem, taxRate decimal.Decimal) Totals {
	var subtotal int64
	for _, line := range lines {
		subtotal += line.TotalCents
	}
	tax := decimal.NewFromInt(subtotal).Mul(taxRate).Round(0).IntPart()
	return Totals{
		SubtotalCents: subtotal,
		TaxCents:      tax,
		TotalCents:    subtotal + tax,
	}
}

// LineTotal is quantity x unit price rounded to whole cents.
func LineTotal(quantity decimal.Decimal, unitPriceCents int64) int64 {
	return quantity.Mul(decimal.NewFromInt(unitPriceCents)).Round(0).IntPart()
}

// LaborHours converts minutes to hours at two decimal places.
func LaborHours(minutes int) decimal.Decimal {
	return decimal.NewFromInt(int64(minutes)).Div(minutesPerHour).Round(2)
}

// ValidTaxRate reports whether rate lies within [0, 1] with at most four
// decimal places.
func ValidTaxRate(rate decimal.Decimal) bool {
	return !rate.IsNegative() && rate.LessThanOrEqual(decimal.NewFromInt(1)) && fitsScale(rate, taxRateScale)
}

// ValidQuantity reports whether a line quantity is positive with at most two
// decimal places.
func ValidQuantity(q decimal.Decimal) bool {
	return q.IsPositive() && fitsScale(q, quantityScale)
}

func fitsScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Round(places))
}
