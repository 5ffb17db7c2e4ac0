package booking

import (
	"github.com/shopspring/decimal"
)

// OrderLine is one ticket in the order summary
type OrderLine struct {
	Label string
	Price decimal.Decimal
}

// OrderSummary is the price breakdown shown next to the payment form
type OrderSummary struct {
	BookingID   string
	MovieTitle  string
	StartTime   string
	FormatLabel string
	Multiplier  decimal.Decimal
	Lines       []OrderLine
	Subtotal    decimal.Decimal
	Total       decimal.Decimal
}

// Summarize prices a pending booking. The format label and multiplier come
// from the record only.
func Summarize(rec *PendingBooking) OrderSummary {
	multiplier := rec.Screening.PriceMultiplier
	if !multiplier.IsPositive() {
		multiplier = decimal.NewFromInt(1)
	}

	summary := OrderSummary{
		BookingID:   rec.ID,
		MovieTitle:  rec.Screening.MovieTitle,
		StartTime:   rec.Screening.StartTime,
		FormatLabel: rec.Screening.TypeName,
		Multiplier:  multiplier,
		Lines:       make([]OrderLine, 0, len(rec.Tickets)),
	}

	prices := make([]decimal.Decimal, 0, len(rec.Tickets))
	for _, t := range rec.Tickets {
		summary.Lines = append(summary.Lines, OrderLine{Label: t.Label(), Price: t.Price})
		prices = append(prices, t.Price)
	}
	summary.Subtotal = Sum(prices...)
	summary.Total = Total(summary.Subtotal, multiplier)
	return summary
}

// Sum adds prices
func Sum(prices ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, p := range prices {
		total = total.Add(p)
	}
	return total
}

// Total applies the screening multiplier to a subtotal, rounded to cents
func Total(subtotal, multiplier decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(multiplier).Round(2)
}

// FormatMoney renders an amount as dollars, e.g. "$45.00"
func FormatMoney(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}
