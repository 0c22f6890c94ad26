// Package calculator derives totals from the current expense mapping.
//
// Every function is pure and recomputes from scratch; nothing is cached between
// calls. Sums are accumulated with decimal arithmetic so the result does not
// depend on map iteration order.
package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/travelspend/internal/models"
)

// TotalForTraveler returns the sum of all expense amounts owned by travelerID.
// Returns 0 if no expense matches.
func TotalForTraveler(expenses map[string]models.Expense, travelerID string) float64 {
	sum := decimal.Zero
	for _, e := range expenses {
		if e.TravelerID == travelerID {
			sum = sum.Add(decimal.NewFromFloat(e.Amount))
		}
	}
	return sum.InexactFloat64()
}

// GrandTotal returns the sum of all expense amounts. An empty mapping sums to 0.
func GrandTotal(expenses map[string]models.Expense) float64 {
	sum := decimal.Zero
	for _, e := range expenses {
		sum = sum.Add(decimal.NewFromFloat(e.Amount))
	}
	return sum.InexactFloat64()
}

// TotalsByTraveler returns the per-traveler sums for every traveler ID that
// appears in expenses, including IDs of travelers that no longer exist.
func TotalsByTraveler(expenses map[string]models.Expense) map[string]float64 {
	sums := make(map[string]decimal.Decimal)
	for _, e := range expenses {
		sums[e.TravelerID] = sums[e.TravelerID].Add(decimal.NewFromFloat(e.Amount))
	}

	totals := make(map[string]float64, len(sums))
	for id, sum := range sums {
		totals[id] = sum.InexactFloat64()
	}
	return totals
}
