package models

import (
	"encoding/json"
	"fmt"
	"math"
)

// Document field names. They match the documents written by the web client so
// existing collections load unchanged.
const (
	FieldName         = "name"
	FieldType         = "type"
	FieldAmount       = "amount"
	FieldTravelerID   = "travelerId"
	FieldTravelerName = "travelerName"
	FieldDate         = "date"
)

// UnknownTravelerName is recorded as Expense.TravelerName when the traveler could
// not be resolved at creation time.
const UnknownTravelerName = "Desconocido"

// DefaultDateLayout renders dates as day/month/year, the Spanish short date.
const DefaultDateLayout = "2/1/2006"

// Expense represents a single monetary record attributed to one traveler.
type Expense struct {
	// ID is the opaque identifier assigned by the document store.
	ID string `json:"id"`

	// Type is the free-text category (e.g., "Alojamiento", "taxi").
	Type string `json:"type"`

	// Amount is the expense value. Always > 0 for expenses created here.
	Amount float64 `json:"amount"`

	// TravelerID references the owning traveler. Set at creation, immutable.
	TravelerID string `json:"travelerId"`

	// TravelerName is a copy of the traveler's name taken at creation time.
	// It is a display cache, not a live reference: if travelers ever become
	// renameable this field goes stale.
	TravelerName string `json:"travelerName"`

	// Date is the creation date, already formatted for display.
	Date string `json:"date"`
}

// Fields returns the document body stored for an expense.
func (e Expense) Fields() map[string]any {
	return map[string]any{
		FieldType:         e.Type,
		FieldAmount:       e.Amount,
		FieldTravelerID:   e.TravelerID,
		FieldTravelerName: e.TravelerName,
		FieldDate:         e.Date,
	}
}

// ExpenseFromDocument builds an Expense from a stored document.
// Missing display fields (travelerName, date) are tolerated because early
// revisions of the client did not write them.
func ExpenseFromDocument(id string, fields map[string]any) (Expense, error) {
	expenseType, err := stringField(fields, FieldType)
	if err != nil {
		return Expense{}, fmt.Errorf("expense %s: %w", id, err)
	}
	travelerID, err := stringField(fields, FieldTravelerID)
	if err != nil {
		return Expense{}, fmt.Errorf("expense %s: %w", id, err)
	}
	amount, err := numberField(fields, FieldAmount)
	if err != nil {
		return Expense{}, fmt.Errorf("expense %s: %w", id, err)
	}

	travelerName, _ := fields[FieldTravelerName].(string)
	date, _ := fields[FieldDate].(string)

	return Expense{
		ID:           id,
		Type:         expenseType,
		Amount:       amount,
		TravelerID:   travelerID,
		TravelerName: travelerName,
		Date:         date,
	}, nil
}

func stringField(fields map[string]any, key string) (string, error) {
	raw, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("missing field %q", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("field %q: expected string, got %T", key, raw)
	}
	return s, nil
}

func numberField(fields map[string]any, key string) (float64, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("missing field %q", key)
	}

	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", key, err)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("field %q: expected number, got %T", key, raw)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("field %q: not a finite number", key)
	}
	return f, nil
}
