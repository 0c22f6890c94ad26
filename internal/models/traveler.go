package models

import (
	"fmt"
	"strings"
)

// Traveler represents a person whose expenses are tracked.
type Traveler struct {
	// ID is the opaque identifier assigned by the document store.
	ID string `json:"id"`

	// Name is the display name of the traveler. Duplicates are allowed.
	Name string `json:"name"`
}

// Fields returns the document body stored for a traveler.
// The ID is not part of the body; the store assigns and keeps it.
func (t Traveler) Fields() map[string]any {
	return map[string]any{
		FieldName: t.Name,
	}
}

// TravelerFromDocument builds a Traveler from a stored document.
func TravelerFromDocument(id string, fields map[string]any) (Traveler, error) {
	name, err := stringField(fields, FieldName)
	if err != nil {
		return Traveler{}, fmt.Errorf("traveler %s: %w", id, err)
	}
	if strings.TrimSpace(name) == "" {
		return Traveler{}, fmt.Errorf("traveler %s: empty name", id)
	}
	return Traveler{ID: id, Name: name}, nil
}
