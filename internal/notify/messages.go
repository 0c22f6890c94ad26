package notify

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys. The key text doubles as the English rendering.
const (
	MsgTravelerAdded         = "Traveler %s added"
	MsgTravelerRemoved       = "Traveler and associated expenses removed"
	MsgExpenseSaved          = "Expense saved"
	MsgTravelerNameRequired  = "Traveler name cannot be empty"
	MsgExpenseFieldsRequired = "Expense type and amount are required"
	MsgTravelerIDRequired    = "Traveler ID is required"
	MsgAddTravelerFailed     = "Failed to add traveler: %v"
	MsgRemoveTravelerFailed  = "Failed to remove traveler: %v"
	MsgRemoveTravelerPartial = "Removed %d expenses but the traveler could not be deleted: %v"
	MsgSaveExpenseFailed     = "Failed to save expense: %v"
	MsgSubscribeFailed       = "Failed to subscribe to %s: %v"
	MsgSnapshotFailed        = "Failed to refresh %s: %v"
)

// DefaultLocale is the locale of user-facing texts when none is configured.
const DefaultLocale = "es"

var spanish = map[string]string{
	MsgTravelerAdded:         "Viajero %s añadido",
	MsgTravelerRemoved:       "Viajero y gastos asociados eliminados",
	MsgExpenseSaved:          "Gasto guardado",
	MsgTravelerNameRequired:  "El nombre del viajero no puede estar vacío",
	MsgExpenseFieldsRequired: "El tipo de gasto y el monto son requeridos",
	MsgTravelerIDRequired:    "El identificador del viajero es requerido",
	MsgAddTravelerFailed:     "Error al añadir viajero: %v",
	MsgRemoveTravelerFailed:  "Error al eliminar viajero: %v",
	MsgRemoveTravelerPartial: "Se eliminaron %d gastos pero el viajero no pudo eliminarse: %v",
	MsgSaveExpenseFailed:     "Error al guardar el gasto: %v",
	MsgSubscribeFailed:       "Error al suscribirse a %s: %v",
	MsgSnapshotFailed:        "Error al actualizar %s: %v",
}

func init() {
	for key, msg := range spanish {
		if err := message.SetString(language.Spanish, key, msg); err != nil {
			panic(fmt.Sprintf("register message %q: %v", key, err))
		}
	}
}

// NewPrinter returns a printer for locale, e.g. "es" or "en-US".
func NewPrinter(locale string) (*message.Printer, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", locale, err)
	}
	return message.NewPrinter(tag), nil
}
