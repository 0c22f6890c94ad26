// Package service implements the mutation façade over the document store and
// exposes it, together with the tracker's summary, as a Connect service.
package service

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mmynk/travelspend/internal/models"
	"github.com/mmynk/travelspend/internal/notify"
	"github.com/mmynk/travelspend/internal/storage"
)

// TravelerLookup resolves travelers from the live mapping.
type TravelerLookup interface {
	Traveler(id string) (models.Traveler, bool)
}

// Option configures a TravelService.
type Option func(*TravelService)

// WithPrinter sets the printer used for notification and validation texts.
func WithPrinter(p *message.Printer) Option {
	return func(s *TravelService) {
		s.printer = p
	}
}

// WithClock overrides the time source used to date new expenses.
func WithClock(now func() time.Time) Option {
	return func(s *TravelService) {
		s.now = now
	}
}

// WithDateLayout sets the time layout used for an expense's date.
func WithDateLayout(layout string) Option {
	return func(s *TravelService) {
		s.dateLayout = layout
	}
}

// TravelService validates and performs every mutation. Each call reports its
// outcome to the notifier and returns it as an error; the resulting state is
// observed through the tracker, never returned directly.
type TravelService struct {
	store      storage.DocumentStore
	travelers  TravelerLookup
	notifier   notify.Notifier
	printer    *message.Printer
	now        func() time.Time
	dateLayout string
}

// NewTravelService creates a TravelService.
func NewTravelService(store storage.DocumentStore, travelers TravelerLookup, notifier notify.Notifier, opts ...Option) *TravelService {
	s := &TravelService{
		store:      store,
		travelers:  travelers,
		notifier:   notifier,
		printer:    message.NewPrinter(language.Spanish),
		now:        time.Now,
		dateLayout: models.DefaultDateLayout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddTraveler stores a new traveler and returns its ID.
func (s *TravelService) AddTraveler(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", s.invalid(models.FieldName, notify.MsgTravelerNameRequired)
	}

	traveler := models.Traveler{Name: name}
	id, err := s.store.Create(ctx, storage.CollectionTravelers, traveler.Fields())
	if err != nil {
		slog.Error("AddTraveler failed", "name", name, "error", err)
		s.notifier.Error(s.printer.Sprintf(notify.MsgAddTravelerFailed, err))
		return "", &StoreOperationError{Op: "add traveler", Err: err}
	}

	slog.Info("Traveler added", "traveler_id", id, "name", name)
	s.notifier.Success(s.printer.Sprintf(notify.MsgTravelerAdded, name))
	return id, nil
}

// RemoveTraveler deletes a traveler and every expense attributed to them.
//
// Expenses go first, in one atomic batch, so a failure never leaves expenses
// pointing at a deleted traveler. If the traveler delete fails afterwards the
// expenses stay deleted and the returned error says how many were removed.
// Removing an unknown ID succeeds.
func (s *TravelService) RemoveTraveler(ctx context.Context, travelerID string) error {
	if strings.TrimSpace(travelerID) == "" {
		return s.invalid(models.FieldTravelerID, notify.MsgTravelerIDRequired)
	}

	docs, err := s.store.Query(ctx, storage.CollectionExpenses, models.FieldTravelerID, travelerID)
	if err != nil {
		return s.removeFailed(travelerID, &StoreOperationError{Op: "query expenses", Err: err})
	}

	refs := make([]storage.Ref, 0, len(docs))
	for _, doc := range docs {
		refs = append(refs, storage.Ref{Collection: storage.CollectionExpenses, ID: doc.ID})
	}
	if len(refs) > 0 {
		if err := s.store.BatchDelete(ctx, refs); err != nil {
			return s.removeFailed(travelerID, &StoreOperationError{Op: "delete expenses", Err: err})
		}
	}

	if err := s.store.Delete(ctx, storage.CollectionTravelers, travelerID); err != nil {
		return s.removeFailed(travelerID, &StoreOperationError{
			Op:              "delete traveler",
			Err:             err,
			ExpensesRemoved: len(refs),
		})
	}

	slog.Info("Traveler removed", "traveler_id", travelerID, "expenses_removed", len(refs))
	s.notifier.Info(s.printer.Sprintf(notify.MsgTravelerRemoved))
	return nil
}

// AddExpense stores a new expense for travelerID and returns its ID.
//
// The traveler's name is copied from the live mapping. An unknown traveler
// does not fail the call; the expense is recorded under UnknownTravelerName.
func (s *TravelService) AddExpense(ctx context.Context, expenseType string, amount float64, travelerID string) (string, error) {
	expenseType = strings.TrimSpace(expenseType)
	if expenseType == "" {
		return "", s.invalid(models.FieldType, notify.MsgExpenseFieldsRequired)
	}
	if !(amount > 0) || math.IsInf(amount, 1) {
		return "", s.invalid(models.FieldAmount, notify.MsgExpenseFieldsRequired)
	}
	if strings.TrimSpace(travelerID) == "" {
		return "", s.invalid(models.FieldTravelerID, notify.MsgTravelerIDRequired)
	}

	travelerName := models.UnknownTravelerName
	if traveler, ok := s.travelers.Traveler(travelerID); ok {
		travelerName = traveler.Name
	} else {
		slog.Warn("Traveler not in mapping, recording unknown name", "traveler_id", travelerID)
	}

	expense := models.Expense{
		Type:         expenseType,
		Amount:       amount,
		TravelerID:   travelerID,
		TravelerName: travelerName,
		Date:         s.now().Format(s.dateLayout),
	}
	id, err := s.store.Create(ctx, storage.CollectionExpenses, expense.Fields())
	if err != nil {
		slog.Error("AddExpense failed", "traveler_id", travelerID, "error", err)
		s.notifier.Error(s.printer.Sprintf(notify.MsgSaveExpenseFailed, err))
		return "", &StoreOperationError{Op: "add expense", Err: err}
	}

	slog.Info("Expense added",
		"expense_id", id,
		"traveler_id", travelerID,
		"type", expenseType,
		"amount", amount,
	)
	s.notifier.Success(s.printer.Sprintf(notify.MsgExpenseSaved))
	return id, nil
}

func (s *TravelService) invalid(field, key string) *ValidationError {
	msg := s.printer.Sprintf(key)
	slog.Warn("Validation failed", "field", field, "message", msg)
	s.notifier.Error(msg)
	return &ValidationError{Field: field, Message: msg}
}

func (s *TravelService) removeFailed(travelerID string, err *StoreOperationError) error {
	slog.Error("RemoveTraveler failed",
		"traveler_id", travelerID,
		"op", err.Op,
		"expenses_removed", err.ExpensesRemoved,
		"error", err.Err,
	)
	if err.ExpensesRemoved > 0 {
		s.notifier.Error(s.printer.Sprintf(notify.MsgRemoveTravelerPartial, err.ExpensesRemoved, err.Err))
	} else {
		s.notifier.Error(s.printer.Sprintf(notify.MsgRemoveTravelerFailed, err.Err))
	}
	return err
}
