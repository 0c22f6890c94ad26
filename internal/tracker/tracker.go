// Package tracker keeps live in-memory mappings of travelers and expenses in
// step with the document store.
//
// The tracker holds one subscription per collection. Every snapshot replaces
// the whole mapping for its collection, so the mappings are a disposable cache
// of the store: they are never edited in place and never authoritative.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mmynk/travelspend/internal/calculator"
	"github.com/mmynk/travelspend/internal/models"
	"github.com/mmynk/travelspend/internal/notify"
	"github.com/mmynk/travelspend/internal/storage"
)

// TravelerTotal is a traveler together with the sum of their expenses.
type TravelerTotal struct {
	models.Traveler
	Total float64 `json:"total"`
}

// View is a consistent copy of the tracked state plus its derived totals.
type View struct {
	Loading    bool             `json:"loading"`
	Travelers  []TravelerTotal  `json:"travelers"`
	Expenses   []models.Expense `json:"expenses"`
	GrandTotal float64          `json:"grandTotal"`
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithPrinter sets the printer used for notification texts.
func WithPrinter(p *message.Printer) Option {
	return func(t *Tracker) {
		t.printer = p
	}
}

// Tracker is the synchronization layer between the document store and readers.
type Tracker struct {
	store    storage.DocumentStore
	notifier notify.Notifier
	printer  *message.Printer

	mu             sync.RWMutex
	travelers      map[string]models.Traveler
	travelerOrder  []string
	expenses       map[string]models.Expense
	expenseOrder   []string
	expensesLoaded bool
	hooks          []func()

	subMu   sync.Mutex
	unsubs  []storage.Unsubscribe
	started bool
	closed  bool
}

// New creates a Tracker. It does not subscribe until Start is called.
func New(store storage.DocumentStore, notifier notify.Notifier, opts ...Option) *Tracker {
	t := &Tracker{
		store:     store,
		notifier:  notifier,
		printer:   message.NewPrinter(language.Spanish),
		travelers: make(map[string]models.Traveler),
		expenses:  make(map[string]models.Expense),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start opens the travelers and expenses subscriptions.
//
// A subscription that cannot be established is reported through the notifier
// and in the returned error; the other subscription stays active and the
// tracker keeps whatever state it already had. Call Close to release the
// subscriptions, including after a failed Start.
func (t *Tracker) Start(ctx context.Context) error {
	t.subMu.Lock()
	if t.closed {
		t.subMu.Unlock()
		return errors.New("tracker is closed")
	}
	if t.started {
		t.subMu.Unlock()
		return errors.New("tracker already started")
	}
	t.started = true
	t.subMu.Unlock()

	var errs []error
	for _, collection := range []string{storage.CollectionTravelers, storage.CollectionExpenses} {
		unsubscribe, err := t.store.Subscribe(ctx, collection, t.listener(collection))
		if err != nil {
			slog.Error("Subscription failed", "collection", collection, "error", err)
			t.notifier.Error(t.printer.Sprintf(notify.MsgSubscribeFailed, collection, err))
			errs = append(errs, fmt.Errorf("subscribe %s: %w", collection, err))
			continue
		}

		t.subMu.Lock()
		if t.closed {
			t.subMu.Unlock()
			unsubscribe()
			return errors.New("tracker closed during start")
		}
		t.unsubs = append(t.unsubs, unsubscribe)
		t.subMu.Unlock()

		slog.Info("Subscribed", "collection", collection)
	}

	return errors.Join(errs...)
}

// Close cancels every subscription. It is safe to call more than once and
// before or after Start.
func (t *Tracker) Close() {
	t.subMu.Lock()
	unsubs := t.unsubs
	t.unsubs = nil
	t.closed = true
	t.subMu.Unlock()

	for _, unsubscribe := range unsubs {
		unsubscribe()
	}
	if len(unsubs) > 0 {
		slog.Info("Tracker closed", "subscriptions", len(unsubs))
	}
}

// OnChange registers fn to run after every applied snapshot. Hooks run on
// the delivering goroutine and must not block.
func (t *Tracker) OnChange(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, fn)
}

// Loading reports whether the first expenses snapshot is still pending.
// Once false it never becomes true again.
func (t *Tracker) Loading() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return !t.expensesLoaded
}

// Traveler looks up a traveler in the current mapping.
func (t *Tracker) Traveler(id string) (models.Traveler, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	traveler, ok := t.travelers[id]
	return traveler, ok
}

// Travelers returns the current travelers in store order.
func (t *Tracker) Travelers() []models.Traveler {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.Traveler, 0, len(t.travelerOrder))
	for _, id := range t.travelerOrder {
		out = append(out, t.travelers[id])
	}
	return out
}

// Expenses returns the current expenses in store order.
func (t *Tracker) Expenses() []models.Expense {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.Expense, 0, len(t.expenseOrder))
	for _, id := range t.expenseOrder {
		out = append(out, t.expenses[id])
	}
	return out
}

// ExpenseMap returns a copy of the expense mapping keyed by expense ID.
func (t *Tracker) ExpenseMap() map[string]models.Expense {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]models.Expense, len(t.expenses))
	for id, e := range t.expenses {
		out[id] = e
	}
	return out
}

// View returns the current state with totals recomputed from scratch.
func (t *Tracker) View() View {
	t.mu.RLock()
	defer t.mu.RUnlock()

	totals := calculator.TotalsByTraveler(t.expenses)
	view := View{
		Loading:    !t.expensesLoaded,
		Travelers:  make([]TravelerTotal, 0, len(t.travelerOrder)),
		Expenses:   make([]models.Expense, 0, len(t.expenseOrder)),
		GrandTotal: calculator.GrandTotal(t.expenses),
	}
	for _, id := range t.travelerOrder {
		view.Travelers = append(view.Travelers, TravelerTotal{
			Traveler: t.travelers[id],
			Total:    totals[id],
		})
	}
	for _, id := range t.expenseOrder {
		view.Expenses = append(view.Expenses, t.expenses[id])
	}
	return view
}

func (t *Tracker) listener(collection string) storage.Listener {
	return func(snap storage.Snapshot, err error) {
		if err != nil {
			slog.Error("Snapshot delivery failed", "collection", collection, "error", err)
			t.notifier.Error(t.printer.Sprintf(notify.MsgSnapshotFailed, collection, err))
			return
		}

		switch collection {
		case storage.CollectionTravelers:
			t.applyTravelers(snap)
		case storage.CollectionExpenses:
			t.applyExpenses(snap)
		}
		t.runHooks()
	}
}

func (t *Tracker) applyTravelers(snap storage.Snapshot) {
	travelers := make(map[string]models.Traveler, len(snap.Documents))
	order := make([]string, 0, len(snap.Documents))
	for _, doc := range snap.Documents {
		traveler, err := models.TravelerFromDocument(doc.ID, doc.Fields)
		if err != nil {
			slog.Warn("Skipping malformed traveler", "id", doc.ID, "error", err)
			continue
		}
		travelers[doc.ID] = traveler
		order = append(order, doc.ID)
	}

	t.mu.Lock()
	t.travelers = travelers
	t.travelerOrder = order
	t.mu.Unlock()

	slog.Debug("Travelers snapshot applied", "count", len(travelers))
}

func (t *Tracker) applyExpenses(snap storage.Snapshot) {
	expenses := make(map[string]models.Expense, len(snap.Documents))
	order := make([]string, 0, len(snap.Documents))
	for _, doc := range snap.Documents {
		expense, err := models.ExpenseFromDocument(doc.ID, doc.Fields)
		if err != nil {
			slog.Warn("Skipping malformed expense", "id", doc.ID, "error", err)
			continue
		}
		expenses[doc.ID] = expense
		order = append(order, doc.ID)
	}

	t.mu.Lock()
	t.expenses = expenses
	t.expenseOrder = order
	t.expensesLoaded = true
	t.mu.Unlock()

	slog.Debug("Expenses snapshot applied", "count", len(expenses))
}

func (t *Tracker) runHooks() {
	t.mu.RLock()
	hooks := make([]func(), len(t.hooks))
	copy(hooks, t.hooks)
	t.mu.RUnlock()

	for _, fn := range hooks {
		fn()
	}
}
