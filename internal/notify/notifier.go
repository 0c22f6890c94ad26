// Package notify delivers user-facing feedback about mutations and
// synchronization problems. Delivery is fire-and-forget: notifiers never
// return errors and never retry.
package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Kind classifies a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Notification is one piece of feedback.
type Notification struct {
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier accepts notifications.
type Notifier interface {
	Success(message string)
	Error(message string)
	Info(message string)
}

// Func adapts a function to the Notifier interface.
type Func func(Notification)

func (f Func) Success(message string) { f(newNotification(KindSuccess, message)) }
func (f Func) Error(message string)   { f(newNotification(KindError, message)) }
func (f Func) Info(message string)    { f(newNotification(KindInfo, message)) }

func newNotification(kind Kind, message string) Notification {
	return Notification{Kind: kind, Message: message, At: time.Now()}
}

// Multi fans every notification out to all of its notifiers.
type Multi []Notifier

func (m Multi) Success(message string) {
	for _, n := range m {
		n.Success(message)
	}
}

func (m Multi) Error(message string) {
	for _, n := range m {
		n.Error(message)
	}
}

func (m Multi) Info(message string) {
	for _, n := range m {
		n.Info(message)
	}
}

// Logger writes notifications to a slog.Logger.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a Logger. A nil logger means slog.Default().
func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

func (l *Logger) Success(message string) {
	l.logger.Info("Notification", "kind", KindSuccess, "message", message)
}

func (l *Logger) Error(message string) {
	l.logger.Error("Notification", "kind", KindError, "message", message)
}

func (l *Logger) Info(message string) {
	l.logger.Info("Notification", "kind", KindInfo, "message", message)
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu            sync.Mutex
	notifications []Notification
}

func (r *Recorder) Success(message string) { r.record(KindSuccess, message) }
func (r *Recorder) Error(message string)   { r.record(KindError, message) }
func (r *Recorder) Info(message string)    { r.record(KindInfo, message) }

func (r *Recorder) record(kind Kind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, newNotification(kind, message))
}

// All returns a copy of every recorded notification, oldest first.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.notifications))
	copy(out, r.notifications)
	return out
}

// Messages returns the recorded messages of one kind, oldest first.
func (r *Recorder) Messages(kind Kind) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.notifications {
		if n.Kind == kind {
			out = append(out, n.Message)
		}
	}
	return out
}
