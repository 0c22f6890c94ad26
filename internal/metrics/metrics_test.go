package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mmynk/travelspend/internal/models"
	"github.com/mmynk/travelspend/internal/tracker"
)

func TestObserveView(t *testing.T) {
	m := New()

	if got := testutil.ToFloat64(m.loading); got != 1 {
		t.Errorf("loading = %v before any view, want 1", got)
	}

	m.ObserveView(tracker.View{
		Travelers: []tracker.TravelerTotal{
			{Traveler: models.Traveler{ID: "t1", Name: "Ana"}, Total: 50},
			{Traveler: models.Traveler{ID: "t2", Name: "Luis"}, Total: 15},
		},
		Expenses: []models.Expense{
			{ID: "a", Amount: 20, TravelerID: "t1"},
			{ID: "b", Amount: 30, TravelerID: "t1"},
			{ID: "c", Amount: 15, TravelerID: "t2"},
		},
		GrandTotal: 65,
	})

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"travelers", testutil.ToFloat64(m.travelers), 2},
		{"expenses", testutil.ToFloat64(m.expenses), 3},
		{"grand total", testutil.ToFloat64(m.grandTotal), 65},
		{"loading", testutil.ToFloat64(m.loading), 0},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestInterceptor(t *testing.T) {
	m := New()
	interceptor := m.Interceptor()

	ok := interceptor(func(context.Context, connect.AnyRequest) (connect.AnyResponse, error) {
		return nil, nil
	})
	invalid := interceptor(func(context.Context, connect.AnyRequest) (connect.AnyResponse, error) {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("bad"))
	})
	plain := interceptor(func(context.Context, connect.AnyRequest) (connect.AnyResponse, error) {
		return nil, errors.New("boom")
	})

	req := connect.NewRequest(&struct{}{})
	ok(context.Background(), req)
	ok(context.Background(), req)
	invalid(context.Background(), req)
	plain(context.Background(), req)

	procedure := req.Spec().Procedure
	if got := testutil.ToFloat64(m.rpcRequests.WithLabelValues(procedure, "ok")); got != 2 {
		t.Errorf("ok count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.rpcRequests.WithLabelValues(procedure, "invalid_argument")); got != 1 {
		t.Errorf("invalid_argument count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.rpcRequests.WithLabelValues(procedure, "unknown")); got != 1 {
		t.Errorf("unknown count = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.rpcDuration); n != 1 {
		t.Errorf("expected one duration series, got %d", n)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveView(tracker.View{GrandTotal: 12.5})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "travelspend_grand_total 12.5") {
		t.Errorf("expected grand total in output, got:\n%s", body)
	}
}
