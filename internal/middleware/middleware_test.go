package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
)

func TestRPCOutcome(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level slog.Level
	}{
		{"ok", nil, slog.LevelInfo},
		{"rejected", connect.NewError(connect.CodeInvalidArgument, errors.New("bad")), slog.LevelWarn},
		{"failed", errors.New("boom"), slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if level, _ := rpcOutcome(tt.err); level != tt.level {
				t.Errorf("level = %v, want %v", level, tt.level)
			}
		})
	}
}

func TestLoggingInterceptorPassesThrough(t *testing.T) {
	want := connect.NewError(connect.CodeUnavailable, errors.New("offline"))
	next := func(context.Context, connect.AnyRequest) (connect.AnyResponse, error) {
		return nil, want
	}

	_, err := LoggingInterceptor()(next)(context.Background(), connect.NewRequest(&struct{}{}))
	if !errors.Is(err, want) {
		t.Errorf("expected error to pass through unchanged, got %v", err)
	}
}

func TestAccessLog(t *testing.T) {
	handler := AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("hi"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusTeapot || rec.Body.String() != "hi" {
		t.Errorf("unexpected response: %d %q", rec.Code, rec.Body.String())
	}
}

func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		origins    []string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{"wildcard", []string{"*"}, http.MethodPost, "http://a.example", http.StatusOK, "*"},
		{"listed origin", []string{"http://a.example"}, http.MethodPost, "http://a.example", http.StatusOK, "http://a.example"},
		{"unlisted origin", []string{"http://a.example"}, http.MethodPost, "http://b.example", http.StatusOK, ""},
		{"preflight", []string{"*"}, http.MethodOptions, "http://a.example", http.StatusNoContent, "*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/travelspend.v1.TravelService/GetSummary", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()

			CORS(tt.origins)(ok).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
		})
	}
}

func TestOriginChecker(t *testing.T) {
	check := OriginChecker([]string{"http://a.example"})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://a.example", true},
		{"HTTP://A.EXAMPLE", true},
		{"http://evil.example", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := check(req); got != tt.want {
			t.Errorf("origin %q: got %v, want %v", tt.origin, got, tt.want)
		}
	}

	if !OriginChecker([]string{"*"})(httptest.NewRequest(http.MethodGet, "/ws", nil)) {
		t.Error("wildcard should allow everything")
	}
}
