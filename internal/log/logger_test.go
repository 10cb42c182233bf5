package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf, Level: slog.LevelDebug}).WithComponent(ComponentGateway)
	l.Info("hello", FieldOperation, OpList)
	out := buf.String()
	if !strings.Contains(out, "component=gateway") {
		t.Fatalf("missing component in %q", out)
	}
	if strings.Count(out, "component=") != 1 {
		t.Fatalf("component logged more than once: %q", out)
	}
	if !strings.Contains(out, "operation=list") {
		t.Fatalf("missing operation in %q", out)
	}
}

func TestMiddlewareAndLogError(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf})
	var seen *Logger
	h := Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		LogError(r.Context(), "boom", errors.New("bad"), ComponentTracker, OpCreate, NewFields().WithExpense("1", "Tea", "2", "Food"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if seen != l {
		t.Fatalf("logger not propagated through context")
	}
	out := buf.String()
	for _, want := range []string{"error=bad", "component=tracker", "operation=create", "expense_id=1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}

	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatalf("expected fallback logger")
	}
}
