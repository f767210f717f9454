package logging

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		verbosity string
		count     int
		want      slog.Level
	}{
		{"", 0, slog.LevelInfo},
		{"", 1, slog.LevelDebug},
		{"", 3, LevelTrace},
		{"warn", 2, slog.LevelWarn},
		{"TRACE", 0, LevelTrace},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.verbosity, tt.count)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q, %d) = %v, %v; want %v", tt.verbosity, tt.count, got, err, tt.want)
		}
	}
	if _, err := ParseLevel("loud", 0); err == nil {
		t.Error("expected an error for an unknown verbosity")
	}
}

func TestCompactHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewCompactHandler(&buf, &slog.HandlerOptions{Level: LevelTrace})).
		With("modelSystem", "Demo")
	l.Log(context.Background(), LevelTrace, "edit applied", "op", "add-node", "name", "two words")

	line := buf.String()
	for _, want := range []string{"[TRACE] ", "edit applied | modelSystem=Demo op=add-node", `name="two words"`} {
		if !strings.Contains(line, want) {
			t.Errorf("missing %q in %q", want, line)
		}
	}
}

func TestCompactHandlerShortensIDsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewCompactHandler(&buf, nil))
	l.WithGroup("run").With("start", "Main").Info("run queued",
		"run", "4f1c2d3e-aaaa-bbbb-cccc-ddddeeeeffff", "user", "")
	l.Info("run done", "run", "4f1c2d3e-aaaa-bbbb-cccc-ddddeeeeffff", "durationMs", 12)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	// Grouped keys are not id keys any more
	if !strings.HasSuffix(lines[0], `| run.start=Main run.run=4f1c2d3e-aaaa-bbbb-cccc-ddddeeeeffff run.user=""`) {
		t.Errorf("unexpected grouped line %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "| run=4f1c2d3e duration=12ms") {
		t.Errorf("unexpected line %q", lines[1])
	}
}

func TestMiddlewareTagsRequests(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, slog.LevelInfo)
	defer SetOutput(os.Stderr, slog.LevelInfo)

	h := Middleware(func(r *http.Request) string { return r.Header.Get("X-User") })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRequestID(r.Context()) == "" {
			t.Error("request ID missing from context")
		}
		w.WriteHeader(http.StatusTeapot)
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/undo", nil)
	req.Header.Set("X-User", "alice")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("response should carry the request ID")
	}
	out := buf.String()
	if !strings.Contains(out, "[WARN]  ") || !strings.Contains(out, "request failed") || !strings.Contains(out, "user=alice") || !strings.Contains(out, "status=418") {
		t.Errorf("unexpected log output %q", out)
	}
}

func TestMiddlewareLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, slog.LevelInfo)
	defer SetOutput(os.Stderr, slog.LevelInfo)

	status := http.StatusOK
	h := Middleware(func(r *http.Request) string { return "token-user" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(status) }))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/graph", nil))
	if buf.Len() != 0 {
		t.Errorf("successful reads should log below info, got %q", buf.String())
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/nodes", nil))
	if out := buf.String(); !strings.Contains(out, "request completed") || !strings.Contains(out, "user=token-user") {
		t.Errorf("edits should log at info with the user, got %q", out)
	}

	buf.Reset()
	status = http.StatusInternalServerError
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/graph", nil))
	if out := buf.String(); !strings.Contains(out, "[ERROR] ") || !strings.Contains(out, "status=500") {
		t.Errorf("server errors should log at error, got %q", out)
	}
}
