package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/tailored-agentic-units/drawbridge/observability"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		name  string
		level observability.Level
		want  string
	}{
		{name: "trace range", level: 1, want: "TRACE"},
		{name: "verbose maps to DEBUG", level: observability.LevelVerbose, want: "DEBUG"},
		{name: "info maps to INFO", level: observability.LevelInfo, want: "INFO"},
		{name: "warning maps to WARN", level: observability.LevelWarning, want: "WARN"},
		{name: "error maps to ERROR", level: observability.LevelError, want: "ERROR"},
		{name: "fatal range", level: 21, want: "FATAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
			}
		})
	}
}

func TestLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		name  string
		level observability.Level
		want  slog.Level
	}{
		{name: "verbose maps to Debug", level: observability.LevelVerbose, want: slog.LevelDebug},
		{name: "info maps to Info", level: observability.LevelInfo, want: slog.LevelInfo},
		{name: "warning maps to Warn", level: observability.LevelWarning, want: slog.LevelWarn},
		{name: "error maps to Error", level: observability.LevelError, want: slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.SlogLevel(); got != tt.want {
				t.Errorf("Level(%d).SlogLevel() = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestEmit(t *testing.T) {
	rec := observability.NewRecorder()
	before := time.Now()

	observability.Emit(context.Background(), rec, "registry.dispatch", observability.LevelInfo, "registry", nil)

	events := rec.Events()
	if len(events) != 1 {
		t.Fatalf("recorded %d events, want 1", len(events))
	}
	e := events[0]
	if e.Type != "registry.dispatch" {
		t.Errorf("event type = %q, want %q", e.Type, "registry.dispatch")
	}
	if e.Data == nil {
		t.Error("Expected nil data to be replaced with an empty map")
	}
	if e.Timestamp.Before(before) {
		t.Errorf("event timestamp %v is before emit time %v", e.Timestamp, before)
	}
}

func TestEmit_NilObserver(t *testing.T) {
	observability.Emit(context.Background(), nil, "ignored", observability.LevelInfo, "test", nil)
}

func TestOrNoOp(t *testing.T) {
	if _, ok := observability.OrNoOp(nil).(observability.NoOpObserver); !ok {
		t.Error("OrNoOp(nil) should return NoOpObserver")
	}
	rec := observability.NewRecorder()
	if observability.OrNoOp(rec) != rec {
		t.Error("OrNoOp(rec) should return the given observer")
	}
}

func TestRecorder(t *testing.T) {
	rec := observability.NewRecorder()
	ctx := context.Background()

	observability.Emit(ctx, rec, "a", observability.LevelInfo, "test", nil)
	observability.Emit(ctx, rec, "b", observability.LevelInfo, "test", nil)
	observability.Emit(ctx, rec, "a", observability.LevelWarning, "test", nil)

	if got := rec.Count("a"); got != 2 {
		t.Errorf("Count(a) = %d, want 2", got)
	}
	if got := len(rec.OfType("b")); got != 1 {
		t.Errorf("len(OfType(b)) = %d, want 1", got)
	}
	if got := rec.Events()[2].Level; got != observability.LevelWarning {
		t.Errorf("third event level = %v, want %v", got, observability.LevelWarning)
	}

	rec.Reset()
	if got := len(rec.Events()); got != 0 {
		t.Errorf("len(Events()) after Reset = %d, want 0", got)
	}
}

func TestFanout(t *testing.T) {
	rec1 := observability.NewRecorder()
	rec2 := observability.NewRecorder()

	multi := observability.Fanout(rec1, nil, rec2)
	multi.OnEvent(context.Background(), observability.Event{
		Type:  "test.event",
		Level: observability.LevelInfo,
	})

	if got := rec1.Count("test.event"); got != 1 {
		t.Errorf("observer 1 received %d events, want 1", got)
	}
	if got := rec2.Count("test.event"); got != 1 {
		t.Errorf("observer 2 received %d events, want 1", got)
	}
}

func TestFanout_Collapses(t *testing.T) {
	if _, ok := observability.Fanout().(observability.NoOpObserver); !ok {
		t.Error("Fanout() should return NoOpObserver")
	}
	if _, ok := observability.Fanout(nil, nil).(observability.NoOpObserver); !ok {
		t.Error("Fanout(nil, nil) should return NoOpObserver")
	}

	rec := observability.NewRecorder()
	if got := observability.Fanout(nil, rec); got != observability.Observer(rec) {
		t.Errorf("Fanout(nil, rec) = %T, want the recorder itself", got)
	}
}

func TestMinLevel(t *testing.T) {
	rec := observability.NewRecorder()
	obs := observability.MinLevel(rec, observability.LevelInfo)
	ctx := context.Background()

	observability.Emit(ctx, obs, "debug", observability.LevelVerbose, "test", nil)
	observability.Emit(ctx, obs, "info", observability.LevelInfo, "test", nil)
	observability.Emit(ctx, obs, "error", observability.LevelError, "test", nil)

	if got := len(rec.Events()); got != 2 {
		t.Fatalf("Expected 2 events, got %d", got)
	}
	if rec.Count("debug") != 0 {
		t.Error("Expected verbose event to be dropped")
	}

	observability.Emit(ctx, observability.MinLevel(nil, observability.LevelInfo), "info", observability.LevelInfo, "test", nil)
}

func TestSlogObserver_LevelMapping(t *testing.T) {
	tests := []struct {
		name      string
		level     observability.Level
		minLevel  slog.Level
		expectLog bool
	}{
		{name: "verbose at debug handler", level: observability.LevelVerbose, minLevel: slog.LevelDebug, expectLog: true},
		{name: "verbose at info handler", level: observability.LevelVerbose, minLevel: slog.LevelInfo, expectLog: false},
		{name: "info at info handler", level: observability.LevelInfo, minLevel: slog.LevelInfo, expectLog: true},
		{name: "info at warn handler", level: observability.LevelInfo, minLevel: slog.LevelWarn, expectLog: false},
		{name: "warning at warn handler", level: observability.LevelWarning, minLevel: slog.LevelWarn, expectLog: true},
		{name: "error at error handler", level: observability.LevelError, minLevel: slog.LevelError, expectLog: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
				Level: tt.minLevel,
			}))

			obs := observability.NewSlogObserver(logger)
			obs.OnEvent(context.Background(), observability.Event{
				Type:      "test.event",
				Level:     tt.level,
				Timestamp: time.Now(),
				Source:    "test",
			})

			hasOutput := buf.Len() > 0
			if hasOutput != tt.expectLog {
				t.Errorf("log output = %v, want %v (buf: %q)", hasOutput, tt.expectLog, buf.String())
			}
		})
	}
}

func TestSlogObserver_AttributesInKeyOrder(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	obs := observability.NewSlogObserver(logger)
	obs.OnEvent(context.Background(), observability.Event{
		Type:   "navigation.return",
		Level:  observability.LevelInfo,
		Source: "navigation",
		Data: map[string]any{
			"to":   "home",
			"from": "orders",
		},
	})

	output := buf.String()
	if !strings.Contains(output, "navigation.return") {
		t.Errorf("expected event type as log message, got: %s", output)
	}
	if !strings.Contains(output, "source=navigation") {
		t.Errorf("expected source attribute, got: %s", output)
	}
	from := strings.Index(output, "from=orders")
	to := strings.Index(output, "to=home")
	if from < 0 || to < 0 || from > to {
		t.Errorf("expected sorted data attributes, got: %s", output)
	}
}

func TestRegistry_GetObserver(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "noop exists", key: "noop", wantErr: false},
		{name: "slog exists", key: "slog", wantErr: false},
		{name: "unknown fails", key: "nonexistent", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, err := observability.GetObserver(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("GetObserver(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if !tt.wantErr && obs == nil {
				t.Errorf("GetObserver(%q) returned nil observer", tt.key)
			}
		})
	}
}

func TestRegistry_RegisterAndNames(t *testing.T) {
	rec := observability.NewRecorder()
	observability.RegisterObserver("test-recorder", rec)

	obs, err := observability.GetObserver("test-recorder")
	if err != nil {
		t.Fatalf("GetObserver failed: %v", err)
	}
	obs.OnEvent(context.Background(), observability.Event{Type: "test.event"})

	if got := rec.Count("test.event"); got != 1 {
		t.Errorf("received %d events, want 1", got)
	}

	found := false
	for _, name := range observability.Names() {
		if name == "test-recorder" {
			found = true
		}
	}
	if !found {
		t.Errorf("Names() = %v, want it to include %q", observability.Names(), "test-recorder")
	}
}
