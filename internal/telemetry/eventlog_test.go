package telemetry_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/jupyterhub/hubevents/internal/event"
	"github.com/jupyterhub/hubevents/internal/telemetry"
)

var fixedNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func newLog(t *testing.T, buf *bytes.Buffer, format telemetry.Format, allowed ...string) *telemetry.EventLog {
	t.Helper()
	l, err := telemetry.NewEventLog(buf, format, allowed, telemetry.WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("NewEventLog: %v", err)
	}
	if err := l.RegisterSchema(event.Schema()); err != nil {
		t.Fatalf("RegisterSchema: %v", err)
	}
	return l
}

func TestRecord_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := newLog(t, &buf, telemetry.FormatJSON, event.SchemaID)

	if err := telemetry.RecordServerAction(context.Background(), l, "start", "alice", ""); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := telemetry.RecordServerAction(context.Background(), l, "stop", "bob", "research"); err != nil {
		t.Fatalf("record: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	var env map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &env); err != nil {
		t.Fatal(err)
	}
	checks := map[string]any{
		"__schema__":         event.SchemaID,
		"__schema_version__": float64(1),
		"__timestamp__":      "2026-10-14T12:00:00Z",
		"action":             "stop",
		"username":           "bob",
		"servername":         "research",
	}
	for k, want := range checks {
		if env[k] != want {
			t.Errorf("%s: got %v, want %v", k, env[k], want)
		}
	}
	if id, _ := env["__event_id__"].(string); id == "" {
		t.Errorf("missing __event_id__")
	}
}

func TestRecord_CBOR(t *testing.T) {
	var buf bytes.Buffer
	l := newLog(t, &buf, telemetry.FormatCBOR, event.SchemaID)

	if err := telemetry.RecordServerAction(context.Background(), l, "start", "alice", ""); err != nil {
		t.Fatalf("record: %v", err)
	}
	var env map[string]any
	if err := cbor.Unmarshal(buf.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env["__schema__"] != event.SchemaID || env["username"] != "alice" {
		t.Errorf("unexpected envelope %v", env)
	}
}

func TestRecord_ValidationErrorNotRecorded(t *testing.T) {
	var buf bytes.Buffer
	l := newLog(t, &buf, telemetry.FormatJSON, event.SchemaID)

	err := telemetry.RecordServerAction(context.Background(), l, "pause", "alice", "")
	if !errors.Is(err, event.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("nothing should be written, got %q", buf.String())
	}
}

func TestRecord_NotAllowedIsDropped(t *testing.T) {
	var buf bytes.Buffer
	l := newLog(t, &buf, telemetry.FormatJSON)

	if err := telemetry.RecordServerAction(context.Background(), l, "start", "alice", ""); err != nil {
		t.Fatalf("filtered events are not errors: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}

	l.SetAllowed([]string{event.SchemaID})
	if err := telemetry.RecordServerAction(context.Background(), l, "start", "alice", ""); err != nil {
		t.Fatal(err)
	}
	if buf.Len() == 0 {
		t.Errorf("expected output after allowing schema")
	}
}

func TestRecord_UnknownSchema(t *testing.T) {
	var buf bytes.Buffer
	l := newLog(t, &buf, telemetry.FormatJSON, event.SchemaID)
	ev, _ := event.NewServerAction("start", "alice", "")

	err := l.Record(context.Background(), ev, event.SchemaID, 2)
	if !errors.Is(err, telemetry.ErrUnknownSchema) {
		t.Fatalf("expected ErrUnknownSchema, got %v", err)
	}
}

func TestRecord_BadEvent(t *testing.T) {
	var buf bytes.Buffer
	l := newLog(t, &buf, telemetry.FormatJSON, event.SchemaID)

	err := l.Record(context.Background(), "not an event", event.SchemaID, event.SchemaVersion)
	if !errors.Is(err, telemetry.ErrBadEvent) {
		t.Fatalf("expected ErrBadEvent, got %v", err)
	}
}

func TestRecord_CancelledContext(t *testing.T) {
	var buf bytes.Buffer
	l := newLog(t, &buf, telemetry.FormatJSON, event.SchemaID)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := telemetry.RecordServerAction(ctx, l, "start", "alice", ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRegisterSchema_Duplicate(t *testing.T) {
	var buf bytes.Buffer
	l := newLog(t, &buf, telemetry.FormatJSON)
	if err := l.RegisterSchema(event.Schema()); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if got := len(l.Schemas()); got != 1 {
		t.Errorf("expected 1 schema, got %d", got)
	}
}

func TestNewEventLog_UnknownFormat(t *testing.T) {
	if _, err := telemetry.NewEventLog(&bytes.Buffer{}, "xml", nil); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestSchemas_Sorted(t *testing.T) {
	l, err := telemetry.NewEventLog(&bytes.Buffer{}, telemetry.FormatJSON, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range []event.Descriptor{
		{ID: "z.example/b", Version: 1},
		{ID: "a.example/a", Version: 2},
		{ID: "z.example/b", Version: 3},
		{ID: "a.example/a", Version: 1},
	} {
		if err := l.RegisterSchema(d); err != nil {
			t.Fatal(err)
		}
	}
	want := []string{"a.example/a v1", "a.example/a v2", "z.example/b v1", "z.example/b v3"}
	for n := 0; n < 5; n++ {
		got := l.Schemas()
		if len(got) != len(want) {
			t.Fatalf("expected %d schemas, got %d", len(want), len(got))
		}
		for i, d := range got {
			if s := fmt.Sprintf("%s v%d", d.ID, d.Version); s != want[i] {
				t.Errorf("schemas[%d]: got %s, want %s", i, s, want[i])
			}
		}
	}
}
