package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/jupyterhub/hubevents/internal/event"
	"github.com/jupyterhub/hubevents/internal/metrics"
)

var (
	ErrUnknownSchema = errors.New("schema not registered")
	ErrBadEvent      = errors.New("event has no serializable fields")
)

// Recorder accepts completed events for a given schema id and version.
type Recorder interface {
	Record(ctx context.Context, ev any, schemaID string, schemaVersion int) error
}

// fielder is implemented by events that expose their data as a map.
type fielder interface {
	Fields() map[string]any
}

// Format selects the envelope encoding written by an EventLog.
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// EventLog writes one envelope per recorded event to an io.Writer.
// Schemas must be registered before their events can be recorded; events
// whose schema id is not in the allow list are dropped without error.
type EventLog struct {
	mu      sync.Mutex
	out     io.Writer
	format  Format
	schemas map[schemaKey]event.Descriptor
	allowed map[string]bool
	now     func() time.Time
	cborEnc cbor.EncMode
}

type schemaKey struct {
	id      string
	version int
}

// Option configures an EventLog.
type Option func(*EventLog)

// WithClock overrides the emission timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *EventLog) { l.now = now }
}

// NewEventLog creates an EventLog writing to out in the given format.
func NewEventLog(out io.Writer, format Format, allowed []string, opts ...Option) (*EventLog, error) {
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatCBOR {
		return nil, fmt.Errorf("eventlog: unknown format %q", format)
	}
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("eventlog: cbor encoder: %w", err)
	}
	l := &EventLog{
		out:     out,
		format:  format,
		schemas: make(map[schemaKey]event.Descriptor),
		now:     time.Now,
		cborEnc: enc,
	}
	l.SetAllowed(allowed)
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

// RegisterSchema makes d's (id, version) recordable.
func (l *EventLog) RegisterSchema(d event.Descriptor) error {
	if d.ID == "" || d.Version < 1 {
		return fmt.Errorf("eventlog: invalid schema %q v%d", d.ID, d.Version)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	k := schemaKey{d.ID, d.Version}
	if _, ok := l.schemas[k]; ok {
		return fmt.Errorf("eventlog: schema %s v%d already registered", d.ID, d.Version)
	}
	l.schemas[k] = d
	return nil
}

// Schemas returns the registered descriptors sorted by id, then version.
func (l *EventLog) Schemas() []event.Descriptor {
	l.mu.Lock()
	out := make([]event.Descriptor, 0, len(l.schemas))
	for _, d := range l.schemas {
		out = append(out, d)
	}
	l.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].Version < out[j].Version
	})
	return out
}

// SetAllowed replaces the allow list. Safe to call while recording.
func (l *EventLog) SetAllowed(ids []string) {
	allowed := make(map[string]bool, len(ids))
	for _, id := range ids {
		allowed[id] = true
	}
	l.mu.Lock()
	l.allowed = allowed
	l.mu.Unlock()
}

// Record implements Recorder.
func (l *EventLog) Record(ctx context.Context, ev any, schemaID string, schemaVersion int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, ok := ev.(fielder)
	if !ok {
		metrics.EventsRejected.WithLabelValues("bad_event").Inc()
		return fmt.Errorf("eventlog: %T: %w", ev, ErrBadEvent)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.schemas[schemaKey{schemaID, schemaVersion}]; !ok {
		metrics.EventsRejected.WithLabelValues("unknown_schema").Inc()
		return fmt.Errorf("eventlog: %s v%d: %w", schemaID, schemaVersion, ErrUnknownSchema)
	}
	if !l.allowed[schemaID] {
		metrics.EventsFiltered.WithLabelValues(schemaID).Inc()
		slog.Debug("event dropped: schema not allowed", "schema", schemaID)
		return nil
	}

	env := f.Fields()
	env["__schema__"] = schemaID
	env["__schema_version__"] = schemaVersion
	env["__timestamp__"] = l.now().UTC().Format(time.RFC3339Nano)
	env["__event_id__"] = uuid.NewString()

	if err := l.write(env); err != nil {
		metrics.EventsRejected.WithLabelValues("write_failed").Inc()
		return fmt.Errorf("eventlog: write %s: %w", schemaID, err)
	}
	action, _ := env["action"].(string)
	metrics.EventsRecorded.WithLabelValues(schemaID, action).Inc()
	return nil
}

// write must be called with l.mu held.
func (l *EventLog) write(env map[string]any) error {
	var (
		data []byte
		err  error
	)
	switch l.format {
	case FormatCBOR:
		data, err = l.cborEnc.Marshal(env)
	default:
		data, err = json.Marshal(env)
		data = append(data, '\n')
	}
	if err != nil {
		return err
	}
	_, err = l.out.Write(data)
	return err
}
