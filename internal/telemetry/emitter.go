package telemetry

import (
	"context"

	"github.com/jupyterhub/hubevents/internal/event"
)

// RecordServerAction builds a server-action record and hands it to rec.
// Validation errors are returned unchanged and nothing is recorded.
func RecordServerAction(ctx context.Context, rec Recorder, action, username, servername string) error {
	ev, err := event.NewServerAction(action, username, servername)
	if err != nil {
		return err
	}
	return rec.Record(ctx, ev, ev.SchemaID(), ev.SchemaVersion())
}
