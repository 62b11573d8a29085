package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jupyterhub/hubevents/internal/config"
	"github.com/jupyterhub/hubevents/internal/event"
	"github.com/jupyterhub/hubevents/internal/metrics"
	"github.com/jupyterhub/hubevents/internal/telemetry"
)

const maxBodyBytes = 64 << 10

// SchemaSource lists the schemas a sink knows about.
type SchemaSource interface {
	Schemas() []event.Descriptor
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	rec     telemetry.Recorder
	schemas SchemaSource
	loader  *config.Loader
	mux     *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
// loader may be nil, in which case config reload is unavailable.
func New(rec telemetry.Recorder, schemas SchemaSource, loader *config.Loader) http.Handler {
	h := &Handler{rec: rec, schemas: schemas, loader: loader, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/events/server-action", h.recordServerAction)
	h.mux.HandleFunc("GET /v1/schemas", h.listSchemas)
	h.mux.HandleFunc("GET /v1/schemas/server-action", h.serverActionSchema)
	h.mux.HandleFunc("POST /v1/config/reload", h.reloadConfig)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

// POST /v1/events/server-action — record a completed start/stop.
func (h *Handler) recordServerAction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %s", err))
		return
	}
	ev, err := event.DecodeServerAction(body)
	if err != nil {
		metrics.EventsRejected.WithLabelValues("validation").Inc()
		writeValidationError(w, err)
		return
	}
	err = h.rec.Record(r.Context(), ev, ev.SchemaID(), ev.SchemaVersion())
	switch {
	case errors.Is(err, telemetry.ErrUnknownSchema):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"schema":  ev.SchemaID(),
		"version": ev.SchemaVersion(),
		"event":   ev,
	})
}

// GET /v1/schemas — registered schemas.
func (h *Handler) listSchemas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"schemas": h.schemas.Schemas()})
}

// GET /v1/schemas/server-action
func (h *Handler) serverActionSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, event.Schema())
}

// POST /v1/config/reload — re-read config from disk.
func (h *Handler) reloadConfig(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil {
		writeError(w, http.StatusNotImplemented, "config reload not configured")
		return
	}
	cfg, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":        true,
		"allowed_schemas": cfg.EventLog.AllowedSchemas,
	})
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
