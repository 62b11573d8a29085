package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jupyterhub/hubevents/internal/event"
)

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the standard error envelope.
type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeValidationError reports err as a 400, naming the offending field when known.
func writeValidationError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	var verr *event.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	writeJSON(w, http.StatusBadRequest, resp)
}
