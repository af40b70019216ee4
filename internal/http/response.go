package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"bizreview/internal/core"
	applog "bizreview/internal/log"
)

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, extra map[string]any) {
	body := map[string]any{"ok": true}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

// writeError maps validation failures to 400 with the offending field and
// anything else to a logged 500 that does not leak internals.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ve.Error(), Field: ve.Field})
		return
	}
	var re *requestError
	if errors.As(err, &re) {
		writeJSON(w, re.status, errorBody{Error: re.msg, Field: re.field})
		return
	}
	if errors.Is(err, context.DeadlineExceeded) && r.Context().Err() == nil {
		writeJSON(w, http.StatusGatewayTimeout, errorBody{Error: "request timed out"})
		return
	}
	if ctxErr := r.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Request cancelled", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "request cancelled"})
		return
	}
	applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
		applog.FieldPath, r.URL.Path,
		applog.FieldError, err.Error())
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
}
