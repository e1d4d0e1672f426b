package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"limits/internal/compliance"
)

// statusPayload is the wire shape of every load and token error response:
// {"status": "ok"|"error", "errors": [{code, message}, ...]}.
type statusPayload struct {
	Status string                 `json:"status"`
	Errors []compliance.WireError `json:"errors"`
}

func okPayload() statusPayload {
	return statusPayload{Status: "ok", Errors: []compliance.WireError{}}
}

func errorPayload(errs []compliance.WireError) statusPayload {
	if errs == nil {
		errs = []compliance.WireError{}
	}
	return statusPayload{Status: "error", Errors: errs}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeHTTPError renders a plain HTTP failure in the standard error shape,
// with the code "http-<status>".
func writeHTTPError(w http.ResponseWriter, status int) {
	writeJSON(w, status, errorPayload([]compliance.WireError{{
		Code:    "http-" + strconv.Itoa(status),
		Message: http.StatusText(status),
	}}))
}

// clientIP extracts the caller's address, preferring proxy headers.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
