package relay

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/brojonat/custodian/service/nats"
	"github.com/brojonat/custodian/service/surface"
)

const (
	maxRequestBodySize = 64 << 10 // messages are a handful of short strings
	maxFieldLength     = 1024
)

// Event names become NATS subject tokens and must not contain separators or wildcards.
var validEventRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type messageRequest struct {
	Type string `json:"type"`
	Code string `json:"code,omitempty"`
	Addr string `json:"addr,omitempty"`
}

// handlePostMessage returns a handler that republishes a page's message.
// POST /messages/{event}
// The body is {"type": ..., "code": ..., "addr": ...}; the origin is the
// request's Origin header.
func handlePostMessage(publisher nats.Publisher, allowed map[string]bool, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		event := r.PathValue("event")
		if !validEventRegex.MatchString(event) {
			writeError(w, "invalid event name", http.StatusBadRequest)
			return
		}

		origin := r.Header.Get("Origin")
		if origin == "" || origin == "null" {
			writeError(w, "origin header is required", http.StatusBadRequest)
			return
		}
		origin = surface.Origin(origin)
		if len(allowed) > 0 && !allowed[origin] {
			logger.Warn("rejected message from unknown origin", "origin", origin, "event", event)
			writeError(w, "origin not allowed", http.StatusForbidden)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req messageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				writeError(w, "request body too large", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Type == "" {
			writeError(w, "type is required", http.StatusBadRequest)
			return
		}
		if len(req.Type) > maxFieldLength || len(req.Code) > maxFieldLength || len(req.Addr) > maxFieldLength {
			writeError(w, "field too long", http.StatusBadRequest)
			return
		}

		msg := surface.Message{
			Origin: origin,
			Type:   req.Type,
			Code:   req.Code,
			Addr:   req.Addr,
		}
		if err := publisher.Publish(r.Context(), event, msg); err != nil {
			logger.Error("failed to relay message", "event", event, "error", err)
			writeError(w, "failed to relay message", http.StatusBadGateway)
			return
		}

		logger.Info("message relayed", "event", event, "type", req.Type, "origin", origin)
		writeJSON(w, map[string]string{"status": "accepted"}, http.StatusAccepted)
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
