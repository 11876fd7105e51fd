package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ferrite-ai/ferrite/internal/engine"
	"github.com/ferrite-ai/ferrite/internal/log"
	"github.com/ferrite-ai/ferrite/internal/turn"
	"github.com/ferrite-ai/ferrite/internal/wire"
)

// maxChatBodyBytes bounds the synchronous chat request body.
const maxChatBodyBytes = 1 << 20

// chatHandler serves the synchronous and streaming chat endpoints on top of
// the turn registry.
type chatHandler struct {
	registry *turn.Registry
	engines  *engine.Manager
	logger   log.Logger
}

// chatRequest is the synchronous chat input. SessionID is optional; a fresh
// session is created when it is empty.
type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// chatResponse is the synchronous chat output: the full assistant text for
// one turn.
type chatResponse struct {
	SessionID string `json:"session_id"`
	Response  string `json:"response"`
}

// send handles POST /api/v1/chat: one full turn, JSON in, JSON out. Tool
// traffic is not surfaced here; clients that want it use the SSE endpoint.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}

	sessionID, ok := resolveSessionID(w, req.SessionID, h.logger)
	if !ok {
		return
	}

	h.engines.MaybeReload(r.Context())

	stream, err := h.registry.StartTurn(r.Context(), sessionID, req.Message)
	if err != nil {
		status, code := errorStatus(err)
		writeError(w, status, code, err.Error(), h.logger)
		return
	}

	var b strings.Builder
	for {
		ev, ok := stream.Next(r.Context())
		if !ok {
			break
		}
		switch e := ev.(type) {
		case wire.Text:
			b.WriteString(e.Chunk)
		case wire.Error:
			writeError(w, http.StatusInternalServerError, "execution_failed", e.Text, h.logger)
			return
		}
	}

	w.Header().Set("X-Session-Id", sessionID)
	writeJSON(w, http.StatusOK, chatResponse{SessionID: sessionID, Response: b.String()}, h.logger)
}

// stream handles GET /api/v1/chat/stream?message=&session_id=. Events are
// framed as SSE data records; the session id (possibly freshly minted) is
// returned on the X-Session-Id header before the first frame.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	message := r.URL.Query().Get("message")
	if strings.TrimSpace(message) == "" {
		writeError(w, http.StatusBadRequest, "empty_message", "message query parameter is required", h.logger)
		return
	}

	sessionID, ok := resolveSessionID(w, r.URL.Query().Get("session_id"), h.logger)
	if !ok {
		return
	}

	h.engines.MaybeReload(r.Context())

	// Start the turn before committing to SSE so failures still map to
	// proper HTTP statuses.
	stream, err := h.registry.StartTurn(r.Context(), sessionID, message)
	if err != nil {
		status, code := errorStatus(err)
		writeError(w, status, code, err.Error(), h.logger)
		return
	}

	w.Header().Set("X-Session-Id", sessionID)
	sse, ok := newSSEWriter(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support streaming", h.logger)
		return
	}

	for {
		ev, ok := stream.Next(r.Context())
		if !ok {
			// Exhausted or client gone; Next already flagged the stop.
			break
		}
		if err := sse.Send(ev); err != nil {
			// Write failure usually means the connection closed.
			h.logger.Debug("sse write failed", "session_id", sessionID, "error", err)
			return
		}
	}

	h.logger.Debug("sse stream finished", "session_id", sessionID)
}

// resolveSessionID validates a client-supplied session id or mints a new
// one. Writes the error response itself when the id is malformed.
func resolveSessionID(w http.ResponseWriter, raw string, logger log.Logger) (string, bool) {
	if raw == "" {
		return uuid.NewString(), true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_session", "session_id must be a UUID", logger)
		return "", false
	}
	return id.String(), true
}
