package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ferrite-ai/ferrite/internal/log"
	"github.com/ferrite-ai/ferrite/internal/session"
	"github.com/ferrite-ai/ferrite/internal/turn"
)

const (
	sessionsDefaultLimit = 50
	messagesDefaultLimit = 100
	listMaxOffset        = 10000
)

// sessionHandler serves session lifecycle endpoints. The store is optional:
// list and messages routes are only registered when it is present.
type sessionHandler struct {
	registry *turn.Registry
	store    *session.Store
	logger   log.Logger
}

// sealResponse mirrors turn.SealResult on the wire. Reason is omitted on
// success.
type sealResponse struct {
	Preserved bool   `json:"preserved"`
	Reason    string `json:"reason,omitempty"`
}

// seal handles POST /api/v1/sessions/{id}/seal. Idempotent from the
// client's view: sealing an idle session reports preserved=false rather
// than an HTTP error.
func (h *sessionHandler) seal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathSessionID(w, r, h.logger)
	if !ok {
		return
	}

	res := h.registry.Seal(r.Context(), id)
	writeJSON(w, http.StatusOK, sealResponse{Preserved: res.Preserved, Reason: res.Reason}, h.logger)
}

// deleteSession handles DELETE /api/v1/sessions/{id}. Always reports
// deleted=true: removing an already-absent session is a success.
func (h *sessionHandler) deleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathSessionID(w, r, h.logger)
	if !ok {
		return
	}

	h.registry.DeleteSession(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true}, h.logger)
}

// sessionItem is the list representation of a session.
type sessionItem struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Model        string    `json:"model"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// listSessions handles GET /api/v1/sessions.
func (h *sessionHandler) listSessions(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := listParams(w, r, sessionsDefaultLimit, h.logger)
	if !ok {
		return
	}

	sessions, err := h.store.ListSessions(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("listing sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list sessions", h.logger)
		return
	}

	items := make([]sessionItem, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, sessionItem{
			ID:           s.ID.String(),
			Title:        s.Title,
			Model:        s.ModelName,
			MessageCount: s.MessageCount,
			CreatedAt:    s.CreatedAt,
			UpdatedAt:    s.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": items, "count": len(items)}, h.logger)
}

// messageItem is the list representation of a stored message.
type messageItem struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Sequence  int       `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
}

// listMessages handles GET /api/v1/sessions/{id}/messages.
func (h *sessionHandler) listMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathSessionID(w, r, h.logger)
	if !ok {
		return
	}
	limit, offset, ok := listParams(w, r, messagesDefaultLimit, h.logger)
	if !ok {
		return
	}

	messages, err := h.store.Messages(r.Context(), uuid.MustParse(id), limit, offset)
	if err != nil {
		h.logger.Error("listing messages", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list messages", h.logger)
		return
	}

	items := make([]messageItem, 0, len(messages))
	for _, m := range messages {
		items = append(items, messageItem{
			Role:      m.Role,
			Text:      m.Text(),
			Sequence:  m.SequenceNumber,
			CreatedAt: m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": items, "count": len(items)}, h.logger)
}

// pathSessionID extracts and validates the {id} path segment.
func pathSessionID(w http.ResponseWriter, r *http.Request, logger log.Logger) (string, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_session", "session id must be a UUID", logger)
		return "", false
	}
	return id.String(), true
}

// listParams parses limit/offset query parameters with bounds checking.
func listParams(w http.ResponseWriter, r *http.Request, defaultLimit int32, logger log.Logger) (limit, offset int32, ok bool) {
	limit = defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 1000", logger)
			return 0, 0, false
		}
		limit = int32(n)
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || n < 0 || n > listMaxOffset {
			writeError(w, http.StatusBadRequest, "invalid_offset", "offset must be between 0 and 10000", logger)
			return 0, 0, false
		}
		offset = int32(n)
	}
	return limit, offset, true
}
