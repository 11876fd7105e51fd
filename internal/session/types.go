package session

import (
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
)

// Role constants define valid message roles. They mirror genkit's ai.Role
// values so history rows load straight back into a prompt request.
const (
	RoleUser   = "user"
	RoleModel  = "model"
	RoleSystem = "system"
	RoleTool   = "tool"
)

// Session represents a conversation session (application-level type).
type Session struct {
	ID           uuid.UUID
	Title        string
	ModelName    string
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Message represents a single conversation message. Content stores genkit's
// ai.Part slice, serialized as JSONB in the database.
type Message struct {
	ID             uuid.UUID
	SessionID      uuid.UUID
	Role           string
	Content        []*ai.Part
	SequenceNumber int
	CreatedAt      time.Time
}

// TextMessage builds a single-part text message for role.
func TextMessage(role, text string) *Message {
	return &Message{
		Role:    role,
		Content: []*ai.Part{ai.NewTextPart(text)},
	}
}

// Text returns the concatenated text parts of the message.
func (m *Message) Text() string {
	var out string
	for _, part := range m.Content {
		if part != nil && part.IsText() {
			out += part.Text
		}
	}
	return out
}
