package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the pgx surface Queries needs. Both *pgxpool.Pool and pgx.Tx
// satisfy it, so the same query code runs inside and outside transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AddMessageParams are the inputs for one message row.
type AddMessageParams struct {
	SessionID      uuid.UUID
	Role           string
	Content        []byte // JSON-encoded []*ai.Part
	SequenceNumber int32
}

// Queries implements the session SQL against a DBTX.
type Queries struct {
	db DBTX
}

// NewQueries returns Queries bound to db.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// EnsureSession inserts the session row if it does not exist. Idempotent.
func (q *Queries) EnsureSession(ctx context.Context, id uuid.UUID, title string) error {
	var titlePtr *string
	if title != "" {
		titlePtr = &title
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO sessions (id, title)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING`,
		uuidToPg(id), titlePtr)
	if err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	return nil
}

// GetSession fetches one session. Returns ErrSessionNotFound when missing.
func (q *Queries) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, title, model_name, message_count, created_at, updated_at
		FROM sessions
		WHERE id = $1`,
		uuidToPg(id))

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// ListSessions returns sessions ordered by updated_at descending.
func (q *Queries) ListSessions(ctx context.Context, limit, offset int32) ([]*Session, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, title, model_name, message_count, created_at, updated_at
		FROM sessions
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// DeleteSession removes the session and its messages (CASCADE). Idempotent.
func (q *Queries) DeleteSession(ctx context.Context, id uuid.UUID) error {
	if _, err := q.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, uuidToPg(id)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// LockSession takes a row lock on the session for the current transaction,
// serializing sequence number assignment.
func (q *Queries) LockSession(ctx context.Context, id uuid.UUID) error {
	var locked pgtype.UUID
	err := q.db.QueryRow(ctx, `SELECT id FROM sessions WHERE id = $1 FOR UPDATE`, uuidToPg(id)).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return fmt.Errorf("lock session: %w", err)
	}
	return nil
}

// MaxSequence returns the highest sequence number in the session, 0 when
// the session has no messages.
func (q *Queries) MaxSequence(ctx context.Context, id uuid.UUID) (int32, error) {
	var maxSeq int32
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(MAX(sequence_number), 0)
		FROM session_messages
		WHERE session_id = $1`,
		uuidToPg(id)).Scan(&maxSeq)
	if err != nil {
		return 0, fmt.Errorf("max sequence: %w", err)
	}
	return maxSeq, nil
}

// AddMessage inserts one message row.
func (q *Queries) AddMessage(ctx context.Context, arg AddMessageParams) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO session_messages (session_id, role, content, sequence_number)
		VALUES ($1, $2, $3, $4)`,
		uuidToPg(arg.SessionID), arg.Role, arg.Content, arg.SequenceNumber)
	if err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	return nil
}

// Messages returns messages ordered by sequence number ascending.
func (q *Queries) Messages(ctx context.Context, id uuid.UUID, limit, offset int32) ([]*Message, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, session_id, role, content, sequence_number, created_at
		FROM session_messages
		WHERE session_id = $1
		ORDER BY sequence_number ASC
		LIMIT $2 OFFSET $3`,
		uuidToPg(id), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

// RecentMessages returns the last limit messages in ascending order.
func (q *Queries) RecentMessages(ctx context.Context, id uuid.UUID, limit int32) ([]*Message, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, session_id, role, content, sequence_number, created_at
		FROM (
			SELECT id, session_id, role, content, sequence_number, created_at
			FROM session_messages
			WHERE session_id = $1
			ORDER BY sequence_number DESC
			LIMIT $2
		) recent
		ORDER BY sequence_number ASC`,
		uuidToPg(id), limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

// TouchSession bumps updated_at and stores the new message count.
func (q *Queries) TouchSession(ctx context.Context, id uuid.UUID, messageCount int32) error {
	_, err := q.db.Exec(ctx, `
		UPDATE sessions
		SET updated_at = now(), message_count = $2
		WHERE id = $1`,
		uuidToPg(id), messageCount)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// scanSession reads one session row. Nullable columns arrive as pointers.
func scanSession(row pgx.Row) (*Session, error) {
	var (
		id           pgtype.UUID
		title        *string
		modelName    *string
		messageCount *int32
		createdAt    pgtype.Timestamptz
		updatedAt    pgtype.Timestamptz
	)
	if err := row.Scan(&id, &title, &modelName, &messageCount, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	sess := &Session{
		ID:        pgToUUID(id),
		CreatedAt: createdAt.Time,
		UpdatedAt: updatedAt.Time,
	}
	if title != nil {
		sess.Title = *title
	}
	if modelName != nil {
		sess.ModelName = *modelName
	}
	if messageCount != nil {
		sess.MessageCount = int(*messageCount)
	}
	return sess, nil
}

// collectMessages drains rows into messages. Rows whose content fails to
// decode are skipped; a malformed row must never block history loading.
func collectMessages(rows pgx.Rows) ([]*Message, error) {
	var messages []*Message
	for rows.Next() {
		var (
			id        pgtype.UUID
			sessionID pgtype.UUID
			role      string
			content   []byte
			seq       int32
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &sessionID, &role, &content, &seq, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}

		var parts []*ai.Part
		if err := json.Unmarshal(content, &parts); err != nil {
			continue
		}

		messages = append(messages, &Message{
			ID:             pgToUUID(id),
			SessionID:      pgToUUID(sessionID),
			Role:           role,
			Content:        parts,
			SequenceNumber: int(seq),
			CreatedAt:      createdAt.Time,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// uuidToPg converts uuid.UUID to pgtype.UUID.
func uuidToPg(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// pgToUUID converts pgtype.UUID to uuid.UUID.
func pgToUUID(id pgtype.UUID) uuid.UUID {
	if !id.Valid {
		return uuid.Nil
	}
	return id.Bytes
}
