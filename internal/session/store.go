package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ferrite-ai/ferrite/internal/log"
)

// Querier defines the database operations Store depends on. The interface
// lives with its consumer so tests can substitute a mock without a real
// database; [Queries] is the pgx implementation.
type Querier interface {
	EnsureSession(ctx context.Context, id uuid.UUID, title string) error
	GetSession(ctx context.Context, id uuid.UUID) (*Session, error)
	ListSessions(ctx context.Context, limit, offset int32) ([]*Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
	LockSession(ctx context.Context, id uuid.UUID) error
	MaxSequence(ctx context.Context, id uuid.UUID) (int32, error)
	AddMessage(ctx context.Context, arg AddMessageParams) error
	Messages(ctx context.Context, id uuid.UUID, limit, offset int32) ([]*Message, error)
	RecentMessages(ctx context.Context, id uuid.UUID, limit int32) ([]*Message, error)
	TouchSession(ctx context.Context, id uuid.UUID, messageCount int32) error
}

// Store manages session persistence with a PostgreSQL backend.
// Safe for concurrent use.
type Store struct {
	querier Querier
	pool    *pgxpool.Pool // nil in unit tests: falls back to non-transactional writes
	logger  log.Logger
}

// New creates a Store.
//
// Production: session.New(session.NewQueries(pool), pool, logger).
// Tests: session.New(mockQuerier, nil, log.NewNop()).
func New(querier Querier, pool *pgxpool.Pool, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{querier: querier, pool: pool, logger: logger}
}

// EnsureSession creates the session row if it does not exist. Idempotent.
func (s *Store) EnsureSession(ctx context.Context, id uuid.UUID) error {
	if err := s.querier.EnsureSession(ctx, id, ""); err != nil {
		return err
	}
	s.logger.Debug("ensured session", "session_id", id)
	return nil
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.querier.GetSession(ctx, id)
}

// ListSessions lists sessions with pagination, newest activity first.
func (s *Store) ListSessions(ctx context.Context, limit, offset int32) ([]*Session, error) {
	sessions, err := s.querier.ListSessions(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("listed sessions", "count", len(sessions), "limit", limit, "offset", offset)
	return sessions, nil
}

// DeleteSession deletes a session and all its messages (CASCADE).
// Idempotent: deleting a missing session is not an error.
func (s *Store) DeleteSession(ctx context.Context, id uuid.UUID) error {
	if err := s.querier.DeleteSession(ctx, id); err != nil {
		return err
	}
	s.logger.Debug("deleted session", "session_id", id)
	return nil
}

// AddMessages appends messages to a session, assigning consecutive sequence
// numbers. The write runs in a transaction that first locks the session row
// (SELECT ... FOR UPDATE) so concurrent appends cannot race on sequence
// numbers.
func (s *Store) AddMessages(ctx context.Context, id uuid.UUID, messages []*Message) error {
	if len(messages) == 0 {
		return nil
	}

	// Unit tests construct the store without a pool; writes then go through
	// the mock querier directly, relying on the test's serialization.
	if s.pool == nil {
		return s.appendMessages(ctx, s.querier, id, messages, false)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil {
			s.logger.Debug("transaction rollback (may be already committed)", "error", err)
		}
	}()

	if err := s.appendMessages(ctx, NewQueries(tx), id, messages, true); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.Debug("added messages", "session_id", id, "count", len(messages))
	return nil
}

// appendMessages performs the locked sequence-number assignment and inserts
// against q, which is either the transaction querier or (tests) the mock.
func (s *Store) appendMessages(ctx context.Context, q Querier, id uuid.UUID, messages []*Message, lock bool) error {
	if lock {
		if err := q.LockSession(ctx, id); err != nil {
			return err
		}
	}

	maxSeq, err := q.MaxSequence(ctx, id)
	if err != nil {
		return err
	}

	for i, msg := range messages {
		for j, part := range msg.Content {
			if part == nil {
				return fmt.Errorf("message %d has nil content at index %d", i, j)
			}
		}

		contentJSON, err := json.Marshal(msg.Content)
		if err != nil {
			return fmt.Errorf("marshal message content at index %d: %w", i, err)
		}

		if err := q.AddMessage(ctx, AddMessageParams{
			SessionID:      id,
			Role:           msg.Role,
			Content:        contentJSON,
			SequenceNumber: maxSeq + int32(i) + 1, //nolint:gosec // i bounded by slice length
		}); err != nil {
			return err
		}
	}

	return q.TouchSession(ctx, id, maxSeq+int32(len(messages))) //nolint:gosec // bounded by practical message counts
}

// Messages retrieves messages for a session with pagination, ordered by
// sequence number ascending.
func (s *Store) Messages(ctx context.Context, id uuid.UUID, limit, offset int32) ([]*Message, error) {
	messages, err := s.querier.Messages(ctx, id, limit, offset)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("retrieved messages", "session_id", id, "count", len(messages))
	return messages, nil
}

// History loads the most recent limit messages as genkit messages, oldest
// first, ready to seed a prompt request.
func (s *Store) History(ctx context.Context, id uuid.UUID, limit int32) ([]*ai.Message, error) {
	messages, err := s.querier.RecentMessages(ctx, id, NormalizeHistoryLimit(limit))
	if err != nil {
		return nil, err
	}

	history := make([]*ai.Message, 0, len(messages))
	for _, msg := range messages {
		history = append(history, &ai.Message{
			Role:    ai.Role(msg.Role),
			Content: msg.Content,
		})
	}
	return history, nil
}
