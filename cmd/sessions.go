package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ferrite-ai/ferrite/internal/config"
	"github.com/ferrite-ai/ferrite/internal/log"
	"github.com/ferrite-ai/ferrite/internal/session"
)

const sessionsListLimit = 50

// runSessions dispatches the sessions subcommands.
func runSessions(logger log.Logger) error {
	sub := "list"
	if len(os.Args) > 2 {
		sub = os.Args[2]
	}

	switch sub {
	case "list":
		return runSessionsList(logger)
	case "current":
		return runSessionsCurrent()
	case "use":
		return runSessionsUse()
	case "clear":
		return session.ClearCurrentSessionID()
	default:
		return fmt.Errorf("unknown sessions subcommand: %s (want list, current, use, clear)", sub)
	}
}

// runSessionsList prints stored sessions, newest first.
func runSessionsList(logger log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	store := session.New(session.NewQueries(pool), pool, logger)
	sessions, err := store.ListSessions(ctx, sessionsListLimit, 0)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions.")
		return nil
	}

	current, err := session.LoadCurrentSessionID()
	if err != nil {
		return err
	}

	for _, s := range sessions {
		marker := "  "
		if current != nil && *current == s.ID {
			marker = "* "
		}
		title := s.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%s%s  %-30s  %3d messages  %s\n",
			marker, s.ID, title, s.MessageCount, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

// runSessionsCurrent prints the current session id from the state file.
func runSessionsCurrent() error {
	id, err := session.LoadCurrentSessionID()
	if err != nil {
		return err
	}
	if id == nil {
		fmt.Println("No current session.")
		return nil
	}
	fmt.Println(id.String())
	return nil
}

// runSessionsUse records a session id as current.
func runSessionsUse() error {
	if len(os.Args) < 4 {
		return fmt.Errorf("usage: ferrite sessions use <session-id>")
	}
	id, err := uuid.Parse(os.Args[3])
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", os.Args[3], err)
	}
	if err := session.SaveCurrentSessionID(id); err != nil {
		return err
	}
	fmt.Println("Current session set to", id)
	return nil
}
