// Package cmd provides the ferrite CLI commands.
//
// Commands:
//   - serve: HTTP chat backend with SSE streaming
//   - sessions: inspect stored sessions from the terminal
//   - version / help
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ferrite-ai/ferrite/internal/log"
)

// Execute is the main entry point for the ferrite CLI.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe(logger)
	case "sessions":
		return runSessions(logger)
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("Ferrite - streaming AI chat backend")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ferrite serve [addr]        Start the HTTP backend (default: 127.0.0.1:8000)")
	fmt.Println("  ferrite sessions list       List stored sessions")
	fmt.Println("  ferrite sessions current    Show the current session id")
	fmt.Println("  ferrite --version           Show version information")
	fmt.Println("  ferrite --help              Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY     Gemini API key (provider: gemini)")
	fmt.Println("  OPENAI_API_KEY     OpenAI API key (provider: openai)")
	fmt.Println("  DEBUG              Optional: enable debug logging")
	fmt.Println()
	fmt.Println("Configuration: ~/.ferrite/config.yaml, overridable via FERRITE_* env vars.")
}
