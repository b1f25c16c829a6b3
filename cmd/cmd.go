// Package cmd provides the assistant's command line entry points.
//
// Commands:
//   - serve: HTTP API server streaming assistant turns over SSE
//   - migrate: apply database migrations and exit
//   - version: show build information
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/koopa0/assistant/internal/log"
)

// Execute is the main entry point for the assistant binary.
func Execute() error {
	// Initialize logger once at entry point
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(log.Config{
		Level: level,
		JSON:  os.Getenv("LOG_FORMAT") == "json",
	}))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "migrate":
		return runMigrate()
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
	fmt.Println("Assistant - AI assistant backend")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  assistant serve [addr] Start HTTP API server (default: :8080)")
	fmt.Println("  assistant migrate      Apply database migrations and exit")
	fmt.Println("  assistant version      Show version information")
	fmt.Println("  assistant help         Show this help")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  DEBUG=1                Enable debug logging")
	fmt.Println("  LOG_FORMAT=json        JSON log output")
	fmt.Println("  DATABASE_URL           PostgreSQL connection URL")
	fmt.Println("  OPENAI_API_KEY         OpenAI API key")
	fmt.Println("  ANTHROPIC_API_KEY      Anthropic API key")
	fmt.Println("  GEMINI_API_KEY         Google Gemini API key")
}
