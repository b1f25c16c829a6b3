// Package processor drives vendor generation calls and normalizes their
// streaming events into the internal chunk protocol.
//
// One processor exists per vendor family (OpenAI Chat Completions, OpenAI
// Responses, Claude Messages, Gemini GenerateContent). A processor builds
// the vendor request through internal/convert, consumes the vendor's
// stream, and feeds every event through the chunk factory while updating
// the turn's tool session tracker. Chunks are handed to the caller's emit
// function synchronously, so tracker transitions and chunk emission stay
// strictly ordered.
//
// Transient vendor failures are retried with exponential backoff before
// anything has been emitted; auth failures are classified by the detector
// in auth.go and surfaced as auth_required chunks rather than errors.
package processor

import (
	"log/slog"

	"github.com/koopa0/assistant/internal/chunk"
	"github.com/koopa0/assistant/internal/convert"
	"github.com/koopa0/assistant/internal/mcp"
	"github.com/koopa0/assistant/internal/thread"
)

// Emit hands one chunk to the consumer. It blocks on the bounded buffer
// (backpressure, never drop) and returns the context error when the turn
// is cancelled; processors must stop on a non-nil return.
type Emit = func(chunk.Chunk) error

// Options configures a processor.
type Options struct {
	// Servers is the read-only MCP registry for the turn's tools.
	Servers []mcp.Server

	// MaxTokens caps generation length. Zero uses the vendor default.
	MaxTokens int

	// Retry controls transient-failure backoff. Zero value uses
	// DefaultRetryConfig.
	Retry RetryConfig

	Logger *slog.Logger
}

func (o *Options) normalize() {
	if o.Retry.MaxRetries == 0 && o.Retry.InitialInterval == 0 {
		o.Retry = DefaultRetryConfig()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// request assembles the converter input from the turn state.
func request(turn *thread.Turn) convert.Request {
	return convert.Request{
		Messages: turn.Thread.Messages,
		System:   turn.System,
		Files:    turn.Files,
	}
}

// serverPrompts concatenates MCP-injected prompt fragments onto the
// system prompt.
func serverPrompts(system string, servers []mcp.Server) string {
	for _, s := range servers {
		if s.Prompt == "" {
			continue
		}
		if system != "" {
			system += "\n\n"
		}
		system += s.Prompt
	}
	return system
}
