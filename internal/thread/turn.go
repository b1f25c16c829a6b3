package thread

import (
	"strings"
	"time"
)

// Turn is the in-memory context of one in-flight generation. It owns the
// thread exclusively for its duration and carries the per-turn mutable
// state the streaming pipeline needs: the tool session tracker, the
// accumulated answer, and the turn's attachments.
type Turn struct {
	Thread  *Thread
	Tracker *Tracker

	// System is the effective system prompt for this turn, including any
	// MCP-injected fragments.
	System string

	// Files are the attachments uploaded with the user message.
	Files []Block

	answer strings.Builder
}

// NewTurn starts a turn on the thread. The thinking log restarts: items
// belong to the current or most recent turn only.
func NewTurn(t *Thread, system string, files []Block) *Turn {
	t.ThinkingItems = nil
	return &Turn{
		Thread:  t,
		Tracker: NewTracker(t.ThinkingItems),
		System:  system,
		Files:   files,
	}
}

// Record appends a thinking item to the thread's log.
func (t *Turn) Record(typ ItemType, payload string, sessionIndex *int, server string) {
	t.Thread.AppendThinking(ThinkingItem{
		Type:         typ,
		Payload:      payload,
		SessionIndex: sessionIndex,
		Server:       server,
		CreatedAt:    time.Now().UTC(),
	})
}

// AppendAnswer accumulates final answer text as it streams.
func (t *Turn) AppendAnswer(text string) {
	t.answer.WriteString(text)
}

// Answer returns the accumulated answer text.
func (t *Turn) Answer() string {
	return t.answer.String()
}

// Finish closes any open tool session and appends the accumulated answer
// as an assistant message. Safe to call after partial failures; an empty
// answer appends nothing.
func (t *Turn) Finish() {
	t.Tracker.Close()
	if t.answer.Len() > 0 {
		t.Thread.AppendMessage(AssistantMessage(t.answer.String()))
		t.answer.Reset()
	}
}
