// Package thread owns the conversation aggregate: the Thread with its
// append-only Message and ThinkingItem histories, the per-turn tool
// session tracker, and the service that gates, runs, and persists turns.
//
// Thread state is exclusively owned by the turn currently processing it;
// the service guarantees at most one outstanding turn per thread.
package thread

import (
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Status values for a Thread.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusErrored   = "errored"
)

// BlockType discriminates message content blocks.
type BlockType string

const (
	BlockText  BlockType = "text"
	BlockFile  BlockType = "file"
	BlockImage BlockType = "image"
)

// Block is one content unit inside a Message.
type Block struct {
	Type BlockType `json:"type"`

	// BlockText
	Text string `json:"text,omitempty"`

	// BlockFile / BlockImage
	Name      string `json:"name,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"` // base64 payload
	URL       string `json:"url,omitempty"`  // remote image reference
}

// TextBlock builds a plain text content block.
func TextBlock(text string) Block {
	return Block{Type: BlockText, Text: text}
}

// Message is one entry in the thread history. Immutable once persisted;
// appended, never edited.
type Message struct {
	Role      string    `json:"role"`
	Blocks    []Block   `json:"blocks"`
	CreatedAt time.Time `json:"created_at"`
}

// UserMessage builds a user message with a single text block.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Blocks: []Block{TextBlock(text)}, CreatedAt: time.Now().UTC()}
}

// AssistantMessage builds an assistant message with a single text block.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Blocks: []Block{TextBlock(text)}, CreatedAt: time.Now().UTC()}
}

// ItemType discriminates ThinkingItem entries.
type ItemType string

const (
	ItemThinking       ItemType = "thinking"
	ItemThinkingResult ItemType = "thinking_result"
	ItemToolCall       ItemType = "tool_call"
	ItemToolResult     ItemType = "tool_result"
)

// ThinkingItem records one unit of intermediate assistant activity within
// a turn: reasoning text or a tool invocation and its outcome. Append-only
// during a turn. The running count of ItemToolCall entries determines the
// next tool session index; see Tracker.
type ThinkingItem struct {
	Type         ItemType  `json:"type"`
	Payload      string    `json:"payload"`
	SessionIndex *int      `json:"session_index,omitempty"`
	Server       string    `json:"server,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Thread is the conversation aggregate. Mutated only during an active
// turn and persisted at turn boundaries.
type Thread struct {
	ID            uuid.UUID      `json:"id"`
	UserID        string         `json:"user_id"`
	Model         string         `json:"model"`
	Status        string         `json:"status"`
	Messages      []Message      `json:"messages"`
	ThinkingItems []ThinkingItem `json:"thinking_items"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// AppendMessage appends to the message history.
func (t *Thread) AppendMessage(m Message) {
	t.Messages = append(t.Messages, m)
}

// AppendThinking appends to the thinking history.
func (t *Thread) AppendThinking(item ThinkingItem) {
	t.ThinkingItems = append(t.ThinkingItems, item)
}
