// Package chunk defines the streaming protocol unit emitted during an
// assistant turn.
//
// A Chunk is the transient wire representation of whatever a vendor stream
// produced: answer text, reasoning deltas, tool invocations and their
// results, lifecycle markers, and terminal completion/error signals. Chunks
// are never persisted; consumers receive them in production order and must
// tolerate chunk types they do not recognize.
package chunk

import (
	"encoding/json"
	"time"
)

// Type discriminates the Chunk union.
type Type string

// Chunk types. Consumers must treat unknown values as a forward-compatible
// extension of this set, not an error.
const (
	TypeText           Type = "text"
	TypeThinking       Type = "thinking"
	TypeThinkingResult Type = "thinking_result"
	TypeToolCall       Type = "tool_call"
	TypeToolResult     Type = "tool_result"
	TypeLifecycle      Type = "lifecycle"
	TypeCompletion     Type = "completion"
	TypeError          Type = "error"
	TypeAuthRequired   Type = "auth_required"
	TypeAnnotation     Type = "annotation"
)

// Metadata keys used across chunk variants.
const (
	KeyToolID       = "tool_id"
	KeyToolName     = "tool_name"
	KeyServer       = "server"
	KeyStatus       = "status"
	KeySession      = "session"
	KeyStage        = "stage"
	KeyTitle        = "title"
	KeyURL          = "url"
	KeyModel        = "model"
	KeyProcessor    = "processor"
	KeyInputTokens  = "input_tokens"
	KeyOutputTokens = "output_tokens"
	KeyToolUses     = "tool_uses"
	KeyDurationMS   = "duration_ms"
	KeyStopReason   = "stop_reason"
)

// Tool call status progression carried in the "status" metadata key.
const (
	StatusStarting           = "starting"
	StatusArgumentsStreaming = "arguments_streaming"
	StatusArgumentsComplete  = "arguments_complete"
	StatusCompleted          = "completed"
	StatusError              = "error"
	StatusAuthRequired       = "auth_required"
)

// Lifecycle stages carried in the "stage" metadata key.
const (
	StageTurnStarted        = "turn_started"
	StageGenerationStarted  = "generation_started"
	StageGenerationFinished = "generation_finished"
	StageTurnFinished       = "turn_finished"
)

// Chunk is one unit of the streaming output protocol.
//
// Metadata never contains keys whose value was absent at construction;
// serialized chunks therefore have no null metadata values, only missing
// keys. See New and the typed constructors in factory.go.
type Chunk struct {
	Type      Type              `json:"type"`
	Payload   string            `json:"payload,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// MarshalJSON ensures an empty metadata map is omitted rather than
// serialized as {}.
func (c Chunk) MarshalJSON() ([]byte, error) {
	type alias Chunk
	a := alias(c)
	if len(a.Metadata) == 0 {
		a.Metadata = nil
	}
	return json.Marshal(a)
}

// Statistics describes a finished generation, attached to completion chunks.
type Statistics struct {
	Model        string
	Processor    string
	InputTokens  int
	OutputTokens int
	ToolUses     int
	Duration     time.Duration
	StopReason   string
}
