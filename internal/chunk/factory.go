package chunk

import (
	"strconv"
	"time"
)

// factory.go holds the stateless Chunk constructors.
//
// Every constructor funnels through New, which copies only metadata entries
// whose value is present. Callers pass optional fields as pointers; a nil
// pointer means the key must not appear in the built chunk at all.
// Downstream JSON serialization relies on absent keys, never null values.

// New builds a chunk of the given type. Entries in meta with a nil value
// are dropped; the resulting Metadata map is nil when nothing survives.
// Identical inputs produce structurally identical chunks except for the
// timestamp.
func New(t Type, payload string, meta map[string]*string) Chunk {
	var m map[string]string
	for k, v := range meta {
		if v == nil {
			continue
		}
		if m == nil {
			m = make(map[string]string, len(meta))
		}
		m[k] = *v
	}
	return Chunk{
		Type:      t,
		Payload:   payload,
		Metadata:  m,
		CreatedAt: time.Now().UTC(),
	}
}

// Text builds a plain answer-text chunk.
func Text(text string) Chunk {
	return New(TypeText, text, nil)
}

// Thinking builds a reasoning delta chunk. session is the open tool
// session index, or nil when no session is open.
func Thinking(text string, session *int) Chunk {
	return New(TypeThinking, text, map[string]*string{
		KeySession: intPtrString(session),
	})
}

// ThinkingResult builds a finished-reasoning chunk. session follows the
// same rule as Thinking.
func ThinkingResult(text string, session *int) Chunk {
	return New(TypeThinkingResult, text, map[string]*string{
		KeySession: intPtrString(session),
	})
}

// ToolCall builds a tool invocation chunk. payload carries the (possibly
// partial) argument JSON. server is nil for built-in tools; status is one
// of the Status constants.
func ToolCall(toolID, toolName, payload string, server *string, status string, session int) Chunk {
	s := strconv.Itoa(session)
	return New(TypeToolCall, payload, map[string]*string{
		KeyToolID:   &toolID,
		KeyToolName: &toolName,
		KeyServer:   server,
		KeyStatus:   &status,
		KeySession:  &s,
	})
}

// ToolResult builds a tool result chunk paired with the tool call
// identified by toolID.
func ToolResult(toolID, payload string, server *string, session int) Chunk {
	s := strconv.Itoa(session)
	return New(TypeToolResult, payload, map[string]*string{
		KeyToolID:  &toolID,
		KeyServer:  server,
		KeySession: &s,
	})
}

// Lifecycle builds a turn lifecycle marker for one of the Stage constants.
func Lifecycle(stage string) Chunk {
	return New(TypeLifecycle, "", map[string]*string{
		KeyStage: &stage,
	})
}

// Completion builds the terminal success chunk carrying generation
// statistics.
func Completion(stats Statistics) Chunk {
	in := strconv.Itoa(stats.InputTokens)
	out := strconv.Itoa(stats.OutputTokens)
	uses := strconv.Itoa(stats.ToolUses)
	dur := strconv.FormatInt(stats.Duration.Milliseconds(), 10)
	return New(TypeCompletion, "", map[string]*string{
		KeyModel:        strPtr(stats.Model),
		KeyProcessor:    strPtr(stats.Processor),
		KeyInputTokens:  &in,
		KeyOutputTokens: &out,
		KeyToolUses:     &uses,
		KeyDurationMS:   &dur,
		KeyStopReason:   strPtr(stats.StopReason),
	})
}

// Error builds the terminal failure chunk.
func Error(message string) Chunk {
	return New(TypeError, message, nil)
}

// AuthRequired builds a re-authentication signal. server identifies the
// tool server whose credentials expired; nil when no server was matched.
func AuthRequired(message string, server *string) Chunk {
	return New(TypeAuthRequired, message, map[string]*string{
		KeyServer: server,
		KeyStatus: strPtr(StatusAuthRequired),
	})
}

// Annotation builds a citation chunk.
func Annotation(title, url string) Chunk {
	return New(TypeAnnotation, "", map[string]*string{
		KeyTitle: &title,
		KeyURL:   &url,
	})
}

// strPtr returns nil for the empty string so optional text fields are
// omitted rather than emitted empty.
func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func intPtrString(n *int) *string {
	if n == nil {
		return nil
	}
	s := strconv.Itoa(*n)
	return &s
}
