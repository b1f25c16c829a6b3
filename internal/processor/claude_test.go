package processor

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/koopa0/assistant/internal/chunk"
)

func newClaudeRun(c *collector) *claudeRun {
	return &claudeRun{turn: testTurn(), emit: c.emit, stats: &chunk.Statistics{}}
}

func TestClaudeTextBlocks(t *testing.T) {
	c := &collector{}
	r := newClaudeRun(c)

	events := []anthropic.MessageStreamEventUnion{
		{Type: "content_block_start", ContentBlock: anthropic.ContentBlockStartEventContentBlockUnion{Type: "text"}},
		{Type: "content_block_delta", Delta: anthropic.MessageStreamEventUnionDelta{Type: "text_delta", Text: "Hel"}},
		{Type: "content_block_delta", Delta: anthropic.MessageStreamEventUnionDelta{Type: "text_delta", Text: "lo"}},
		{Type: "content_block_stop"},
	}
	for _, ev := range events {
		if err := r.handle(ev); err != nil {
			t.Fatalf("handle(%s): %v", ev.Type, err)
		}
	}

	if got := len(c.ofType(chunk.TypeText)); got != 2 {
		t.Fatalf("text chunks = %d, want 2", got)
	}
	if r.turn.Answer() != "Hello" {
		t.Errorf("answer = %q, want %q", r.turn.Answer(), "Hello")
	}
}

func TestClaudeThinkingBlock(t *testing.T) {
	c := &collector{}
	r := newClaudeRun(c)

	events := []anthropic.MessageStreamEventUnion{
		{Type: "content_block_start", ContentBlock: anthropic.ContentBlockStartEventContentBlockUnion{Type: "thinking"}},
		{Type: "content_block_delta", Delta: anthropic.MessageStreamEventUnionDelta{Type: "thinking_delta", Thinking: "considering"}},
		{Type: "content_block_stop"},
	}
	for _, ev := range events {
		if err := r.handle(ev); err != nil {
			t.Fatalf("handle(%s): %v", ev.Type, err)
		}
	}

	if got := len(c.ofType(chunk.TypeThinking)); got != 1 {
		t.Errorf("thinking chunks = %d, want 1", got)
	}
	if got := len(c.ofType(chunk.TypeThinkingResult)); got != 1 {
		t.Errorf("thinking_result chunks = %d, want 1", got)
	}
}

func TestClaudeToolUseLifecycle(t *testing.T) {
	c := &collector{}
	r := newClaudeRun(c)

	events := []anthropic.MessageStreamEventUnion{
		{Type: "content_block_start", ContentBlock: anthropic.ContentBlockStartEventContentBlockUnion{
			Type: "mcp_tool_use", ID: "t1", Name: "search", ServerName: "github"}},
		{Type: "content_block_delta", Delta: anthropic.MessageStreamEventUnionDelta{
			Type: "input_json_delta", PartialJSON: `{"q":"go"}`}},
		{Type: "content_block_stop"},
		{Type: "content_block_start", ContentBlock: anthropic.ContentBlockStartEventContentBlockUnion{
			Type: "mcp_tool_result", ToolUseID: "t1"}},
		{Type: "content_block_stop"},
	}
	for _, ev := range events {
		if err := r.handle(ev); err != nil {
			t.Fatalf("handle(%s): %v", ev.Type, err)
		}
	}

	calls := c.ofType(chunk.TypeToolCall)
	if len(calls) != 3 {
		t.Fatalf("tool_call chunks = %d, want 3", len(calls))
	}
	statuses := []string{chunk.StatusStarting, chunk.StatusArgumentsStreaming, chunk.StatusArgumentsComplete}
	for i, want := range statuses {
		if got := calls[i].Metadata[chunk.KeyStatus]; got != want {
			t.Errorf("call chunk %d status = %q, want %q", i, got, want)
		}
		if got := calls[i].Metadata[chunk.KeySession]; got != "0" {
			t.Errorf("call chunk %d session = %q, want 0", i, got)
		}
		if got := calls[i].Metadata[chunk.KeyServer]; got != "github" {
			t.Errorf("call chunk %d server = %q, want github", i, got)
		}
	}

	results := c.ofType(chunk.TypeToolResult)
	if len(results) != 1 {
		t.Fatalf("tool_result chunks = %d, want 1", len(results))
	}
	if got := results[0].Metadata[chunk.KeySession]; got != "0" {
		t.Errorf("result session = %q, want 0", got)
	}
	if r.turn.Tracker.Open() != nil {
		t.Error("session should be closed after the result")
	}
	if r.stats.ToolUses != 1 {
		t.Errorf("tool uses = %d, want 1", r.stats.ToolUses)
	}
}

func TestClaudeUsageAndStopReason(t *testing.T) {
	c := &collector{}
	r := newClaudeRun(c)

	events := []anthropic.MessageStreamEventUnion{
		{Type: "message_start", Message: anthropic.Message{
			Usage: anthropic.Usage{InputTokens: 200}}},
		{Type: "message_delta",
			Delta: anthropic.MessageStreamEventUnionDelta{StopReason: "end_turn"},
			Usage: anthropic.MessageDeltaUsage{OutputTokens: 80}},
	}
	for _, ev := range events {
		if err := r.handle(ev); err != nil {
			t.Fatalf("handle(%s): %v", ev.Type, err)
		}
	}

	if r.stats.InputTokens != 200 || r.stats.OutputTokens != 80 {
		t.Errorf("usage = %d/%d, want 200/80", r.stats.InputTokens, r.stats.OutputTokens)
	}
	if r.stats.StopReason != "end_turn" {
		t.Errorf("stop reason = %q, want end_turn", r.stats.StopReason)
	}
}

func TestClaudeUnknownBlockIgnored(t *testing.T) {
	c := &collector{}
	r := newClaudeRun(c)

	events := []anthropic.MessageStreamEventUnion{
		{Type: "content_block_start", ContentBlock: anthropic.ContentBlockStartEventContentBlockUnion{Type: "some_future_block"}},
		{Type: "content_block_stop"},
	}
	for _, ev := range events {
		if err := r.handle(ev); err != nil {
			t.Fatalf("unknown block must be ignored: %v", err)
		}
	}
	if len(c.chunks) != 0 {
		t.Errorf("chunks = %d, want 0", len(c.chunks))
	}
}
