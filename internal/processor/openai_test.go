package processor

import (
	"testing"

	"github.com/openai/openai-go"

	"github.com/koopa0/assistant/internal/chunk"
)

func newChatRun(t *testing.T) (*chatRun, *collector) {
	t.Helper()
	turn := testTurn()
	col := &collector{}
	stats := &chunk.Statistics{}
	return &chatRun{turn: turn, emit: col.emit, stats: stats}, col
}

func TestChatRun_TextDeltas(t *testing.T) {
	r, col := newChatRun(t)

	for _, text := range []string{"Hel", "lo"} {
		ev := openai.ChatCompletionChunk{
			Choices: []openai.ChatCompletionChunkChoice{
				{Delta: openai.ChatCompletionChunkChoiceDelta{Content: text}},
			},
		}
		if err := r.handle(ev); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}

	texts := col.ofType(chunk.TypeText)
	if len(texts) != 2 {
		t.Fatalf("text chunks = %d, want 2", len(texts))
	}
	if got := r.turn.Answer(); got != "Hello" {
		t.Errorf("accumulated answer = %q, want %q", got, "Hello")
	}
	if !r.emitted {
		t.Error("emitted flag not set after text delta")
	}
}

func TestChatRun_FinishReasonAndUsage(t *testing.T) {
	r, col := newChatRun(t)

	if err := r.handle(openai.ChatCompletionChunk{
		Choices: []openai.ChatCompletionChunkChoice{{FinishReason: "stop"}},
	}); err != nil {
		t.Fatalf("handle finish: %v", err)
	}
	if err := r.handle(openai.ChatCompletionChunk{
		Usage: openai.CompletionUsage{
			PromptTokens:     120,
			CompletionTokens: 45,
			TotalTokens:      165,
		},
	}); err != nil {
		t.Fatalf("handle usage: %v", err)
	}

	if r.stats.StopReason != "stop" {
		t.Errorf("stop reason = %q, want %q", r.stats.StopReason, "stop")
	}
	if r.stats.InputTokens != 120 || r.stats.OutputTokens != 45 {
		t.Errorf("tokens = %d/%d, want 120/45", r.stats.InputTokens, r.stats.OutputTokens)
	}
	if len(col.chunks) != 0 {
		t.Errorf("bookkeeping events emitted %d chunks, want 0", len(col.chunks))
	}
	if r.emitted {
		t.Error("emitted flag set without any delivered content")
	}
}

func TestChatRun_EmptyChunkIgnored(t *testing.T) {
	r, col := newChatRun(t)

	if err := r.handle(openai.ChatCompletionChunk{}); err != nil {
		t.Fatalf("handle empty: %v", err)
	}
	if len(col.chunks) != 0 {
		t.Errorf("empty chunk emitted %d chunks, want 0", len(col.chunks))
	}
}
