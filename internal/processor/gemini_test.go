package processor

import (
	"testing"

	"google.golang.org/genai"

	"github.com/koopa0/assistant/internal/chunk"
	"github.com/koopa0/assistant/internal/mcp"
)

func newGeminiRun(c *collector) *geminiRun {
	return &geminiRun{
		processor: &Gemini{opts: Options{Logger: discard()}},
		turn:      testTurn(),
		emit:      c.emit,
		stats:     &chunk.Statistics{},
		servers:   []string{"github"},
		tools:     make(map[string]*mcp.Client),
	}
}

func TestGeminiTextAndThoughtParts(t *testing.T) {
	c := &collector{}
	r := newGeminiRun(c)

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{
				{Text: "weighing options", Thought: true},
				{Text: "Hello"},
			}},
		}},
	}
	var calls []*genai.FunctionCall
	if err := r.handle(resp, &calls); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if got := len(c.ofType(chunk.TypeThinking)); got != 1 {
		t.Errorf("thinking chunks = %d, want 1", got)
	}
	if got := len(c.ofType(chunk.TypeText)); got != 1 {
		t.Errorf("text chunks = %d, want 1", got)
	}
	if r.turn.Answer() != "Hello" {
		t.Errorf("answer = %q, want %q (thoughts excluded)", r.turn.Answer(), "Hello")
	}
	if len(calls) != 0 {
		t.Errorf("calls = %d, want 0", len(calls))
	}
}

func TestGeminiCollectsFunctionCalls(t *testing.T) {
	c := &collector{}
	r := newGeminiRun(c)

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{
				{FunctionCall: &genai.FunctionCall{Name: "search", Args: map[string]any{"q": "go"}}},
			}},
		}},
	}
	var calls []*genai.FunctionCall
	if err := r.handle(resp, &calls); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(calls) != 1 || calls[0].Name != "search" {
		t.Fatalf("calls = %v, want one search call", calls)
	}
	// Function calls are not emitted until execution starts.
	if len(c.chunks) != 0 {
		t.Errorf("chunks = %d, want 0", len(c.chunks))
	}
}

func TestGeminiUsage(t *testing.T) {
	c := &collector{}
	r := newGeminiRun(c)

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonStop}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     100,
			CandidatesTokenCount: 40,
		},
	}
	var calls []*genai.FunctionCall
	if err := r.handle(resp, &calls); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if r.stats.InputTokens != 100 || r.stats.OutputTokens != 40 {
		t.Errorf("usage = %d/%d, want 100/40", r.stats.InputTokens, r.stats.OutputTokens)
	}
	if r.stats.StopReason != string(genai.FinishReasonStop) {
		t.Errorf("stop reason = %q", r.stats.StopReason)
	}
}

func TestGeminiExecuteUnknownTool(t *testing.T) {
	c := &collector{}
	r := newGeminiRun(c)

	calls := []*genai.FunctionCall{{Name: "missing", Args: map[string]any{}}}
	contents, err := r.executeCalls(t.Context(), nil, calls, 0)
	if err != nil {
		t.Fatalf("executeCalls: %v", err)
	}

	toolCalls := c.ofType(chunk.TypeToolCall)
	if len(toolCalls) != 3 {
		t.Fatalf("tool_call chunks = %d, want 3", len(toolCalls))
	}
	last := toolCalls[2]
	if last.Metadata[chunk.KeyStatus] != chunk.StatusError {
		t.Errorf("final status = %q, want error", last.Metadata[chunk.KeyStatus])
	}

	results := c.ofType(chunk.TypeToolResult)
	if len(results) != 1 {
		t.Fatalf("tool_result chunks = %d, want 1", len(results))
	}
	if r.turn.Tracker.Open() != nil {
		t.Error("session should be closed after the result")
	}

	// The failed call is still fed back so the model can recover.
	if len(contents) != 2 {
		t.Fatalf("contents appended = %d, want 2 (call + response)", len(contents))
	}
	if contents[0].Role != genai.RoleModel || contents[1].Role != genai.RoleUser {
		t.Errorf("roles = %s/%s, want model/user", contents[0].Role, contents[1].Role)
	}
}

func TestGeminiSessionIndicesAcrossCalls(t *testing.T) {
	c := &collector{}
	r := newGeminiRun(c)

	calls := []*genai.FunctionCall{
		{Name: "first", Args: map[string]any{}},
		{Name: "second", Args: map[string]any{}},
	}
	if _, err := r.executeCalls(t.Context(), nil, calls, 0); err != nil {
		t.Fatalf("executeCalls: %v", err)
	}

	results := c.ofType(chunk.TypeToolResult)
	if len(results) != 2 {
		t.Fatalf("tool_result chunks = %d, want 2", len(results))
	}
	if results[0].Metadata[chunk.KeySession] != "0" || results[1].Metadata[chunk.KeySession] != "1" {
		t.Errorf("sessions = %q/%q, want 0/1",
			results[0].Metadata[chunk.KeySession], results[1].Metadata[chunk.KeySession])
	}
}
