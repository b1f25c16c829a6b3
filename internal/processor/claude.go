package processor

import (
	"context"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/koopa0/assistant/internal/chunk"
	"github.com/koopa0/assistant/internal/convert"
	"github.com/koopa0/assistant/internal/model"
	"github.com/koopa0/assistant/internal/thread"
)

// defaultClaudeMaxTokens applies when no limit is configured; the
// Messages API requires an explicit max_tokens.
const defaultClaudeMaxTokens = 4096

// Claude streams through the Anthropic Messages API. Output arrives as
// typed content blocks (text, thinking, tool_use) delimited by start and
// stop events, so dispatch tracks which block kind is currently open.
type Claude struct {
	client anthropic.Client
	opts   Options
}

// NewClaude creates the Claude processor.
func NewClaude(client anthropic.Client, opts Options) *Claude {
	opts.normalize()
	return &Claude{client: client, opts: opts}
}

// Name returns the vendor identifier this processor serves.
func (p *Claude) Name() string {
	return model.VendorClaude
}

// Run drives one generation and emits chunks in stream order.
func (p *Claude) Run(ctx context.Context, turn *thread.Turn, emit Emit) (chunk.Statistics, error) {
	start := time.Now()
	stats := chunk.Statistics{Model: turn.Thread.Model, Processor: p.Name()}

	req := request(turn)
	req.System = serverPrompts(req.System, p.opts.Servers)
	conv, err := convert.Claude(req)
	if err != nil {
		return stats, err
	}

	maxTokens := p.opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultClaudeMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(turn.Thread.Model),
		Messages:  conv.Messages,
		MaxTokens: int64(maxTokens),
	}
	if conv.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: conv.System}}
	}

	if err := emit(chunk.Lifecycle(chunk.StageGenerationStarted)); err != nil {
		return stats, err
	}

	err = withRetry(ctx, p.opts.Logger, p.opts.Retry, func(ctx context.Context) (bool, error) {
		run := &claudeRun{turn: turn, emit: emit, stats: &stats}
		stream := p.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			if err := run.handle(stream.Current()); err != nil {
				return run.emitted, err
			}
		}
		return run.emitted, stream.Err()
	})
	if err != nil {
		return stats, err
	}

	if err := emit(chunk.Lifecycle(chunk.StageGenerationFinished)); err != nil {
		return stats, err
	}
	stats.Duration = time.Since(start)
	return stats, nil
}

// claudeBlock is the state of the currently open content block.
type claudeBlock struct {
	kind   string
	toolID string
	name   string
	server string
}

// claudeRun holds the dispatch state for one streaming attempt.
type claudeRun struct {
	turn    *thread.Turn
	emit    Emit
	stats   *chunk.Statistics
	block   claudeBlock
	emitted bool
}

// handle dispatches one Messages stream event. Unknown event and block
// types are ignored for forward compatibility.
func (r *claudeRun) handle(ev anthropic.MessageStreamEventUnion) error {
	switch ev.Type {
	case "message_start":
		r.stats.InputTokens = int(ev.Message.Usage.InputTokens)
		return nil

	case "content_block_start":
		return r.blockStart(ev)

	case "content_block_delta":
		return r.blockDelta(ev)

	case "content_block_stop":
		return r.blockStop()

	case "message_delta":
		if ev.Delta.StopReason != "" {
			r.stats.StopReason = string(ev.Delta.StopReason)
		}
		if ev.Usage.OutputTokens > 0 {
			r.stats.OutputTokens = int(ev.Usage.OutputTokens)
		}
		return nil
	}
	return nil
}

func (r *claudeRun) blockStart(ev anthropic.MessageStreamEventUnion) error {
	cb := ev.ContentBlock
	r.block = claudeBlock{kind: cb.Type}

	switch cb.Type {
	case "tool_use", "server_tool_use", "mcp_tool_use":
		r.block.toolID = cb.ID
		r.block.name = cb.Name
		r.block.server = cb.ServerName
		session := r.turn.Tracker.OnToolCall(cb.ID)
		return r.send(chunk.ToolCall(cb.ID, cb.Name, "",
			serverLabel(cb.ServerName), chunk.StatusStarting, session))

	case "mcp_tool_result":
		toolID := cb.ToolUseID
		session, ok := r.turn.Tracker.OnToolResult(toolID)
		if !ok {
			session = r.turn.Tracker.OnToolCall(toolID)
			r.turn.Tracker.OnToolResult(toolID)
		}
		r.stats.ToolUses++
		var text string
		for _, part := range cb.Content {
			if part.Type == "text" {
				text += part.Text
			}
		}
		return r.send(chunk.ToolResult(toolID, text, nil, session))
	}
	return nil
}

func (r *claudeRun) blockDelta(ev anthropic.MessageStreamEventUnion) error {
	switch ev.Delta.Type {
	case "text_delta":
		r.turn.AppendAnswer(ev.Delta.Text)
		return r.send(chunk.Text(ev.Delta.Text))

	case "thinking_delta":
		return r.send(chunk.Thinking(ev.Delta.Thinking, r.turn.Tracker.Open()))

	case "input_json_delta":
		if r.block.toolID == "" {
			return nil
		}
		session := r.turn.Tracker.OnToolCall(r.block.toolID)
		return r.send(chunk.ToolCall(r.block.toolID, r.block.name, ev.Delta.PartialJSON,
			serverLabel(r.block.server), chunk.StatusArgumentsStreaming, session))
	}
	return nil
}

func (r *claudeRun) blockStop() error {
	defer func() { r.block = claudeBlock{} }()

	switch r.block.kind {
	case "thinking":
		return r.send(chunk.ThinkingResult("", r.turn.Tracker.Open()))

	case "tool_use", "server_tool_use", "mcp_tool_use":
		session := r.turn.Tracker.OnToolCall(r.block.toolID)
		return r.send(chunk.ToolCall(r.block.toolID, r.block.name, "",
			serverLabel(r.block.server), chunk.StatusArgumentsComplete, session))
	}
	return nil
}

func (r *claudeRun) send(c chunk.Chunk) error {
	r.emitted = true
	return r.emit(c)
}
