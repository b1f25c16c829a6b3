package processor

import (
	"context"
	"time"

	"github.com/openai/openai-go"

	"github.com/koopa0/assistant/internal/chunk"
	"github.com/koopa0/assistant/internal/convert"
	"github.com/koopa0/assistant/internal/model"
	"github.com/koopa0/assistant/internal/thread"
)

// OpenAIChat streams completions through the Chat Completions API. The
// plain-text path: no tool layer, no reasoning stream. Models that need
// MCP tools are served by OpenAIResponses instead.
type OpenAIChat struct {
	client openai.Client
	opts   Options
}

// NewOpenAIChat creates the Chat Completions processor.
func NewOpenAIChat(client openai.Client, opts Options) *OpenAIChat {
	opts.normalize()
	return &OpenAIChat{client: client, opts: opts}
}

// Name returns the vendor identifier this processor serves.
func (p *OpenAIChat) Name() string {
	return model.VendorOpenAIChat
}

// Run drives one generation and emits chunks in stream order.
func (p *OpenAIChat) Run(ctx context.Context, turn *thread.Turn, emit Emit) (chunk.Statistics, error) {
	start := time.Now()
	stats := chunk.Statistics{Model: turn.Thread.Model, Processor: p.Name()}

	messages, err := convert.OpenAIChat(request(turn))
	if err != nil {
		return stats, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(turn.Thread.Model),
		Messages: messages,
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	if p.opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(p.opts.MaxTokens))
	}

	if err := emit(chunk.Lifecycle(chunk.StageGenerationStarted)); err != nil {
		return stats, err
	}

	err = withRetry(ctx, p.opts.Logger, p.opts.Retry, func(ctx context.Context) (bool, error) {
		run := &chatRun{turn: turn, emit: emit, stats: &stats}
		stream := p.client.Chat.Completions.NewStreaming(ctx, params)
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

// chatRun is the per-attempt state of one Chat Completions stream.
type chatRun struct {
	turn  *thread.Turn
	emit  Emit
	stats *chunk.Statistics

	emitted bool
}

func (r *chatRun) handle(ev openai.ChatCompletionChunk) error {
	if len(ev.Choices) > 0 {
		choice := ev.Choices[0]
		if choice.Delta.Content != "" {
			r.emitted = true
			r.turn.AppendAnswer(choice.Delta.Content)
			if err := r.emit(chunk.Text(choice.Delta.Content)); err != nil {
				return err
			}
		}
		if choice.FinishReason != "" {
			r.stats.StopReason = choice.FinishReason
		}
	}
	// Usage arrives on the trailing chunk when IncludeUsage is set.
	if ev.Usage.TotalTokens > 0 {
		r.stats.InputTokens = int(ev.Usage.PromptTokens)
		r.stats.OutputTokens = int(ev.Usage.CompletionTokens)
	}
	return nil
}
