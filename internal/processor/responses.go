package processor

import (
	"context"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"

	"github.com/koopa0/assistant/internal/chunk"
	"github.com/koopa0/assistant/internal/convert"
	"github.com/koopa0/assistant/internal/mcp"
	"github.com/koopa0/assistant/internal/model"
	"github.com/koopa0/assistant/internal/thread"
)

// OpenAIResponses streams through the Responses API. This is the richest
// vendor surface: reasoning summaries, server-side MCP tool calls, and
// URL citations all arrive as typed stream events and map onto thinking,
// tool_call/tool_result, and annotation chunks.
type OpenAIResponses struct {
	client openai.Client
	opts   Options
}

// NewOpenAIResponses creates the Responses processor.
func NewOpenAIResponses(client openai.Client, opts Options) *OpenAIResponses {
	opts.normalize()
	return &OpenAIResponses{client: client, opts: opts}
}

// Name returns the vendor identifier this processor serves.
func (p *OpenAIResponses) Name() string {
	return model.VendorOpenAIResponses
}

// Run drives one generation and emits chunks in stream order.
func (p *OpenAIResponses) Run(ctx context.Context, turn *thread.Turn, emit Emit) (chunk.Statistics, error) {
	start := time.Now()
	stats := chunk.Statistics{Model: turn.Thread.Model, Processor: p.Name()}

	req := request(turn)
	req.System = serverPrompts(req.System, p.opts.Servers)
	conv, err := convert.OpenAIResponses(req)
	if err != nil {
		return stats, err
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(turn.Thread.Model),
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: conv.Input},
		Tools: remoteMCPTools(p.opts.Servers),
	}
	if conv.Instructions != "" {
		params.Instructions = openai.String(conv.Instructions)
	}
	if p.opts.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(p.opts.MaxTokens))
	}

	if err := emit(chunk.Lifecycle(chunk.StageGenerationStarted)); err != nil {
		return stats, err
	}

	err = withRetry(ctx, p.opts.Logger, p.opts.Retry, func(ctx context.Context) (bool, error) {
		run := &responsesRun{
			turn:    turn,
			emit:    emit,
			stats:   &stats,
			servers: mcp.Names(p.opts.Servers),
			tools:   make(map[string]responsesTool),
		}
		stream := p.client.Responses.NewStreaming(ctx, params)
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

// responsesTool remembers the name and server of an in-flight MCP call
// so argument deltas can be tagged after the opening event.
type responsesTool struct {
	name   string
	server string
}

// responsesRun holds the dispatch state for one streaming attempt.
type responsesRun struct {
	turn    *thread.Turn
	emit    Emit
	stats   *chunk.Statistics
	servers []string
	tools   map[string]responsesTool

	// listingServer is the server label of the mcp_list_tools item
	// currently streaming, used when tool listing fails with an auth
	// error that names no server.
	listingServer string
	emitted       bool
}

// handle dispatches one stream event. The event type taxonomy follows
// the Responses API; unknown types are ignored for forward compatibility.
func (r *responsesRun) handle(ev responses.ResponseStreamEventUnion) error {
	switch ev.Type {
	case "response.output_text.delta":
		delta := ev.Delta.OfString
		if delta == "" {
			return nil
		}
		r.turn.AppendAnswer(delta)
		return r.send(chunk.Text(delta))

	case "response.reasoning_summary_text.delta":
		if ev.Delta.OfString == "" {
			return nil
		}
		return r.send(chunk.Thinking(ev.Delta.OfString, r.turn.Tracker.Open()))

	case "response.reasoning_summary_text.done":
		return r.send(chunk.ThinkingResult(ev.Text, r.turn.Tracker.Open()))

	case "response.output_item.added":
		return r.itemAdded(ev.Item)

	case "response.mcp_call_arguments.delta":
		tool := r.tools[ev.ItemID]
		session := r.turn.Tracker.OnToolCall(ev.ItemID)
		return r.send(chunk.ToolCall(ev.ItemID, tool.name, ev.Delta.OfString,
			serverLabel(tool.server), chunk.StatusArgumentsStreaming, session))

	case "response.mcp_call_arguments.done":
		tool := r.tools[ev.ItemID]
		session := r.turn.Tracker.OnToolCall(ev.ItemID)
		return r.send(chunk.ToolCall(ev.ItemID, tool.name, ev.Arguments,
			serverLabel(tool.server), chunk.StatusArgumentsComplete, session))

	case "response.output_item.done":
		return r.itemDone(ev.Item)

	case "response.mcp_list_tools.failed":
		return r.listToolsFailed(ev.RawJSON())

	case "response.completed":
		r.stats.InputTokens = int(ev.Response.Usage.InputTokens)
		r.stats.OutputTokens = int(ev.Response.Usage.OutputTokens)
		r.stats.StopReason = "stop"
		return r.annotations(ev.Response)

	case "response.incomplete":
		r.stats.StopReason = string(ev.Response.IncompleteDetails.Reason)
		return nil
	}
	return nil
}

// itemAdded opens tool sessions for mcp_call items and notes which
// server a tool listing belongs to.
func (r *responsesRun) itemAdded(item responses.ResponseOutputItemUnion) error {
	switch item.Type {
	case "mcp_call":
		r.tools[item.ID] = responsesTool{name: item.Name, server: item.ServerLabel}
		session := r.turn.Tracker.OnToolCall(item.ID)
		return r.send(chunk.ToolCall(item.ID, item.Name, "",
			serverLabel(item.ServerLabel), chunk.StatusStarting, session))
	case "mcp_list_tools":
		r.listingServer = item.ServerLabel
	}
	return nil
}

// itemDone closes the tool session for a finished mcp_call and emits its
// result.
func (r *responsesRun) itemDone(item responses.ResponseOutputItemUnion) error {
	if item.Type != "mcp_call" {
		return nil
	}
	tool := r.tools[item.ID]
	session := r.turn.Tracker.OnToolCall(item.ID)

	status := chunk.StatusCompleted
	payload := item.Output
	if item.Error != "" {
		status = chunk.StatusError
		payload = item.Error
	}
	if err := r.send(chunk.ToolCall(item.ID, tool.name, item.Arguments,
		serverLabel(tool.server), status, session)); err != nil {
		return err
	}
	if err := r.send(chunk.ToolResult(item.ID, payload, serverLabel(tool.server), session)); err != nil {
		return err
	}
	r.turn.Tracker.OnToolResult(item.ID)
	r.stats.ToolUses++
	return nil
}

// annotations emits one citation chunk per distinct URL the finished
// response cites.
func (r *responsesRun) annotations(resp responses.Response) error {
	seen := make(map[string]struct{})
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type != "output_text" {
				continue
			}
			for _, ann := range part.Annotations {
				if ann.Type != "url_citation" || ann.URL == "" {
					continue
				}
				if _, ok := seen[ann.URL]; ok {
					continue
				}
				seen[ann.URL] = struct{}{}
				if err := r.send(chunk.Annotation(ann.Title, ann.URL)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// listToolsFailed classifies a failed tool listing. Auth failures become
// an auth_required chunk targeted at the offending server; anything else
// is a vendor error.
func (r *responsesRun) listToolsFailed(text string) error {
	isAuth, server := DetectAuthError(text, r.servers)
	if !isAuth {
		return r.send(chunk.Error("listing MCP tools failed"))
	}
	if server == "" {
		server = r.listingServer
	}
	if err := r.send(chunk.AuthRequired("MCP server requires re-authentication", serverLabel(server))); err != nil {
		return err
	}
	return &thread.AuthRequiredError{Server: server}
}

func (r *responsesRun) send(c chunk.Chunk) error {
	r.emitted = true
	return r.emit(c)
}

// remoteMCPTools declares the configured HTTP servers as remote MCP
// tools. The Responses API invokes them server side, so only Endpoint
// servers qualify; stdio servers cannot be reached from the vendor.
func remoteMCPTools(servers []mcp.Server) []responses.ToolUnionParam {
	var tools []responses.ToolUnionParam
	for _, s := range servers {
		if s.Endpoint == "" {
			continue
		}
		t := responses.ToolMcpParam{
			ServerLabel: s.Name,
			ServerURL:   s.Endpoint,
			RequireApproval: responses.ToolMcpRequireApprovalUnionParam{
				OfMcpToolApprovalSetting: openai.String("never"),
			},
		}
		if len(s.Headers) > 0 {
			t.Headers = s.Headers
		}
		tools = append(tools, responses.ToolUnionParam{OfMcp: &t})
	}
	return tools
}

// serverLabel converts a server name to the optional metadata form.
func serverLabel(name string) *string {
	if name == "" {
		return nil
	}
	return &name
}
