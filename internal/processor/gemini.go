package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/koopa0/assistant/internal/chunk"
	"github.com/koopa0/assistant/internal/convert"
	"github.com/koopa0/assistant/internal/mcp"
	"github.com/koopa0/assistant/internal/model"
	"github.com/koopa0/assistant/internal/thread"
)

// maxToolRounds bounds the generate/execute loop so a model that keeps
// requesting tools cannot spin forever.
const maxToolRounds = 10

// Gemini streams through the GenerateContent API. Unlike the other
// vendors, Gemini does not execute MCP tools server side: the processor
// connects to the configured servers itself, advertises their tools as
// function declarations, executes requested calls, and feeds the results
// back for another round.
type Gemini struct {
	client *genai.Client
	opts   Options
}

// NewGemini creates the Gemini processor.
func NewGemini(client *genai.Client, opts Options) *Gemini {
	opts.normalize()
	return &Gemini{client: client, opts: opts}
}

// Name returns the vendor identifier this processor serves.
func (p *Gemini) Name() string {
	return model.VendorGemini
}

// Run drives one generation and emits chunks in stream order.
func (p *Gemini) Run(ctx context.Context, turn *thread.Turn, emit Emit) (chunk.Statistics, error) {
	start := time.Now()
	stats := chunk.Statistics{Model: turn.Thread.Model, Processor: p.Name()}

	req := request(turn)
	req.System = serverPrompts(req.System, p.opts.Servers)
	conv, err := convert.Gemini(req)
	if err != nil {
		return stats, err
	}

	run := &geminiRun{
		processor: p,
		turn:      turn,
		emit:      emit,
		stats:     &stats,
		servers:   mcp.Names(p.opts.Servers),
		tools:     make(map[string]*mcp.Client),
	}
	defer run.closeClients()

	config := &genai.GenerateContentConfig{
		SystemInstruction: conv.SystemInstruction,
	}
	if p.opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(p.opts.MaxTokens)
	}
	config.Tools, err = run.connectTools(ctx)
	if err != nil {
		return stats, err
	}
	run.genConfig = config

	if err := emit(chunk.Lifecycle(chunk.StageGenerationStarted)); err != nil {
		return stats, err
	}

	contents := conv.Contents
	for round := 0; round < maxToolRounds; round++ {
		calls, err := run.generate(ctx, contents)
		if err != nil {
			return stats, err
		}
		if len(calls) == 0 {
			break
		}
		contents, err = run.executeCalls(ctx, contents, calls, round)
		if err != nil {
			return stats, err
		}
	}

	if err := emit(chunk.Lifecycle(chunk.StageGenerationFinished)); err != nil {
		return stats, err
	}
	stats.Duration = time.Since(start)
	return stats, nil
}

// geminiRun holds the state of one tool-calling loop.
type geminiRun struct {
	processor *Gemini
	turn      *thread.Turn
	emit      Emit
	stats     *chunk.Statistics
	servers   []string

	// tools maps a tool name to the MCP client that serves it.
	tools     map[string]*mcp.Client
	clients   []*mcp.Client
	genConfig *genai.GenerateContentConfig
	emitted   bool
}

// connectTools opens a session per configured server and collects the
// advertised tools as function declarations. A connection failure that
// looks like an auth problem surfaces as auth_required; other failures
// skip the server so one bad server does not kill the turn.
func (r *geminiRun) connectTools(ctx context.Context) ([]*genai.Tool, error) {
	var decls []*genai.FunctionDeclaration
	for _, server := range r.processor.opts.Servers {
		client, err := mcp.Connect(ctx, server, r.processor.opts.Logger)
		if err != nil {
			if err := r.checkAuth(err, server.Name); err != nil {
				return nil, err
			}
			r.processor.opts.Logger.Warn("skipping MCP server",
				"server", server.Name, "error", err)
			continue
		}
		r.clients = append(r.clients, client)

		tools, err := client.Tools(ctx)
		if err != nil {
			if err := r.checkAuth(err, server.Name); err != nil {
				return nil, err
			}
			r.processor.opts.Logger.Warn("skipping MCP server",
				"server", server.Name, "error", err)
			continue
		}
		for _, tool := range tools {
			r.tools[tool.Name] = client
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 tool.Name,
				Description:          tool.Description,
				ParametersJsonSchema: tool.InputSchema,
			})
		}
	}
	if len(decls) == 0 {
		return nil, nil
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}, nil
}

// generate streams one model response, emitting text and thinking chunks
// and collecting any function calls for the caller to execute.
func (r *geminiRun) generate(ctx context.Context, contents []*genai.Content) ([]*genai.FunctionCall, error) {
	var calls []*genai.FunctionCall
	p := r.processor

	err := withRetry(ctx, p.opts.Logger, p.opts.Retry, func(ctx context.Context) (bool, error) {
		calls = calls[:0]
		stream := p.client.Models.GenerateContentStream(ctx, r.turn.Thread.Model, contents, r.genConfig)
		for resp, err := range stream {
			if err != nil {
				return r.emitted, err
			}
			if err := r.handle(resp, &calls); err != nil {
				return r.emitted, err
			}
		}
		return r.emitted, nil
	})
	return calls, err
}

func (r *geminiRun) handle(resp *genai.GenerateContentResponse, calls *[]*genai.FunctionCall) error {
	if resp.UsageMetadata != nil {
		r.stats.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		r.stats.OutputTokens += int(resp.UsageMetadata.CandidatesTokenCount)
	}
	if len(resp.Candidates) == 0 {
		return nil
	}
	cand := resp.Candidates[0]
	if cand.FinishReason != "" {
		r.stats.StopReason = string(cand.FinishReason)
	}
	if cand.Content == nil {
		return nil
	}

	for _, part := range cand.Content.Parts {
		switch {
		case part.FunctionCall != nil:
			*calls = append(*calls, part.FunctionCall)
		case part.Text != "":
			if part.Thought {
				if err := r.send(chunk.Thinking(part.Text, r.turn.Tracker.Open())); err != nil {
					return err
				}
			} else {
				r.turn.AppendAnswer(part.Text)
				if err := r.send(chunk.Text(part.Text)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// executeCalls runs the requested tools and appends the call/response
// exchange to the conversation for the next round.
func (r *geminiRun) executeCalls(ctx context.Context, contents []*genai.Content, calls []*genai.FunctionCall, round int) ([]*genai.Content, error) {
	var callParts, responseParts []*genai.Part

	for i, call := range calls {
		toolID := call.ID
		if toolID == "" {
			toolID = fmt.Sprintf("%s-%d-%d", call.Name, round, i)
		}
		client := r.tools[call.Name]
		var server string
		if client != nil {
			server = client.Name()
		}

		session := r.turn.Tracker.OnToolCall(toolID)
		if err := r.send(chunk.ToolCall(toolID, call.Name, "",
			serverLabel(server), chunk.StatusStarting, session)); err != nil {
			return nil, err
		}
		args, _ := json.Marshal(call.Args)
		if err := r.send(chunk.ToolCall(toolID, call.Name, string(args),
			serverLabel(server), chunk.StatusArgumentsComplete, session)); err != nil {
			return nil, err
		}

		result, status := r.invoke(ctx, client, call)
		if status == chunk.StatusAuthRequired {
			if err := r.send(chunk.ToolCall(toolID, call.Name, string(args),
				serverLabel(server), status, session)); err != nil {
				return nil, err
			}
			if err := r.send(chunk.AuthRequired("MCP server requires re-authentication", serverLabel(server))); err != nil {
				return nil, err
			}
			return nil, &thread.AuthRequiredError{Server: server}
		}

		if err := r.send(chunk.ToolCall(toolID, call.Name, string(args),
			serverLabel(server), status, session)); err != nil {
			return nil, err
		}
		if err := r.send(chunk.ToolResult(toolID, result, serverLabel(server), session)); err != nil {
			return nil, err
		}
		r.turn.Tracker.OnToolResult(toolID)
		r.stats.ToolUses++

		callParts = append(callParts, &genai.Part{FunctionCall: call})
		responseParts = append(responseParts,
			genai.NewPartFromFunctionResponse(call.Name, map[string]any{"result": result}))
	}

	contents = append(contents,
		&genai.Content{Role: genai.RoleModel, Parts: callParts},
		&genai.Content{Role: genai.RoleUser, Parts: responseParts},
	)
	return contents, nil
}

// invoke runs one tool call. Failures become the tool result text so the
// model can react, except auth failures which abort the turn.
func (r *geminiRun) invoke(ctx context.Context, client *mcp.Client, call *genai.FunctionCall) (string, string) {
	if client == nil {
		return fmt.Sprintf("unknown tool %q", call.Name), chunk.StatusError
	}
	result, err := client.Call(ctx, call.Name, call.Args)
	if err != nil {
		if isAuth, _ := DetectAuthError(err, r.servers); isAuth {
			return "", chunk.StatusAuthRequired
		}
		return err.Error(), chunk.StatusError
	}
	return result, chunk.StatusCompleted
}

// checkAuth converts an auth-looking error into the auth_required flow.
// Returns nil when the error is not an auth problem.
func (r *geminiRun) checkAuth(err error, server string) error {
	isAuth, matched := DetectAuthError(err, r.servers)
	if !isAuth {
		return nil
	}
	if matched != "" {
		server = matched
	}
	if err := r.send(chunk.AuthRequired("MCP server requires re-authentication", serverLabel(server))); err != nil {
		return err
	}
	return &thread.AuthRequiredError{Server: server}
}

func (r *geminiRun) send(c chunk.Chunk) error {
	r.emitted = true
	return r.emit(c)
}

func (r *geminiRun) closeClients() {
	for _, client := range r.clients {
		if err := client.Close(); err != nil {
			r.processor.opts.Logger.Warn("closing MCP client",
				"server", client.Name(), "error", err)
		}
	}
}
