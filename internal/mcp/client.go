package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Client is a live session against one MCP server. Created per turn for
// vendors that execute tools locally (Gemini function-calling loop).
type Client struct {
	server  Server
	session *sdk.ClientSession
	logger  *slog.Logger
}

// Connect opens a session to the server, spawning the command for stdio
// servers or dialing the streamable HTTP endpoint.
func Connect(ctx context.Context, server Server, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	impl := &sdk.Implementation{Name: "assistant", Version: "1.0.0"}
	client := sdk.NewClient(impl, nil)

	var transport sdk.Transport
	switch {
	case server.Command != "":
		cmd := exec.CommandContext(ctx, server.Command, server.Args...) // #nosec G204 -- command comes from operator config, not request input
		cmd.Env = append(os.Environ(), envSlice(server.Env)...)
		transport = &sdk.CommandTransport{Command: cmd}
	case server.Endpoint != "":
		transport = &sdk.StreamableClientTransport{
			Endpoint:   server.Endpoint,
			HTTPClient: &http.Client{Transport: headerTransport{headers: server.Headers}},
		}
	default:
		return nil, fmt.Errorf("server %q has neither command nor endpoint", server.Name)
	}

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to MCP server %q: %w", server.Name, err)
	}

	logger.Debug("connected to MCP server", "server", server.Name)
	return &Client{server: server, session: session, logger: logger}, nil
}

// Name returns the server name this client is bound to.
func (c *Client) Name() string {
	return c.server.Name
}

// Tools lists the tools the server advertises.
func (c *Client) Tools(ctx context.Context) ([]*sdk.Tool, error) {
	res, err := c.session.ListTools(ctx, &sdk.ListToolsParams{})
	if err != nil {
		return nil, fmt.Errorf("listing tools on %q: %w", c.server.Name, err)
	}
	return res.Tools, nil
}

// Call invokes a tool and concatenates its text content. A tool-level
// failure (IsError) is returned as an error carrying the server name so
// the auth error detector can match it.
func (c *Client) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	res, err := c.session.CallTool(ctx, &sdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", fmt.Errorf("calling %s on %q: %w", name, c.server.Name, err)
	}

	var out string
	for _, content := range res.Content {
		if text, ok := content.(*sdk.TextContent); ok {
			out += text.Text
		}
	}
	if res.IsError {
		return "", fmt.Errorf("tool %s on %q failed: %s", name, c.server.Name, out)
	}
	return out, nil
}

// Close tears down the session.
func (c *Client) Close() error {
	return c.session.Close()
}

// envSlice converts an env map to the KEY=VALUE form exec.Cmd expects.
func envSlice(m map[string]string) []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}

// headerTransport injects configured headers (auth tokens) into every
// request to a streamable HTTP server.
type headerTransport struct {
	headers map[string]string
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return http.DefaultTransport.RoundTrip(req)
}
