package processor

import (
	"github.com/koopa0/assistant/internal/chunk"
	"github.com/koopa0/assistant/internal/mcp"
	"github.com/koopa0/assistant/internal/thread"
)

// collector records emitted chunks in order.
type collector struct {
	chunks []chunk.Chunk
}

func (c *collector) emit(ch chunk.Chunk) error {
	c.chunks = append(c.chunks, ch)
	return nil
}

func (c *collector) ofType(t chunk.Type) []chunk.Chunk {
	var out []chunk.Chunk
	for _, ch := range c.chunks {
		if ch.Type == t {
			out = append(out, ch)
		}
	}
	return out
}

func testTurn() *thread.Turn {
	th := &thread.Thread{Model: "test-model"}
	th.AppendMessage(thread.UserMessage("hello"))
	return thread.NewTurn(th, "", nil)
}

func testServers() []mcp.Server {
	return []mcp.Server{
		{Name: "github", Command: "github-mcp", Enabled: true},
		{Name: "notion", Endpoint: "https://mcp.notion.example/v1", Enabled: true},
	}
}
