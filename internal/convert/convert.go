// Package convert translates thread history into vendor request payloads.
//
// Each vendor family has one converter: OpenAI Chat Completions, OpenAI
// Responses, Claude Messages, Gemini GenerateContent. All converters take
// the same vendor-agnostic Request and produce the vendor SDK's shapes.
// Converters never mutate their input and never drop content silently: a
// block that cannot be represented for the target vendor fails with
// UnsupportedContentError.
package convert

import (
	"fmt"
	"strings"

	"github.com/koopa0/assistant/internal/thread"
)

// Request is the vendor-agnostic input to every converter.
type Request struct {
	// Messages is the ordered thread history, oldest first.
	Messages []thread.Message

	// System is the optional system prompt, including any MCP-injected
	// prompt fragments already appended by the caller.
	System string

	// Files are attachments for the current turn. Converters attach them
	// to the last user message for vendors that support typed attachment
	// blocks.
	Files []thread.Block
}

// UnsupportedContentError reports a content block that cannot be
// represented in the target vendor's request format. The turn is aborted
// before any network call.
type UnsupportedContentError struct {
	Vendor string
	Block  thread.BlockType
}

func (e *UnsupportedContentError) Error() string {
	return fmt.Sprintf("content block %q not representable for vendor %s", e.Block, e.Vendor)
}

// unsupported is a shorthand constructor used by the converters.
func unsupported(vendor string, block thread.BlockType) error {
	return &UnsupportedContentError{Vendor: vendor, Block: block}
}

// mergeGroup is a run of consecutive messages sharing one role.
type mergeGroup struct {
	role   string
	blocks []thread.Block
}

// mergeConsecutive collapses consecutive same-role messages into single
// groups, concatenating their block lists in order. OpenAI Chat and
// Claude reject back-to-back entries with the same role.
func mergeConsecutive(messages []thread.Message) []mergeGroup {
	var groups []mergeGroup
	for _, m := range messages {
		if n := len(groups); n > 0 && groups[n-1].role == m.Role {
			groups[n-1].blocks = append(groups[n-1].blocks, m.Blocks...)
			continue
		}
		blocks := make([]thread.Block, len(m.Blocks))
		copy(blocks, m.Blocks)
		groups = append(groups, mergeGroup{role: m.Role, blocks: blocks})
	}
	return groups
}

// joinText concatenates the text blocks of a group with blank lines, the
// separator vendors expect between merged messages.
func joinText(blocks []thread.Block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Type == thread.BlockText {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// textOnly reports whether every block in the slice is plain text.
func textOnly(blocks []thread.Block) bool {
	for _, b := range blocks {
		if b.Type != thread.BlockText {
			return false
		}
	}
	return true
}
