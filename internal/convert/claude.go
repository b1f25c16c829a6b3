package convert

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/koopa0/assistant/internal/thread"
)

// ClaudeRequest is the converter output for the Messages API. The system
// prompt is a dedicated top-level field, not a message.
type ClaudeRequest struct {
	System   string
	Messages []anthropic.MessageParam
}

// Claude builds the message list for the Messages API.
//
// Consecutive same-role messages are merged (the API alternates strictly
// between user and assistant). File attachments become typed document /
// image content blocks on the last user message. System-role messages in
// history are folded into the top-level system prompt, which is where the
// API expects them.
func Claude(req Request) (ClaudeRequest, error) {
	out := ClaudeRequest{System: req.System}

	groups := mergeConsecutive(req.Messages)
	lastUser := -1
	for i, g := range groups {
		if g.role == thread.RoleUser {
			lastUser = i
		}
	}

	for i, g := range groups {
		if g.role == thread.RoleSystem {
			if out.System != "" {
				out.System += "\n\n"
			}
			out.System += joinText(g.blocks)
			continue
		}

		blocks := g.blocks
		if i == lastUser && len(req.Files) > 0 {
			blocks = append(append([]thread.Block{}, blocks...), req.Files...)
		}

		content, err := claudeContent(g.role, blocks)
		if err != nil {
			return ClaudeRequest{}, err
		}

		role := anthropic.MessageParamRoleUser
		if g.role == thread.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		out.Messages = append(out.Messages, anthropic.MessageParam{Role: role, Content: content})
	}
	return out, nil
}

// claudeContent builds the content block list for one message.
func claudeContent(role string, blocks []thread.Block) ([]anthropic.ContentBlockParamUnion, error) {
	if textOnly(blocks) {
		return []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(joinText(blocks))}, nil
	}

	out := make([]anthropic.ContentBlockParamUnion, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case thread.BlockText:
			out = append(out, anthropic.NewTextBlock(b.Text))
		case thread.BlockImage:
			if role != thread.RoleUser {
				return nil, unsupported("claude", b.Type)
			}
			if b.URL != "" {
				out = append(out, anthropic.ContentBlockParamUnion{
					OfImage: &anthropic.ImageBlockParam{
						Source: anthropic.ImageBlockParamSourceUnion{
							OfURL: &anthropic.URLImageSourceParam{URL: b.URL},
						},
					},
				})
			} else {
				out = append(out, anthropic.NewImageBlockBase64(b.MediaType, b.Data))
			}
		case thread.BlockFile:
			if role != thread.RoleUser {
				return nil, unsupported("claude", b.Type)
			}
			if b.MediaType != "application/pdf" {
				return nil, unsupported("claude", b.Type)
			}
			out = append(out, anthropic.ContentBlockParamUnion{
				OfDocument: &anthropic.DocumentBlockParam{
					Source: anthropic.DocumentBlockParamSourceUnion{
						OfBase64: &anthropic.Base64PDFSourceParam{Data: b.Data},
					},
					Title: anthropic.String(b.Name),
				},
			})
		default:
			return nil, fmt.Errorf("unknown block type %q", b.Type)
		}
	}
	return out, nil
}
