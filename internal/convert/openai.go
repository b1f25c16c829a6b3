package convert

import (
	"fmt"

	"github.com/openai/openai-go"

	"github.com/koopa0/assistant/internal/thread"
)

// OpenAIChat builds the message list for the Chat Completions API.
//
// The API rejects consecutive entries with the same role, so runs of
// same-role messages are merged, text joined with blank lines. The system
// prompt becomes the leading system-role entry. File blocks have no Chat
// Completions representation; callers wanting attachments should route
// the model through the Responses API instead.
func OpenAIChat(req Request) ([]openai.ChatCompletionMessageParamUnion, error) {
	if len(req.Files) > 0 {
		return nil, unsupported("openai_chat", thread.BlockFile)
	}

	groups := mergeConsecutive(req.Messages)

	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(groups)+1)
	if req.System != "" {
		out = append(out, openai.SystemMessage(req.System))
	}

	for _, g := range groups {
		switch g.role {
		case thread.RoleSystem:
			out = append(out, openai.SystemMessage(joinText(g.blocks)))
		case thread.RoleAssistant:
			if !textOnly(g.blocks) {
				return nil, unsupported("openai_chat", nonTextType(g.blocks))
			}
			out = append(out, openai.AssistantMessage(joinText(g.blocks)))
		case thread.RoleUser:
			msg, err := openAIUserMessage(g.blocks)
			if err != nil {
				return nil, err
			}
			out = append(out, msg)
		default:
			return nil, fmt.Errorf("unknown message role %q", g.role)
		}
	}
	return out, nil
}

// openAIUserMessage builds a user entry, using the multipart form only
// when image blocks are present.
func openAIUserMessage(blocks []thread.Block) (openai.ChatCompletionMessageParamUnion, error) {
	if textOnly(blocks) {
		return openai.UserMessage(joinText(blocks)), nil
	}

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case thread.BlockText:
			parts = append(parts, openai.TextContentPart(b.Text))
		case thread.BlockImage:
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: imageURL(b),
			}))
		default:
			return openai.ChatCompletionMessageParamUnion{}, unsupported("openai_chat", b.Type)
		}
	}
	return openai.UserMessage(parts), nil
}

// imageURL returns the remote URL or a data URL for inline image bytes.
func imageURL(b thread.Block) string {
	if b.URL != "" {
		return b.URL
	}
	return fmt.Sprintf("data:%s;base64,%s", b.MediaType, b.Data)
}

// nonTextType returns the first non-text block type, for error reporting.
func nonTextType(blocks []thread.Block) thread.BlockType {
	for _, b := range blocks {
		if b.Type != thread.BlockText {
			return b.Type
		}
	}
	return thread.BlockText
}
