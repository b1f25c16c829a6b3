package convert

import (
	"encoding/base64"
	"fmt"

	"google.golang.org/genai"

	"github.com/koopa0/assistant/internal/thread"
)

// GeminiRequest is the converter output for the GenerateContent API. The
// system prompt is excluded from the content list and carried as the
// dedicated system instruction.
type GeminiRequest struct {
	SystemInstruction *genai.Content
	Contents          []*genai.Content
}

// Gemini builds one Content per message with the role remapped: assistant
// becomes "model", user stays "user", system-role history is folded into
// the system instruction.
func Gemini(req Request) (GeminiRequest, error) {
	out := GeminiRequest{}

	system := req.System
	lastUser := lastUserIndex(req.Messages)

	for i, m := range req.Messages {
		if m.Role == thread.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += joinText(m.Blocks)
			continue
		}

		blocks := m.Blocks
		if i == lastUser && len(req.Files) > 0 {
			blocks = append(append([]thread.Block{}, blocks...), req.Files...)
		}

		parts, err := geminiParts(blocks)
		if err != nil {
			return GeminiRequest{}, err
		}

		role := genai.RoleUser
		if m.Role == thread.RoleAssistant {
			role = genai.RoleModel
		}
		out.Contents = append(out.Contents, &genai.Content{Role: role, Parts: parts})
	}

	if system != "" {
		out.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(system)},
		}
	}
	return out, nil
}

// geminiParts converts blocks to genai parts. Inline file and image data
// ride as bytes with their media type; remote image URLs have no inline
// representation here and are rejected.
func geminiParts(blocks []thread.Block) ([]*genai.Part, error) {
	parts := make([]*genai.Part, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case thread.BlockText:
			parts = append(parts, genai.NewPartFromText(b.Text))
		case thread.BlockImage, thread.BlockFile:
			if b.URL != "" {
				return nil, unsupported("gemini", b.Type)
			}
			raw, err := base64.StdEncoding.DecodeString(b.Data)
			if err != nil {
				return nil, fmt.Errorf("decoding %s block data: %w", b.Type, err)
			}
			parts = append(parts, genai.NewPartFromBytes(raw, b.MediaType))
		default:
			return nil, fmt.Errorf("unknown block type %q", b.Type)
		}
	}
	return parts, nil
}
