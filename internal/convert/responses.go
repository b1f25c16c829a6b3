package convert

import (
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/responses"

	"github.com/koopa0/assistant/internal/thread"
)

// ResponsesRequest is the converter output for the Responses API: the
// system prompt rides in the dedicated Instructions field, never as an
// input item, and message order is preserved without merging.
type ResponsesRequest struct {
	Instructions string
	Input        responses.ResponseInputParam
}

// OpenAIResponses builds the input item list for the Responses API.
// Attachments are added to the last user message as typed input_file /
// input_image content parts.
func OpenAIResponses(req Request) (ResponsesRequest, error) {
	out := ResponsesRequest{
		Instructions: req.System,
		Input:        make(responses.ResponseInputParam, 0, len(req.Messages)),
	}

	lastUser := lastUserIndex(req.Messages)
	for i, m := range req.Messages {
		blocks := m.Blocks
		if i == lastUser && len(req.Files) > 0 {
			blocks = append(append([]thread.Block{}, blocks...), req.Files...)
		}
		item, err := responsesMessage(m.Role, blocks)
		if err != nil {
			return ResponsesRequest{}, err
		}
		out.Input = append(out.Input, item)
	}
	return out, nil
}

// responsesMessage builds one input item. Text-only content uses the
// string form; anything richer uses the content part list.
func responsesMessage(role string, blocks []thread.Block) (responses.ResponseInputItemUnionParam, error) {
	easyRole, err := responsesRole(role)
	if err != nil {
		return responses.ResponseInputItemUnionParam{}, err
	}

	msg := responses.EasyInputMessageParam{Role: easyRole}
	if textOnly(blocks) {
		msg.Content = responses.EasyInputMessageContentUnionParam{
			OfString: openai.String(joinText(blocks)),
		}
		return responses.ResponseInputItemUnionParam{OfMessage: &msg}, nil
	}

	list := make(responses.ResponseInputMessageContentListParam, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case thread.BlockText:
			list = append(list, responses.ResponseInputContentUnionParam{
				OfInputText: &responses.ResponseInputTextParam{Text: b.Text},
			})
		case thread.BlockImage:
			list = append(list, responses.ResponseInputContentUnionParam{
				OfInputImage: &responses.ResponseInputImageParam{
					ImageURL: openai.String(imageURL(b)),
				},
			})
		case thread.BlockFile:
			list = append(list, responses.ResponseInputContentUnionParam{
				OfInputFile: &responses.ResponseInputFileParam{
					Filename: openai.String(b.Name),
					FileData: openai.String(fmt.Sprintf("data:%s;base64,%s", b.MediaType, b.Data)),
				},
			})
		default:
			return responses.ResponseInputItemUnionParam{}, unsupported("openai_responses", b.Type)
		}
	}
	msg.Content = responses.EasyInputMessageContentUnionParam{OfInputItemContentList: list}
	return responses.ResponseInputItemUnionParam{OfMessage: &msg}, nil
}

func responsesRole(role string) (responses.EasyInputMessageRole, error) {
	switch role {
	case thread.RoleUser:
		return responses.EasyInputMessageRoleUser, nil
	case thread.RoleAssistant:
		return responses.EasyInputMessageRoleAssistant, nil
	case thread.RoleSystem:
		return responses.EasyInputMessageRoleSystem, nil
	default:
		return "", fmt.Errorf("unknown message role %q", role)
	}
}

// lastUserIndex returns the index of the last user message, or -1.
func lastUserIndex(messages []thread.Message) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == thread.RoleUser {
			return i
		}
	}
	return -1
}
