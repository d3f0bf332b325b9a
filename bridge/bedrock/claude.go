package bedrock

import (
	"encoding/json"
	"strings"

	"github.com/Laisky/errors/v2"

	"github.com/chatbridge/chatbridge/bridge"
	"github.com/chatbridge/chatbridge/chat"
)

// anthropicVersion is the payload schema marker Bedrock requires for the
// Anthropic messages API.
const anthropicVersion = "bedrock-2023-05-31"

// request is the native Anthropic-on-Bedrock messages payload.
type request struct {
	AnthropicVersion string    `json:"anthropic_version"`
	System           string    `json:"system,omitempty"`
	Messages         []message `json:"messages"`
	MaxTokens        int       `json:"max_tokens"`
	Temperature      *float64  `json:"temperature,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type response struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      usage          `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// buildRequest lifts system turns into the payload's system field and carries
// user/assistant turns in order. Serialization is deterministic: the same
// history and options always marshal to byte-identical bytes.
func buildRequest(history []chat.Turn, opts bridge.Options) request {
	req := request{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        opts.MaxTokens,
		Temperature:      opts.Temperature,
	}

	var system []string
	if opts.System != "" {
		system = append(system, opts.System)
	}
	for i := range history {
		switch history[i].Role {
		case chat.RoleSystem:
			system = append(system, history[i].Text)
		default:
			req.Messages = append(req.Messages, message{
				Role:    string(history[i].Role),
				Content: history[i].Text,
			})
		}
	}
	req.System = strings.Join(system, "\n\n")
	return req
}

func marshalRequest(history []chat.Turn, opts bridge.Options) ([]byte, error) {
	body, err := json.Marshal(buildRequest(history, opts))
	if err != nil {
		return nil, errors.Wrap(err, "marshal bedrock request")
	}
	return body, nil
}

// parseResponse extracts the assistant turn and usage from a non-streaming
// InvokeModel response body.
func parseResponse(body []byte) (chat.Turn, bridge.Usage, error) {
	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return chat.Turn{}, bridge.Usage{}, errors.Wrap(err, "decode bedrock response")
	}

	var sb strings.Builder
	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			sb.WriteString(resp.Content[i].Text)
		}
	}
	if sb.Len() == 0 {
		return chat.Turn{}, bridge.Usage{}, errors.New("bedrock response contains no text content")
	}

	u := bridge.Usage{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	return chat.AssistantTurn(sb.String()), u, nil
}

// Streaming chunk frames, one JSON document per PayloadPart.
// https://docs.aws.amazon.com/bedrock/latest/userguide/model-parameters-anthropic-claude-messages.html
type streamChunk struct {
	Type    string `json:"type"`
	Message *struct {
		Usage usage `json:"usage"`
	} `json:"message,omitempty"`
	Delta *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta,omitempty"`
	Usage *usage `json:"usage,omitempty"`
}

// parseChunk decodes one streaming payload part. It returns the text fragment
// (possibly empty), a usage update when present, and whether the message is
// complete.
func parseChunk(data []byte) (text string, u *bridge.Usage, done bool, err error) {
	var chunk streamChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return "", nil, false, errors.Wrap(err, "decode stream chunk")
	}

	switch chunk.Type {
	case "message_start":
		if chunk.Message != nil {
			return "", &bridge.Usage{PromptTokens: chunk.Message.Usage.InputTokens}, false, nil
		}
	case "content_block_delta":
		if chunk.Delta != nil && chunk.Delta.Type == "text_delta" {
			return chunk.Delta.Text, nil, false, nil
		}
	case "message_delta":
		if chunk.Usage != nil {
			return "", &bridge.Usage{CompletionTokens: chunk.Usage.OutputTokens}, false, nil
		}
	case "message_stop":
		return "", nil, true, nil
	}
	return "", nil, false, nil
}
