package translator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kagaho/Nemo-Guardrails/internal/models"
)

// Defaults applied when the request omits sampling parameters.
const (
	DefaultTemperature = 0.0
	DefaultMaxTokens   = 256
)

var errInvalidContent = errors.New("invalid message content")

// ErrNoMessages indicates the request carried no messages at all.
var ErrNoMessages = errors.New("at least one message is required")

// ChatCompletionRequest models the OpenAI chat/completions request payload.
// Parsing is deliberately lenient: unrecognized fields are ignored, model is
// optional, roles are passed through untouched (normalization happens at
// prompt build time), and stop accepts both a string and a list of strings.
type ChatCompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	Temperature float64
	MaxTokens   int
	Stream      bool
	Stop        []string
}

// UnmarshalJSON applies defaults and folds the two accepted stop shapes
// into a slice.
func (r *ChatCompletionRequest) UnmarshalJSON(data []byte) error {
	type alias struct {
		Model       string          `json:"model"`
		Messages    []ChatMessage   `json:"messages"`
		Temperature *float64        `json:"temperature"`
		MaxTokens   *int            `json:"max_tokens"`
		Stream      bool            `json:"stream"`
		Stop        json.RawMessage `json:"stop"`
	}

	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode chat request: %w", err)
	}

	stop, err := parseStop(raw.Stop)
	if err != nil {
		return err
	}

	r.Model = strings.TrimSpace(raw.Model)
	r.Messages = raw.Messages
	r.Stream = raw.Stream
	r.Stop = stop

	r.Temperature = DefaultTemperature
	if raw.Temperature != nil {
		r.Temperature = *raw.Temperature
	}
	r.MaxTokens = DefaultMaxTokens
	if raw.MaxTokens != nil {
		r.MaxTokens = *raw.MaxTokens
	}

	if len(r.Messages) == 0 {
		return ErrNoMessages
	}
	return nil
}

// Turns converts the wire messages into chat turns for prompt building.
func (r ChatCompletionRequest) Turns() []models.ChatTurn {
	turns := make([]models.ChatTurn, 0, len(r.Messages))
	for _, m := range r.Messages {
		turns = append(turns, models.ChatTurn{Role: m.Role, Content: m.Content})
	}
	return turns
}

// ResolveStop narrows the OpenAI stop field to the single scalar the
// backend accepts: the first element of a list, or the string itself.
// Empty resolves to "" which callers treat as "omit stop entirely".
// Dropping the remaining list elements is a documented contract of this
// adapter, not an accident.
func (r ChatCompletionRequest) ResolveStop() string {
	if len(r.Stop) == 0 {
		return ""
	}
	return r.Stop[0]
}

// ChatMessage captures a single message within the chat request. Content
// may arrive as a plain string or as an array of text segments.
type ChatMessage struct {
	Role    string
	Content string
}

func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	type alias struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}

	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}

	content, err := extractMessageContent(raw.Content)
	if err != nil {
		return err
	}

	m.Role = raw.Role
	m.Content = content
	return nil
}

func extractMessageContent(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}

	var segments []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &segments); err == nil {
		var builder strings.Builder
		for _, segment := range segments {
			if segment.Type != "text" {
				return "", fmt.Errorf("%w: segment type %q not supported", errInvalidContent, segment.Type)
			}
			builder.WriteString(segment.Text)
		}
		return builder.String(), nil
	}

	return "", fmt.Errorf("%w: unsupported content structure", errInvalidContent)
}

func parseStop(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return nil, nil
		}
		return []string{single}, nil
	}

	var multi []string
	if err := json.Unmarshal(raw, &multi); err == nil {
		return multi, nil
	}

	return nil, errors.New("stop must be a string or a list of strings")
}

// ChatCompletionResponse models the OpenAI-compatible chat response.
type ChatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   Usage        `json:"usage"`
}

// ChatChoice represents the single choice this adapter ever returns.
type ChatChoice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// ResponseMessage is the assistant reply inside a choice.
type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage mirrors the OpenAI usage block. Token counts are always null since
// the generate endpoint reports none; latency is measured by the adapter.
type Usage struct {
	PromptTokens     *int    `json:"prompt_tokens"`
	CompletionTokens *int    `json:"completion_tokens"`
	TotalTokens      *int    `json:"total_tokens"`
	LatencySeconds   float64 `json:"latency_seconds"`
}

// NewChatCompletionResponse assembles the outbound response shape around a
// cleaned completion.
func NewChatCompletionResponse(model, content string, latencySeconds float64) ChatCompletionResponse {
	return ChatCompletionResponse{
		ID:      "chatcmpl-adapter-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []ChatChoice{
			{
				Index: 0,
				Message: ResponseMessage{
					Role:    models.RoleAssistant,
					Content: content,
				},
				FinishReason: "stop",
			},
		},
		Usage: Usage{LatencySeconds: latencySeconds},
	}
}
