// Package adapter orchestrates one chat completion: prompt construction,
// parameter normalization, the backend generate call, and completion
// cleanup. It is a transparent pass-through for backend failures, not a
// resilience layer: no retries, no caching, one outbound call per request.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kagaho/Nemo-Guardrails/internal/translator"
	"github.com/kagaho/Nemo-Guardrails/internal/triton"
)

// ErrStreamingUnsupported is returned when a client requests a streaming
// response. Streaming is rejected outright, before any backend call.
var ErrStreamingUnsupported = errors.New("stream=true is not supported by this adapter")

// Adapter translates OpenAI-shaped chat requests into backend generate
// calls. Stateless; safe for concurrent use.
type Adapter struct {
	backend *triton.Client
}

// New constructs an adapter over the given backend client.
func New(backend *triton.Client) (*Adapter, error) {
	if backend == nil {
		return nil, errors.New("backend client must not be nil")
	}
	return &Adapter{backend: backend}, nil
}

// Model returns the backend model name, used when a request omits model.
func (a *Adapter) Model() string {
	return a.backend.Model()
}

// Handle executes a single chat completion end to end.
func (a *Adapter) Handle(ctx context.Context, req translator.ChatCompletionRequest) (translator.ChatCompletionResponse, error) {
	if req.Stream {
		return translator.ChatCompletionResponse{}, ErrStreamingUnsupported
	}

	prompt := translator.BuildPrompt(req.Turns())

	// The backend accepts stream only as false and stop only as a single
	// scalar, so the request value is forced and the stop list narrowed to
	// its first element.
	payload := triton.GenerateRequest{
		TextInput: prompt,
		Parameters: triton.Parameters{
			Stream:      false,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
			Stop:        req.ResolveStop(),
		},
	}

	resp, elapsed, err := a.backend.Generate(ctx, payload)
	if err != nil {
		return translator.ChatCompletionResponse{}, fmt.Errorf("generate: %w", err)
	}

	content := translator.CleanCompletion(resp.TextOutput)

	model := req.Model
	if model == "" {
		model = a.backend.Model()
	}

	slog.Debug("completion served",
		"model", model,
		"latency_s", elapsed.Seconds(),
		"raw_len", len(resp.TextOutput),
		"clean_len", len(content),
	)

	return translator.NewChatCompletionResponse(model, content, elapsed.Seconds()), nil
}
