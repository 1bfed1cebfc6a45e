package translator

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeRequest(t *testing.T, payload string) ChatCompletionRequest {
	t.Helper()
	var req ChatCompletionRequest
	require.NoError(t, json.Unmarshal([]byte(payload), &req))
	return req
}

func TestChatCompletionRequestDefaults(t *testing.T) {
	req := decodeRequest(t, `{"messages":[{"role":"user","content":"hi"}]}`)

	assert.Equal(t, "", req.Model)
	assert.Equal(t, DefaultTemperature, req.Temperature)
	assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
	assert.False(t, req.Stream)
	assert.Empty(t, req.Stop)
}

func TestChatCompletionRequestExplicitValues(t *testing.T) {
	req := decodeRequest(t, `{
		"model": " my-model ",
		"messages": [{"role":"user","content":"hi"}],
		"temperature": 0.7,
		"max_tokens": 32,
		"stream": true
	}`)

	assert.Equal(t, "my-model", req.Model)
	assert.Equal(t, 0.7, req.Temperature)
	assert.Equal(t, 32, req.MaxTokens)
	assert.True(t, req.Stream)
}

func TestChatCompletionRequestIgnoresUnknownFields(t *testing.T) {
	req := decodeRequest(t, `{
		"messages": [{"role":"user","content":"hi"}],
		"top_p": 0.9,
		"n": 3,
		"logit_bias": {"50256": -100},
		"user": "someone"
	}`)

	assert.Len(t, req.Messages, 1)
}

func TestChatCompletionRequestRequiresMessages(t *testing.T) {
	var req ChatCompletionRequest

	err := json.Unmarshal([]byte(`{"model":"m"}`), &req)
	assert.ErrorIs(t, err, ErrNoMessages)

	err = json.Unmarshal([]byte(`{"messages":[]}`), &req)
	assert.ErrorIs(t, err, ErrNoMessages)
}

func TestChatCompletionRequestStopVariants(t *testing.T) {
	tests := []struct {
		name        string
		stopJSON    string
		wantStop    []string
		wantResolve string
	}{
		{name: "absent", stopJSON: "", wantStop: nil, wantResolve: ""},
		{name: "null", stopJSON: `"stop": null,`, wantStop: nil, wantResolve: ""},
		{name: "empty string", stopJSON: `"stop": "",`, wantStop: nil, wantResolve: ""},
		{name: "string", stopJSON: `"stop": "END",`, wantStop: []string{"END"}, wantResolve: "END"},
		{name: "empty list", stopJSON: `"stop": [],`, wantStop: nil, wantResolve: ""},
		{name: "list keeps first only", stopJSON: `"stop": ["X","Y"],`, wantStop: []string{"X", "Y"}, wantResolve: "X"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := `{` + tt.stopJSON + `"messages":[{"role":"user","content":"hi"}]}`
			req := decodeRequest(t, payload)

			if tt.wantStop == nil {
				assert.Empty(t, req.Stop)
			} else {
				assert.Equal(t, tt.wantStop, req.Stop)
			}
			assert.Equal(t, tt.wantResolve, req.ResolveStop())
		})
	}
}

func TestChatCompletionRequestRejectsMalformedStop(t *testing.T) {
	var req ChatCompletionRequest
	err := json.Unmarshal([]byte(`{"stop": 42, "messages":[{"role":"user","content":"hi"}]}`), &req)
	assert.Error(t, err)
}

func TestChatMessageContentShapes(t *testing.T) {
	req := decodeRequest(t, `{"messages":[
		{"role":"user","content":"plain"},
		{"role":"user","content":[{"type":"text","text":"seg one "},{"type":"text","text":"seg two"}]},
		{"role":"weird","content":"kept as-is"}
	]}`)

	require.Len(t, req.Messages, 3)
	assert.Equal(t, "plain", req.Messages[0].Content)
	assert.Equal(t, "seg one seg two", req.Messages[1].Content)
	// Role normalization is deferred to prompt building.
	assert.Equal(t, "weird", req.Messages[2].Role)
}

func TestChatMessageRejectsNonTextSegments(t *testing.T) {
	var req ChatCompletionRequest
	err := json.Unmarshal([]byte(`{"messages":[{"role":"user","content":[{"type":"image_url","image_url":{}}]}]}`), &req)
	assert.Error(t, err)
}

func TestTurns(t *testing.T) {
	req := decodeRequest(t, `{"messages":[{"role":"system","content":"a"},{"role":"user","content":"b"}]}`)

	turns := req.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "system", turns[0].Role)
	assert.Equal(t, "a", turns[0].Content)
	assert.Equal(t, "user", turns[1].Role)
	assert.Equal(t, "b", turns[1].Content)
}

func TestNewChatCompletionResponse(t *testing.T) {
	resp := NewChatCompletionResponse("vllm_model", "hello", 1.25)

	assert.True(t, strings.HasPrefix(resp.ID, "chatcmpl-adapter-"))
	assert.Equal(t, "chat.completion", resp.Object)
	assert.NotZero(t, resp.Created)
	assert.Equal(t, "vllm_model", resp.Model)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, 0, resp.Choices[0].Index)
	assert.Equal(t, "assistant", resp.Choices[0].Message.Role)
	assert.Equal(t, "hello", resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.Equal(t, 1.25, resp.Usage.LatencySeconds)
}

func TestResponseIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		resp := NewChatCompletionResponse("m", "c", 0)
		assert.False(t, seen[resp.ID], "duplicate id %s", resp.ID)
		seen[resp.ID] = true
	}
}

// Token counts are unknown to this adapter and must serialize as null, not
// be omitted.
func TestUsageSerializesNullTokenCounts(t *testing.T) {
	data, err := json.Marshal(NewChatCompletionResponse("m", "c", 0.5).Usage)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	for _, key := range []string{"prompt_tokens", "completion_tokens", "total_tokens"} {
		val, ok := decoded[key]
		assert.True(t, ok, "missing %s", key)
		assert.Nil(t, val, "%s should be null", key)
	}
	assert.Equal(t, 0.5, decoded["latency_seconds"])
}
