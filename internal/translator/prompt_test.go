package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kagaho/Nemo-Guardrails/internal/models"
)

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		name  string
		turns []models.ChatTurn
		want  string
	}{
		{
			name: "user and assistant turns",
			turns: []models.ChatTurn{
				{Role: "user", Content: "Hi"},
				{Role: "assistant", Content: "Hello"},
			},
			want: "USER: Hi\nASSISTANT: Hello\nASSISTANT:",
		},
		{
			name: "system turn",
			turns: []models.ChatTurn{
				{Role: "system", Content: "Be brief."},
				{Role: "user", Content: "Hi"},
			},
			want: "SYSTEM: Be brief.\nUSER: Hi\nASSISTANT:",
		},
		{
			name: "unrecognized role coerced to user",
			turns: []models.ChatTurn{
				{Role: "function", Content: "payload"},
			},
			want: "USER: payload\nASSISTANT:",
		},
		{
			name: "role matching is case-insensitive",
			turns: []models.ChatTurn{
				{Role: "System", Content: "a"},
				{Role: "USER", Content: "b"},
				{Role: " Tool ", Content: "c"},
			},
			want: "SYSTEM: a\nUSER: b\nTOOL: c\nASSISTANT:",
		},
		{
			name: "empty content preserved",
			turns: []models.ChatTurn{
				{Role: "user", Content: ""},
			},
			want: "USER: \nASSISTANT:",
		},
		{
			name: "multi-line content passes through unescaped",
			turns: []models.ChatTurn{
				{Role: "user", Content: "line one\nline two"},
			},
			want: "USER: line one\nline two\nASSISTANT:",
		},
		{
			name:  "no turns yields bare sentinel",
			turns: nil,
			want:  "ASSISTANT:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildPrompt(tt.turns))
		})
	}
}

func TestBuildPromptAlwaysEndsWithSentinel(t *testing.T) {
	turns := []models.ChatTurn{
		{Role: "user", Content: "anything"},
		{Role: "assistant", Content: "at all"},
	}

	prompt := BuildPrompt(turns)
	assert.True(t, len(prompt) >= len(Sentinel))
	assert.Equal(t, Sentinel, prompt[len(prompt)-len(Sentinel):])
}
