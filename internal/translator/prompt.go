package translator

import (
	"strings"

	"github.com/kagaho/Nemo-Guardrails/internal/models"
)

// Sentinel is the marker appended to every prompt to signal where the
// backend should begin generating. It doubles as the delimiter used by
// CleanCompletion to strip echoed transcript.
const Sentinel = "ASSISTANT:"

// BuildPrompt flattens an ordered sequence of chat turns into the single
// prompt string the generate endpoint expects. Each turn becomes one
// `ROLE: content` line and the prompt always ends with the bare Sentinel
// line, no trailing newline.
//
// Content is inserted verbatim: embedded newlines are not escaped, so a
// message containing a line that itself starts with a role label can be
// misread by CleanCompletion later. Known limitation, kept deliberately.
func BuildPrompt(turns []models.ChatTurn) string {
	lines := make([]string, 0, len(turns)+1)
	for _, turn := range turns {
		role := models.NormalizeRole(turn.Role)
		lines = append(lines, strings.ToUpper(role)+": "+turn.Content)
	}
	lines = append(lines, Sentinel)
	return strings.Join(lines, "\n")
}
