package models

import "strings"

// Recognized speaker roles. Anything else is coerced to RoleUser so lenient
// clients that send roles like "function" or "Human" still get a usable
// prompt instead of an error.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatTurn represents a single conversational message tagged with a role.
type ChatTurn struct {
	Role    string
	Content string
}

// NormalizeRole lowercases and trims the role, falling back to RoleUser for
// anything unrecognized.
func NormalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleSystem:
		return RoleSystem
	case RoleUser:
		return RoleUser
	case RoleAssistant:
		return RoleAssistant
	case RoleTool:
		return RoleTool
	default:
		return RoleUser
	}
}

// GenerateResult captures the outcome of one backend generate call.
type GenerateResult struct {
	Text           string
	LatencySeconds float64
}
