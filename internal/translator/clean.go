package translator

import (
	"regexp"
	"strings"
)

// finalMarker separates a model's internal scratch text from the answer it
// intends for the user. Some backends emit it mid-line, so matching is
// substring based and case-insensitive.
const finalMarker = "assistantfinal"

var (
	finalMarkerRe    = regexp.MustCompile(`(?i)` + finalMarker)
	transcriptLineRe = regexp.MustCompile(`(?i)^(user|system|assistant)\s*:`)
)

// CleanCompletion reduces raw generated text to a single clean assistant
// reply. It undoes the artifacts backend models are known to introduce:
// echoed prompts, "final answer" markers, and leaked transcript lines.
// Total function; empty or whitespace-only input yields "".
//
// The steps run strictly in order, each on the previous step's output:
//
//  1. trim the whole text
//  2. keep only what follows the LAST Sentinel occurrence (prompt echo)
//  3. keep only what follows the first case-insensitive "assistantfinal"
//  4. drop lines starting with a role label, drop blank lines, trim the rest
//  5. rejoin and trim
//  6. return the first non-empty line
func CleanCompletion(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}

	if idx := strings.LastIndex(text, Sentinel); idx >= 0 {
		text = strings.TrimSpace(text[idx+len(Sentinel):])
	}

	if loc := finalMarkerRe.FindStringIndex(text); loc != nil {
		text = strings.TrimSpace(text[loc[1]:])
	}

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || transcriptLineRe.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	text = strings.TrimSpace(strings.Join(kept, "\n"))

	return firstNonEmptyLine(text)
}

func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return s
}
