package backend

import "strings"

// parseAIResult applies the backend's AI result grammar (§4.2): the model
// output is expected to start with exactly one of the two recognized
// prefixes. Anything else is graceful degradation — treated as edit: text,
// per the same rule the front end applies to unrecognized proxy replies.
func parseAIResult(output string) (kind string, payload string) {
	trimmed := strings.TrimSpace(output)
	if rest, ok := strings.CutPrefix(trimmed, "cmd:"); ok {
		return "cmd", strings.TrimSpace(rest)
	}
	if rest, ok := strings.CutPrefix(trimmed, "edit:"); ok {
		return "edit", strings.TrimSpace(rest)
	}
	return "edit", trimmed
}
