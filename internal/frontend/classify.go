package frontend

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// structuralOverrideCommands always demand a TTY and bypass probing
// entirely (§4.4 item 1): editors, pagers, remote-login, REPLs, and
// elevated-privilege command entry.
var structuralOverrideCommands = map[string]bool{
	"vi": true, "vim": true, "nvim": true, "nano": true, "emacs": true,
	"less": true, "more": true, "man": true,
	"ssh": true, "ftp": true, "telnet": true, "mosh": true,
	"mysql": true, "psql": true, "sqlite3": true,
	"python": true, "python3": true, "node": true, "irb": true, "pry": true,
	"bash": true, "sh": true, "zsh": true, "fish": true,
	"sudo": true, "su": true,
	"screen": true, "tmux": true, "top": true, "htop": true,
}

// minQueryTokens is the minimum-word rule (§4.4 item 4): lines shorter
// than this on the failure path are reported, never sent to the backend.
const minQueryTokens = 3

// maxRecursionDepth bounds AI-suggested command re-dispatch (§4.4 item 5).
const maxRecursionDepth = 1

// firstToken extracts the leading command word of line, preferring a real
// shell-AST parse and falling back to a naive split on parse failure —
// the same walk-with-fallback idiom used by the policy engine's
// structural checks.
func firstToken(line string) string {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	prog, err := parser.Parse(strings.NewReader(line), "")
	if err != nil {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			return ""
		}
		return fields[0]
	}

	var tok string
	syntax.Walk(prog, func(node syntax.Node) bool {
		if tok != "" {
			return false
		}
		if call, ok := node.(*syntax.CallExpr); ok && len(call.Args) > 0 {
			tok = wordLiteral(call.Args[0])
			return false
		}
		return true
	})
	if tok == "" {
		fields := strings.Fields(line)
		if len(fields) > 0 {
			tok = fields[0]
		}
	}
	return tok
}

func wordLiteral(w *syntax.Word) string {
	if w == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range w.Parts {
		if lit, ok := part.(*syntax.Lit); ok {
			sb.WriteString(lit.Value)
		}
	}
	return sb.String()
}

// IsStructuralOverride reports whether line's leading command always
// demands a TTY and must skip probing entirely.
func IsStructuralOverride(line string) bool {
	return structuralOverrideCommands[firstToken(line)]
}

// MeetsMinimumWordRule reports whether line has enough whitespace-
// separated tokens to be worth an AI call on the failure path.
func MeetsMinimumWordRule(line string) bool {
	return len(strings.Fields(line)) >= minQueryTokens
}
