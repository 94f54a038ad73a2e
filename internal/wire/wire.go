// Package wire encodes and parses the line-terminated textual protocols of
// §6: front end ↔ middleware ↔ backend, and front end ↔ probe.
// ClientMessage/ProxyMessage cover the middleware-facing grammar, where
// every message is exactly one line; ProbeVerdictLine/ParseProbeVerdictLines
// cover the probe-facing one, whose reply is three lines.
package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// ClientKind tags a message sent from the front end to what it believes is
// the backend (in reality, the middleware).
type ClientKind int

const (
	ClientStatus ClientKind = iota
	ClientCwd
	ClientQuery
	ClientBashFailed
	ClientVerbose
	ClientAIProvider
)

// ClientMessage is one line sent upstream by the front end.
type ClientMessage struct {
	Kind ClientKind

	// Cwd: populated for ClientCwd.
	Cwd string
	// Query: populated for ClientQuery and ClientBashFailed.
	Query string
	// ExitCode, OutputPath: populated for ClientBashFailed.
	ExitCode   int
	OutputPath string
	// VerbosityLevel: populated for ClientVerbose.
	VerbosityLevel int
	// Provider: populated for ClientAIProvider.
	Provider string
}

// Encode renders m as its single-line wire form.
func (m ClientMessage) Encode() string {
	switch m.Kind {
	case ClientStatus:
		return "STATUS"
	case ClientCwd:
		return "CWD:" + m.Cwd
	case ClientQuery:
		return "QUERY:" + m.Query
	case ClientBashFailed:
		return fmt.Sprintf("BASH_FAILED:%d:%s:%s", m.ExitCode, m.Query, m.OutputPath)
	case ClientVerbose:
		return "VERBOSE:" + strconv.Itoa(m.VerbosityLevel)
	case ClientAIProvider:
		return "AI_PROVIDER:" + m.Provider
	default:
		return ""
	}
}

// ParseClientMessage parses one line of the client → proxy grammar.
func ParseClientMessage(line string) (ClientMessage, error) {
	switch {
	case line == "STATUS":
		return ClientMessage{Kind: ClientStatus}, nil

	case strings.HasPrefix(line, "CWD:"):
		return ClientMessage{Kind: ClientCwd, Cwd: strings.TrimPrefix(line, "CWD:")}, nil

	case strings.HasPrefix(line, "QUERY:"):
		return ClientMessage{Kind: ClientQuery, Query: strings.TrimPrefix(line, "QUERY:")}, nil

	case strings.HasPrefix(line, "BASH_FAILED:"):
		rest := strings.TrimPrefix(line, "BASH_FAILED:")
		// rest = "<exit_code>:<raw-line>:<path>" — raw-line may itself
		// contain colons, so split only on the first and last separators.
		firstColon := strings.IndexByte(rest, ':')
		lastColon := strings.LastIndexByte(rest, ':')
		if firstColon < 0 || lastColon <= firstColon {
			return ClientMessage{}, fmt.Errorf("wire: malformed BASH_FAILED: %q", line)
		}
		code, err := strconv.Atoi(rest[:firstColon])
		if err != nil {
			return ClientMessage{}, fmt.Errorf("wire: malformed BASH_FAILED exit code: %w", err)
		}
		return ClientMessage{
			Kind:       ClientBashFailed,
			ExitCode:   code,
			Query:      rest[firstColon+1 : lastColon],
			OutputPath: rest[lastColon+1:],
		}, nil

	case strings.HasPrefix(line, "VERBOSE:"):
		level, err := strconv.Atoi(strings.TrimPrefix(line, "VERBOSE:"))
		if err != nil {
			return ClientMessage{}, fmt.Errorf("wire: malformed VERBOSE: %w", err)
		}
		return ClientMessage{Kind: ClientVerbose, VerbosityLevel: level}, nil

	case strings.HasPrefix(line, "AI_PROVIDER:"):
		return ClientMessage{Kind: ClientAIProvider, Provider: strings.TrimPrefix(line, "AI_PROVIDER:")}, nil

	default:
		return ClientMessage{}, fmt.Errorf("wire: unrecognized client message: %q", line)
	}
}

// ProxyKind tags a message sent from the proxy (middleware, or backend when
// the middleware forwards transparently) down to the front end.
type ProxyKind int

const (
	ProxyAIReady ProxyKind = iota
	ProxyAILoading
	ProxyAIFailed
	ProxyOK
	ProxyCommand
	ProxyEdit
	ProxyBlocked
)

// ProxyMessage is one line sent downstream to the front end.
type ProxyMessage struct {
	Kind ProxyKind

	Command string // populated for ProxyCommand
	Text    string // populated for ProxyEdit (may itself contain newlines, escaped)
	Reason  string // populated for ProxyBlocked
}

// Encode renders m as its single-line wire form. Multi-line text payloads
// are escaped so the overall message remains exactly one line on the wire;
// ParseProxyMessage reverses the escaping.
func (m ProxyMessage) Encode() string {
	switch m.Kind {
	case ProxyAIReady:
		return "AI_READY"
	case ProxyAILoading:
		return "AI_LOADING"
	case ProxyAIFailed:
		return "AI_FAILED"
	case ProxyOK:
		return "OK"
	case ProxyCommand:
		return "cmd:" + m.Command
	case ProxyEdit:
		return "edit:" + escapeNewlines(m.Text)
	case ProxyBlocked:
		return "blocked:" + m.Reason
	default:
		return ""
	}
}

// ParseProxyMessage parses one line of the proxy → client grammar.
func ParseProxyMessage(line string) (ProxyMessage, error) {
	switch {
	case line == "AI_READY":
		return ProxyMessage{Kind: ProxyAIReady}, nil
	case line == "AI_LOADING":
		return ProxyMessage{Kind: ProxyAILoading}, nil
	case line == "AI_FAILED":
		return ProxyMessage{Kind: ProxyAIFailed}, nil
	case line == "OK":
		return ProxyMessage{Kind: ProxyOK}, nil
	case strings.HasPrefix(line, "cmd:"):
		return ProxyMessage{Kind: ProxyCommand, Command: strings.TrimPrefix(line, "cmd:")}, nil
	case strings.HasPrefix(line, "edit:"):
		return ProxyMessage{Kind: ProxyEdit, Text: unescapeNewlines(strings.TrimPrefix(line, "edit:"))}, nil
	case strings.HasPrefix(line, "blocked:"):
		return ProxyMessage{Kind: ProxyBlocked, Reason: strings.TrimPrefix(line, "blocked:")}, nil
	default:
		// Graceful degradation (§4.2): any unrecognized payload is treated
		// as informational text.
		return ProxyMessage{Kind: ProxyEdit, Text: line}, nil
	}
}

func escapeNewlines(s string) string {
	return strings.ReplaceAll(s, "\n", "\\n")
}

func unescapeNewlines(s string) string {
	return strings.ReplaceAll(s, "\\n", "\n")
}

// ProbeVerdictLine renders a probe result as the probe → front end grammar:
// "EXIT_CODE:<n>\nSTDOUT:<...>\nSTDERR:<...>" (or the INTERACTIVE/TIMEOUT
// sentinels in place of a numeric code).
func ProbeVerdictLine(exitCode string, stdout, stderr string) string {
	var b strings.Builder
	b.WriteString("EXIT_CODE:")
	b.WriteString(exitCode)
	b.WriteString("\nSTDOUT:")
	b.WriteString(escapeNewlines(stdout))
	b.WriteString("\nSTDERR:")
	b.WriteString(escapeNewlines(stderr))
	b.WriteString("\n")
	return b.String()
}

// ParsedProbeVerdict is the decoded form of a probe → front end message.
type ParsedProbeVerdict struct {
	ExitCode string // numeric string, "INTERACTIVE", or "TIMEOUT"
	Stdout   string
	Stderr   string
}

// ParseProbeVerdictLines parses the three-line probe response grammar.
func ParseProbeVerdictLines(raw string) (ParsedProbeVerdict, error) {
	lines := strings.SplitN(strings.TrimRight(raw, "\n"), "\n", 3)
	if len(lines) != 3 {
		return ParsedProbeVerdict{}, fmt.Errorf("wire: malformed probe response: %q", raw)
	}
	var out ParsedProbeVerdict
	for _, prefix := range []struct {
		tag  string
		dest *string
	}{
		{"EXIT_CODE:", &out.ExitCode},
		{"STDOUT:", &out.Stdout},
		{"STDERR:", &out.Stderr},
	} {
		line := lines[0]
		lines = lines[1:]
		if !strings.HasPrefix(line, prefix.tag) {
			return ParsedProbeVerdict{}, fmt.Errorf("wire: expected %q prefix, got %q", prefix.tag, line)
		}
		*prefix.dest = unescapeNewlines(strings.TrimPrefix(line, prefix.tag))
	}
	return out, nil
}
