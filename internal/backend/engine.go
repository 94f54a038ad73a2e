// Package backend owns the AI-provider session and serves the front end's
// (mediated by the middleware) requests, translating natural-language
// lines into a runnable command suggestion or textual information (§4.2).
// The backend never executes shell commands itself.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"text/template"

	"github.com/coshell-dev/coshell"
	defaults "github.com/coshell-dev/coshell/default"
)

// Status mirrors coshell.AIStatus as an atomic-friendly int32.
type Status int32

const (
	StatusLoading Status = iota
	StatusReady
	StatusFailed
)

func (s Status) toAIStatus() coshell.AIStatus {
	switch s {
	case StatusReady:
		return coshell.AIStatusReady
	case StatusFailed:
		return coshell.AIStatusFailed
	default:
		return coshell.AIStatusLoading
	}
}

// promptData is the data available to a custom system-prompt template,
// mirroring the teacher's text/template prompt-rendering approach.
type promptData struct {
	Cwd      string
	ExitCode int
	Output   string
}

// Engine orchestrates query handling for the backend. One Engine per
// backend process; Server (server.go) is responsible for the connection
// and cancellation model around it.
type Engine struct {
	mu       sync.Mutex
	provider Provider
	cwd      string

	status     atomic.Int32
	verbosity  atomic.Int32
	providerID atomic.Value // string
	promptTmpl string
}

// NewEngine constructs an Engine with the given initial provider and
// provider identifier (e.g. "openai-compatible").
func NewEngine(provider Provider, providerID string) *Engine {
	e := &Engine{provider: provider, promptTmpl: defaults.DefaultPrompt}
	e.providerID.Store(providerID)
	if provider != nil {
		e.status.Store(int32(StatusReady))
	} else {
		e.status.Store(int32(StatusFailed))
	}
	return e
}

// Status reports the backend's current readiness (§4.2 status poll).
func (e *Engine) Status() coshell.AIStatus {
	return Status(e.status.Load()).toAIStatus()
}

// SetCwd updates the working directory queries are evaluated against. Must
// complete before any query that depends on it (§5 ordering guarantee).
func (e *Engine) SetCwd(cwd string) {
	e.mu.Lock()
	e.cwd = cwd
	e.mu.Unlock()
}

// SetVerbosity updates diagnostic verbosity only; it never changes query
// semantics (§4.2).
func (e *Engine) SetVerbosity(level int) {
	e.verbosity.Store(int32(level))
}

// SetProvider swaps the active identifier. Per §4.2 this takes effect on
// the next session; the running Engine records the identifier for status
// reporting but the actual Provider swap happens when the process restarts
// with the new configuration.
func (e *Engine) SetProvider(id string) {
	e.providerID.Store(id)
}

// ProviderID returns the currently configured provider identifier.
func (e *Engine) ProviderID() string {
	v, _ := e.providerID.Load().(string)
	return v
}

// Query translates a raw line (optionally with failure context) into a
// tagged AI result. ctx is cancelled by the caller on client disconnect
// (§4.2 concurrency model); Query must respect it at its suspension point.
func (e *Engine) Query(ctx context.Context, line string, failure *coshell.FailureContext) coshell.AIResult {
	e.mu.Lock()
	provider := e.provider
	cwd := e.cwd
	e.mu.Unlock()

	if provider == nil {
		return coshell.AIResult{Kind: coshell.AIResultText, Text: "AI backend not configured: set COSHELL_API_KEY"}
	}

	systemPrompt := e.buildSystemPrompt()
	userMessage := e.buildUserMessage(line, cwd, failure)

	output, err := provider.Generate(ctx, systemPrompt, userMessage)
	if err != nil {
		slog.Error("backend: generation failed", "error", err)
		return coshell.AIResult{Kind: coshell.AIResultText, Text: fmt.Sprintf("AI request failed: %v", err)}
	}

	kind, payload := parseAIResult(output)
	if kind == "cmd" {
		return coshell.AIResult{Kind: coshell.AIResultCommand, Command: payload}
	}
	return coshell.AIResult{Kind: coshell.AIResultText, Text: payload}
}

func (e *Engine) buildSystemPrompt() string {
	t, err := template.New("prompt").Parse(e.promptTmpl)
	if err != nil {
		slog.Warn("backend: failed to parse prompt template, using default", "error", err)
		t = template.Must(template.New("prompt").Parse(defaults.DefaultPrompt))
	}
	var buf strings.Builder
	if err := t.Execute(&buf, promptData{}); err != nil {
		slog.Warn("backend: failed to execute prompt template", "error", err)
		return defaults.DefaultPrompt
	}
	return buf.String()
}

func (e *Engine) buildUserMessage(line, cwd string, failure *coshell.FailureContext) string {
	var sb strings.Builder
	if cwd != "" {
		sb.WriteString("cwd: ")
		sb.WriteString(cwd)
		sb.WriteString("\n")
	}
	if failure != nil {
		sb.WriteString(fmt.Sprintf("exit code: %d\n", failure.ExitCode))
		if failure.OutputPath != "" {
			sb.WriteString("captured output path: ")
			sb.WriteString(failure.OutputPath)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\nrequest: ")
	sb.WriteString(line)
	return sb.String()
}
