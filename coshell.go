// Package coshell defines the shared data model for the coshell mediation
// pipeline: the probe verdict, the backend's AI result grammar, and the
// security verdict the middleware derives from both. These types are the
// in-memory counterparts of the wire grammar in internal/wire; they are
// never persisted.
package coshell

// Verdict is the probe's classification of a candidate command line.
// Exactly one of its fields is meaningful, selected by Kind.
type Verdict struct {
	Kind VerdictKind

	// ExitCode, Stdout, Stderr are populated when Kind == VerdictOK.
	ExitCode int
	Stdout   string
	Stderr   string
}

// VerdictKind tags the probe's classification of a command line.
type VerdictKind int

const (
	// VerdictOK means the command ran to completion; ExitCode/Stdout/Stderr
	// are populated.
	VerdictOK VerdictKind = iota
	// VerdictInteractive means the command produced no output at all before
	// the probe's bounded wait elapsed — taken as the signature of a program
	// that wants a TTY. No shell-prompt comparison is involved.
	VerdictInteractive
	// VerdictTimeout means the probe's bounded wait elapsed with no sentinel
	// after the command had produced some output.
	VerdictTimeout
	// VerdictUnavailable means the probe child is dead or its pipes errored.
	VerdictUnavailable
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictOK:
		return "ok"
	case VerdictInteractive:
		return "interactive"
	case VerdictTimeout:
		return "timeout"
	case VerdictUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Failed reports whether the verdict represents command failure worth
// escalating to the AI backend: either a nonzero exit or non-empty stderr.
func (v Verdict) Failed() bool {
	return v.Kind == VerdictOK && (v.ExitCode != 0 || v.Stderr != "")
}

// AIResultKind tags the backend's classification of a natural-language query.
type AIResultKind int

const (
	// AIResultCommand means the backend suggests a shell command.
	AIResultCommand AIResultKind = iota
	// AIResultText means the backend has informational text to display.
	AIResultText
)

// AIResult is the backend's answer to a natural-language query: either a
// command the user is invited to run, or text to display verbatim.
type AIResult struct {
	Kind    AIResultKind
	Command string // populated when Kind == AIResultCommand
	Text    string // populated when Kind == AIResultText
}

// AIStatus is the backend's coarse readiness state, polled cheaply by the
// front end for prompt rendering.
type AIStatus int

const (
	AIStatusLoading AIStatus = iota
	AIStatusReady
	AIStatusFailed
)

func (s AIStatus) String() string {
	switch s {
	case AIStatusLoading:
		return "loading"
	case AIStatusReady:
		return "ready"
	case AIStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SecurityVerdict is the middleware's bidirectional policy decision: a
// command before it reaches the backend, or a reply before it reaches the
// front end.
type SecurityVerdict struct {
	Allowed bool
	Reason  string // populated when !Allowed
	Warning string // optional, non-blocking annotation even when Allowed
}

// Allow constructs an allowing verdict, optionally carrying a non-blocking
// warning for display at higher verbosity.
func Allow(warning string) SecurityVerdict {
	return SecurityVerdict{Allowed: true, Warning: warning}
}

// Block constructs a blocking verdict with the given reason.
func Block(reason string) SecurityVerdict {
	return SecurityVerdict{Allowed: false, Reason: reason}
}

// FailureContext accompanies a query forwarded after a command failed in
// the probe, so the backend can explain or propose a fix.
type FailureContext struct {
	ExitCode   int
	OutputPath string // path to the captured combined stdout+stderr
}
