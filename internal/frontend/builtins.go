package frontend

import (
	"fmt"
	"strconv"
	"strings"

	coshell "github.com/coshell-dev/coshell"
	"github.com/coshell-dev/coshell/internal/wire"
)

// builtinPrefix namespaces front-end control commands so they can never
// collide with an ordinary shell command (§4.4). Control commands never go
// to the probe; status, verbosity and provider commands do talk to the
// backend through the front end's middleware connection (see RunBuiltin).
const builtinPrefix = ":coshell"

// BuiltinResult is the in-process reply to a control command.
type BuiltinResult struct {
	Output   string
	Handled  bool
	Quit     bool
}

// IsBuiltin reports whether line names a front-end control command.
func IsBuiltin(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), builtinPrefix)
}

// RunBuiltin executes a control command against cfg and the live client,
// returning output to print directly to the terminal. It never touches the
// backend or middleware sockets except through the provided client: a
// STATUS poll for `status`, and a VERBOSE:/AI_PROVIDER: update when
// `verbosity` or `provider` is given a new value. Help, quit, and the
// get forms of verbosity/provider are answered without any socket traffic.
func RunBuiltin(line string, cfg *coshell.Config, client *MiddlewareClient) BuiltinResult {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 || fields[0] != builtinPrefix {
		return BuiltinResult{}
	}
	args := fields[1:]
	if len(args) == 0 {
		return BuiltinResult{Handled: true, Output: helpText()}
	}

	switch args[0] {
	case "help":
		return BuiltinResult{Handled: true, Output: helpText()}

	case "quit", "exit":
		return BuiltinResult{Handled: true, Quit: true}

	case "status":
		return BuiltinResult{Handled: true, Output: statusText(client)}

	case "verbosity":
		return BuiltinResult{Handled: true, Output: verbosityCommand(args[1:], cfg, client)}

	case "provider":
		return BuiltinResult{Handled: true, Output: providerCommand(args[1:], cfg, client)}

	default:
		return BuiltinResult{Handled: true, Output: fmt.Sprintf("unknown control command: %s (try %s help)", args[0], builtinPrefix)}
	}
}

func helpText() string {
	return strings.Join([]string{
		builtinPrefix + " help                 show this message",
		builtinPrefix + " status               show backend/security health",
		builtinPrefix + " verbosity [0|1|2]    get or set diagnostic verbosity",
		builtinPrefix + " provider [name]      get or set the AI provider (restart to apply)",
		builtinPrefix + " quit                 exit coshell",
	}, "\n")
}

func statusText(client *MiddlewareClient) string {
	msg, err := client.Status()
	if err != nil {
		return fmt.Sprintf("backend status: unavailable (%v)", err)
	}
	switch msg.Kind {
	case wire.ProxyAIReady:
		return "backend status: ready"
	case wire.ProxyAILoading:
		return "backend status: loading"
	case wire.ProxyAIFailed:
		return "backend status: failed"
	default:
		return "backend status: unknown"
	}
}

func verbosityCommand(args []string, cfg *coshell.Config, client *MiddlewareClient) string {
	if len(args) == 0 {
		return fmt.Sprintf("verbosity: %d", cfg.Verbosity)
	}
	level, err := strconv.Atoi(args[0])
	if err != nil || level < 0 || level > 2 {
		return "verbosity must be 0, 1, or 2"
	}
	cfg.Verbosity = level
	if err := client.SetVerbosity(level); err != nil {
		return fmt.Sprintf("verbosity set locally but backend notification failed: %v", err)
	}
	if err := coshell.SaveConfig(cfg); err != nil {
		return fmt.Sprintf("verbosity set but not persisted: %v", err)
	}
	return fmt.Sprintf("verbosity set to %d", level)
}

func providerCommand(args []string, cfg *coshell.Config, client *MiddlewareClient) string {
	if len(args) == 0 {
		return fmt.Sprintf("provider: %s", cfg.Provider)
	}
	name := args[0]
	cfg.Provider = name
	if err := client.SetProvider(name); err != nil {
		return fmt.Sprintf("provider set locally but backend notification failed: %v", err)
	}
	if err := coshell.SaveConfig(cfg); err != nil {
		return fmt.Sprintf("provider set but not persisted: %v", err)
	}
	return fmt.Sprintf("provider set to %s (takes effect on next session)", name)
}
