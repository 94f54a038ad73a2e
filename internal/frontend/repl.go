package frontend

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	coshell "github.com/coshell-dev/coshell"
	"github.com/coshell-dev/coshell/internal/probe"
	"github.com/coshell-dev/coshell/internal/wire"
)

// simpleFastPathCommands skips the probe round trip entirely for cheap,
// well-known builtins (§4.4 supplement from awesh.c).
var simpleFastPathCommands = map[string]bool{
	"ls": true, "pwd": true, "whoami": true, "date": true,
	"echo": true, "clear": true, "true": true, "false": true,
}

// healthCheckEveryNPrompts is the supervisor's periodic cadence.
const healthCheckEveryNPrompts = 20

// REPL owns the terminal and runs the classify-dispatch state machine of
// §4.4, wiring together the line editor, probe client, middleware client,
// supervisor, and prompt renderer.
type REPL struct {
	editor     *Editor
	probe      *probe.Client
	middleware *MiddlewareClient
	supervisor *Supervisor
	prompt     *Prompt
	history    *coshell.HistoryWriter
	cfg        *coshell.Config

	cwd         string
	promptCount int
}

// NewREPL constructs a REPL from its already-started collaborators.
func NewREPL(editor *Editor, probeClient *probe.Client, middleware *MiddlewareClient, supervisor *Supervisor, history *coshell.HistoryWriter, cfg *coshell.Config, cwd string) *REPL {
	return &REPL{
		editor:     editor,
		probe:      probeClient,
		middleware: middleware,
		supervisor: supervisor,
		prompt:     NewPrompt(),
		history:    history,
		cfg:        cfg,
		cwd:        cwd,
	}
}

// Close releases the REPL's own resources (the prompt's branch cache).
// It does not close the editor, probe client, or middleware client, which
// the caller owns.
func (r *REPL) Close() {
	r.prompt.Close()
}

// Run drives the REPL until the user quits or EOFs.
func (r *REPL) Run() error {
	if err := r.middleware.SetCwd(r.cwd); err != nil {
		fmt.Fprintf(os.Stderr, "coshell: initial cwd sync failed: %v\n", err)
	}

	for {
		r.promptCount++
		if r.promptCount%healthCheckEveryNPrompts == 0 && r.supervisor != nil {
			r.supervisor.CheckAll(context.Background())
		}

		line, _, err := r.editor.ReadLine(r.renderPrompt())
		if err == io.EOF {
			return nil
		}
		if err == ErrInterrupt {
			continue
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.editor.PushHistory(line)
		if r.history != nil {
			r.history.Append(line)
		}

		if r.dispatch(line, 0) {
			return nil
		}
	}
}

func (r *REPL) renderPrompt() string {
	status := PromptState{Cwd: r.cwd, BackendRunning: true, BackendStatus: coshell.AIStatusReady, SecurityStarted: true, SecurityResponsive: true}
	if r.supervisor != nil {
		status.BackendRunning = r.supervisor.Healthy("backend")
		status.SecurityStarted = !r.supervisor.Degraded("middleware")
		status.SecurityResponsive = r.supervisor.Healthy("middleware")
	}
	return r.prompt.Render(status)
}

// dispatch runs the classification state machine for one line (§4.4). It
// returns true if the REPL should exit (handled by a quit control command).
func (r *REPL) dispatch(line string, depth int) bool {
	if IsBuiltin(line) {
		result := RunBuiltin(line, r.cfg, r.middleware)
		if result.Output != "" {
			fmt.Println(result.Output)
		}
		return result.Quit
	}

	if cmd, rest, ok := r.tryCd(line); ok {
		r.execCd(cmd, rest)
		return false
	}

	if IsStructuralOverride(line) {
		r.runTTY(line)
		return false
	}

	if simpleFastPathCommands[firstToken(line)] {
		r.execDirect(line)
		return false
	}

	verdict, err := r.probe.Probe(line)
	if err != nil {
		verdict.Kind = coshell.VerdictUnavailable
	}

	switch verdict.Kind {
	case coshell.VerdictOK:
		if verdict.ExitCode == 0 && verdict.Stderr == "" {
			fmt.Print(verdict.Stdout)
			return false
		}
		return r.failForward(line, verdict, depth)

	case coshell.VerdictInteractive:
		r.runTTY(line)
		return false

	case coshell.VerdictTimeout, coshell.VerdictUnavailable:
		r.execDirect(line)
		return false

	default:
		r.execDirect(line)
		return false
	}
}

// failForward implements state FAIL_FORWARD → AWAITING_AI (§4.4 item 5).
func (r *REPL) failForward(line string, verdict coshell.Verdict, depth int) bool {
	if !MeetsMinimumWordRule(line) {
		r.reportFailure(verdict)
		return false
	}

	outputPath, err := r.captureOutput(verdict)
	if err != nil {
		fmt.Fprintf(os.Stderr, "coshell: could not capture failure output: %v\n", err)
		r.reportFailure(verdict)
		return false
	}

	reply, err := r.middleware.BashFailed(line, verdict.ExitCode, outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "coshell: AI unavailable: %v\n", err)
		r.reportFailure(verdict)
		return false
	}

	return r.handleProxyReply(reply, depth)
}

func (r *REPL) handleProxyReply(reply wire.ProxyMessage, depth int) bool {
	switch reply.Kind {
	case wire.ProxyCommand:
		if depth >= maxRecursionDepth {
			fmt.Println(reply.Command)
			return false
		}
		return r.dispatch(reply.Command, depth+1)

	case wire.ProxyEdit:
		fmt.Println(reply.Text)
		return false

	case wire.ProxyBlocked:
		fmt.Fprintf(os.Stderr, "coshell: blocked: %s\n", reply.Reason)
		return false

	default:
		fmt.Fprintf(os.Stderr, "coshell: AI not ready\n")
		return false
	}
}

func (r *REPL) reportFailure(verdict coshell.Verdict) {
	if verdict.Stdout != "" {
		fmt.Print(verdict.Stdout)
	}
	if verdict.Stderr != "" {
		fmt.Fprint(os.Stderr, verdict.Stderr)
	}
	fmt.Fprintf(os.Stderr, "coshell: exit %d\n", verdict.ExitCode)
}

func (r *REPL) captureOutput(verdict coshell.Verdict) (string, error) {
	f, err := os.CreateTemp("", "coshell-failure-*.log")
	if err != nil {
		return "", err
	}
	defer f.Close()
	fmt.Fprint(f, verdict.Stdout)
	fmt.Fprint(f, verdict.Stderr)
	return f.Name(), nil
}

// runTTY hands the real TTY to line as a child process (Interactive
// verdict or structural override), matching the front end's ownership
// invariant: terminal fds return to the REPL before the next prompt.
func (r *REPL) runTTY(line string) {
	cmd := exec.Command("bash", "-c", line)
	cmd.Dir = r.cwd
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			fmt.Fprintf(os.Stderr, "coshell: %v\n", err)
		}
	}
}

// execDirect runs line directly without probing (Timeout/ProbeUnavailable
// degrade path, and the simple-command fast path).
func (r *REPL) execDirect(line string) {
	cmd := exec.Command("bash", "-c", line)
	cmd.Dir = r.cwd
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			fmt.Fprintf(os.Stderr, "coshell: %v\n", err)
		}
	}
}

// tryCd recognizes a leading "cd" so the front end — not the probe — owns
// working-directory changes (§3 invariant).
func (r *REPL) tryCd(line string) (cmd, rest string, ok bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "cd" {
		return "", "", false
	}
	if len(fields) == 1 {
		return "cd", "", true
	}
	return "cd", fields[1], true
}

func (r *REPL) execCd(_ string, rest string) {
	target := rest
	if target == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "coshell: cd: %v\n", err)
			return
		}
		target = home
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(r.cwd, target)
	}
	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		fmt.Fprintf(os.Stderr, "coshell: cd: %s: no such directory\n", rest)
		return
	}
	r.cwd = target
	if err := r.probe.Chdir(r.cwd); err != nil {
		fmt.Fprintf(os.Stderr, "coshell: probe cwd sync failed: %v\n", err)
	}
	if err := r.middleware.SetCwd(r.cwd); err != nil {
		fmt.Fprintf(os.Stderr, "coshell: backend cwd sync failed: %v\n", err)
	}
}
