// Package probe runs a persistent, non-interactive bash shell used to
// pre-test candidate command lines before the front end decides how to
// dispatch them (§4.1). The probe is an efficiency and safety device, not
// a security boundary: it tells the caller what a line would do, it never
// decides whether the line is allowed.
package probe

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/coshell-dev/coshell"
)

// DefaultTimeout bounds a single probe call before the underlying shell is
// presumed wedged and respawned.
const DefaultTimeout = 5 * time.Second

var ErrUnavailable = errors.New("probe: sandbox unavailable")

// Sandbox owns one persistent `bash --norc --noprofile` subprocess. All
// public methods are safe for concurrent use, but the probe is documented
// (§5) as single-threaded: one request in flight at a time is enforced by
// an internal mutex rather than relied upon from the caller.
type Sandbox struct {
	timeout time.Duration

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	stderr  *bufio.Reader
	ready   bool
	nextSeq uint64
}

// NewSandbox constructs a Sandbox and spawns its first shell.
func NewSandbox() (*Sandbox, error) {
	s := &Sandbox{timeout: DefaultTimeout}
	if err := s.spawn(); err != nil {
		return nil, err
	}
	return s, nil
}

// spawnLocked starts (or restarts) the underlying bash process. Caller must hold mu.
func (s *Sandbox) spawnLocked() error {
	cmd := exec.Command("bash", "--norc", "--noprofile")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("probe: stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("probe: stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("probe: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("probe: start bash: %w", err)
	}

	s.cmd = cmd
	s.stdin = stdin
	s.stdout = bufio.NewReader(stdoutPipe)
	s.stderr = bufio.NewReader(stderrPipe)
	s.ready = true

	if err := s.confirmReadyLocked(); err != nil {
		s.killLocked()
		return fmt.Errorf("probe: confirm sandbox ready: %w", err)
	}
	return nil
}

func (s *Sandbox) spawn() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spawnLocked()
}

// confirmReadyLocked round-trips a sentinel echo to confirm the freshly
// spawned shell is alive and accepting input. bash run non-interactively
// over piped stdio never writes a PS1 prompt, so there is nothing on
// stdout to wait for besides this sentinel.
func (s *Sandbox) confirmReadyLocked() error {
	seq := s.nextSequenceLocked()
	sentinel := sentinelFor(seq)
	if _, err := io.WriteString(s.stdin, fmt.Sprintf("echo %s $?\n", sentinel)); err != nil {
		return err
	}
	deadline := time.Now().Add(s.timeout)
	_, err := readUntilSentinel(s.stdout, sentinel, deadline)
	return err
}

func (s *Sandbox) nextSequenceLocked() uint64 {
	s.nextSeq++
	return s.nextSeq
}

func sentinelFor(seq uint64) string {
	return fmt.Sprintf("__COSHELL_DONE_%d__", seq)
}

func (s *Sandbox) killLocked() {
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
		s.cmd.Wait()
	}
	s.ready = false
}

// Close terminates the underlying shell.
func (s *Sandbox) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready && s.stdin != nil {
		io.WriteString(s.stdin, "exit\n")
		s.stdin.Close()
	}
	s.killLocked()
}

// Chdir keeps the probe's working directory in sync with the front end's,
// out of band from any probed command (§4.1).
func (s *Sandbox) Chdir(ctx context.Context, path string) error {
	v, err := s.Probe(ctx, "cd "+path)
	if err != nil {
		return err
	}
	if v.Kind != coshell.VerdictOK || v.ExitCode != 0 {
		return fmt.Errorf("probe: chdir %q failed: %s", path, v.Stderr)
	}
	return nil
}

// Probe runs line to completion in the sandbox and reports a verdict. It
// never returns an error for a failing command — command failure is
// reported via Verdict.ExitCode/Stderr; Probe's error return is reserved
// for sandbox-level failure (ErrUnavailable).
func (s *Sandbox) Probe(ctx context.Context, line string) (coshell.Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		if err := s.spawnLocked(); err != nil {
			return coshell.Verdict{Kind: coshell.VerdictUnavailable}, ErrUnavailable
		}
	}

	seq := s.nextSequenceLocked()
	sentinel := sentinelFor(seq)

	// The sentinel line captures the exit code of `line` via $?, which is
	// why it must be emitted as a separate statement immediately after.
	fullCmd := fmt.Sprintf("%s\necho %s $?\n", line, sentinel)
	if _, err := io.WriteString(s.stdin, fullCmd); err != nil {
		slog.Warn("probe: write failed, respawning", "error", err)
		s.killLocked()
		return coshell.Verdict{Kind: coshell.VerdictUnavailable}, ErrUnavailable
	}

	deadline := time.Now().Add(s.timeout)
	result, err := s.readVerdictLocked(sentinel, deadline)
	if err != nil {
		if errors.Is(err, errInteractive) {
			// The launched program relinquished control without producing
			// any output at all — the signature of a program that requires
			// a TTY (§4.1). It is still sitting in the sandbox's bash
			// waiting on stdin that will never arrive, so the shell must be
			// respawned same as after a genuine timeout.
			slog.Debug("probe: no output before timeout, treating as interactive", "line", line)
			s.killLocked()
			s.spawnLocked()
			return coshell.Verdict{Kind: coshell.VerdictInteractive}, nil
		}
		if errors.Is(err, errTimeout) {
			slog.Warn("probe: command timed out, respawning", "line", line)
			s.killLocked()
			s.spawnLocked()
			return coshell.Verdict{Kind: coshell.VerdictTimeout}, nil
		}
		slog.Warn("probe: read failed, respawning", "error", err)
		s.killLocked()
		return coshell.Verdict{Kind: coshell.VerdictUnavailable}, ErrUnavailable
	}
	return result, nil
}

var errTimeout = errors.New("probe: timeout")
var errInteractive = errors.New("probe: no output before deadline")

// readVerdictLocked reads stdout/stderr until the sentinel line appears on
// stdout, or the deadline passes. A command that is still running but has
// produced at least one byte of output by the deadline is a genuine
// Timeout; a command that has produced nothing at all — not even a
// partial, unterminated line sitting in the pipe buffer — has relinquished
// control silently, which is the signature of a program that requires a
// TTY (§4.1), matching `awesh.c`'s `test_command_in_sandbox` heuristic of
// treating "no output before the deadline" as the interactive case
// (original_source/awesh/awesh.c).
func (s *Sandbox) readVerdictLocked(sentinel string, deadline time.Time) (coshell.Verdict, error) {
	var stdoutBuf, stderrBuf bytes.Buffer

	stdoutLines := make(chan readResult, 1)
	go s.readLinesUntilSentinel(s.stdout, sentinel, stdoutLines)

	noOutputYet := func() bool {
		return stdoutBuf.Len() == 0 && stderrBuf.Len() == 0 &&
			s.stdout.Buffered() == 0 && s.stderr.Buffered() == 0
	}

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			if noOutputYet() {
				return coshell.Verdict{}, errInteractive
			}
			return coshell.Verdict{}, errTimeout
		}

		select {
		case res := <-stdoutLines:
			if res.err != nil {
				return coshell.Verdict{}, res.err
			}
			if exitCode, ok := parseSentinelLine(res.line, sentinel); ok {
				stderrBuf.WriteString(s.drainAvailable(s.stderr))
				return coshell.Verdict{
					Kind:     coshell.VerdictOK,
					ExitCode: exitCode,
					Stdout:   stdoutBuf.String(),
					Stderr:   stderrBuf.String(),
				}, nil
			}
			stdoutBuf.WriteString(res.line)
			stdoutBuf.WriteByte('\n')
			go s.readLinesUntilSentinel(s.stdout, sentinel, stdoutLines)

		case <-time.After(remaining):
			if noOutputYet() {
				return coshell.Verdict{}, errInteractive
			}
			return coshell.Verdict{}, errTimeout
		}
	}
}

type readResult struct {
	line string
	err  error
}

func (s *Sandbox) readLinesUntilSentinel(r *bufio.Reader, sentinel string, out chan<- readResult) {
	line, err := r.ReadString('\n')
	out <- readResult{strings.TrimRight(line, "\n"), err}
}

func (s *Sandbox) drainAvailable(r *bufio.Reader) string {
	var buf bytes.Buffer
	for r.Buffered() > 0 {
		b, err := r.ReadByte()
		if err != nil {
			break
		}
		buf.WriteByte(b)
	}
	return buf.String()
}

func parseSentinelLine(line, sentinel string) (int, bool) {
	if !strings.HasPrefix(line, sentinel+" ") {
		return 0, false
	}
	var code int
	if _, err := fmt.Sscanf(strings.TrimPrefix(line, sentinel+" "), "%d", &code); err != nil {
		return 0, false
	}
	return code, true
}

// readUntilSentinel is used only during startup readiness confirmation,
// where a synchronous blocking read is acceptable (no caller-supplied
// deadline besides the shared sandbox timeout).
func readUntilSentinel(r *bufio.Reader, sentinel string, deadline time.Time) (string, error) {
	var buf bytes.Buffer
	for time.Now().Before(deadline) {
		line, err := r.ReadString('\n')
		buf.WriteString(line)
		if err != nil {
			return buf.String(), err
		}
		if strings.HasPrefix(strings.TrimRight(line, "\n"), sentinel+" ") {
			return buf.String(), nil
		}
	}
	return buf.String(), errTimeout
}
