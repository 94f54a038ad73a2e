package frontend

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultRestartBudget and DefaultRestartWindow implement "restarted up to
// K times per rolling window T" (§4.4 Supervisor).
const (
	DefaultRestartBudget = 3
	DefaultRestartWindow = 60 * time.Second
)

// ChildSpec describes one supervised child process.
type ChildSpec struct {
	Name    string
	Start   func(ctx context.Context) (*exec.Cmd, error)
	Healthy func(ctx context.Context) error
}

type childState struct {
	spec ChildSpec
	cmd  *exec.Cmd

	restarts     []time.Time // restart timestamps within the rolling window
	degraded     bool
	lastHealthy  bool
}

// Supervisor tracks liveness of Probe, Backend, and Middleware, restarting
// dead children up to a budget per rolling window before flagging the
// corresponding feature degraded (§4.4).
type Supervisor struct {
	mu       sync.Mutex
	children map[string]*childState
	order    []string
	budget   int
	window   time.Duration
}

// NewSupervisor constructs a Supervisor with the given restart budget.
func NewSupervisor(budget int, window time.Duration) *Supervisor {
	return &Supervisor{
		children: make(map[string]*childState),
		budget:   budget,
		window:   window,
	}
}

// Register adds a child to be started and supervised.
func (s *Supervisor) Register(spec ChildSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children[spec.Name] = &childState{spec: spec}
	s.order = append(s.order, spec.Name)
}

// StartAll launches every registered child.
func (s *Supervisor) StartAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range s.order {
		cs := s.children[name]
		cmd, err := cs.spec.Start(ctx)
		if err != nil {
			return fmt.Errorf("frontend: start %s: %w", name, err)
		}
		cs.cmd = cmd
		cs.lastHealthy = true
	}
	return nil
}

// CheckAll runs each child's health check concurrently (via errgroup) and
// restarts any that fail, respecting the restart budget. It returns the
// post-check health state per child name.
func (s *Supervisor) CheckAll(ctx context.Context) map[string]bool {
	s.mu.Lock()
	names := append([]string(nil), s.order...)
	checks := make(map[string]func(context.Context) error, len(names))
	for _, name := range names {
		checks[name] = s.children[name].spec.Healthy
	}
	s.mu.Unlock()

	results := make(map[string]error, len(names))
	var resultsMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		healthy := checks[name]
		g.Go(func() error {
			err := healthy(gctx)
			resultsMu.Lock()
			results[name] = err
			resultsMu.Unlock()
			return nil // never fail the group; we want every result
		})
	}
	g.Wait()

	out := make(map[string]bool, len(names))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		cs := s.children[name]
		err := results[name]
		if err == nil {
			cs.lastHealthy = true
			out[name] = true
			continue
		}

		slog.Warn("frontend: child unhealthy", "child", name, "error", err)
		if s.tryRestartLocked(ctx, cs) {
			cs.lastHealthy = true
			out[name] = true
		} else {
			cs.lastHealthy = false
			cs.degraded = true
			out[name] = false
		}
	}
	return out
}

// tryRestartLocked attempts to restart cs, consuming one unit of the
// rolling restart budget. Caller must hold s.mu.
func (s *Supervisor) tryRestartLocked(ctx context.Context, cs *childState) bool {
	// A child that already exhausted its budget stays degraded for the rest
	// of the session, even once its old restarts leave the window.
	if cs.degraded && len(cs.restarts) >= s.budget {
		return false
	}

	now := timeNow()
	cutoff := now.Add(-s.window)
	kept := cs.restarts[:0]
	for _, t := range cs.restarts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	cs.restarts = kept

	if len(cs.restarts) >= s.budget {
		return false
	}

	cmd, err := cs.spec.Start(ctx)
	if err != nil {
		slog.Error("frontend: restart failed", "child", cs.spec.Name, "error", err)
		return false
	}
	cs.cmd = cmd
	cs.restarts = append(cs.restarts, now)
	cs.degraded = false
	slog.Info("frontend: restarted child", "child", cs.spec.Name, "attempt", len(cs.restarts))
	return true
}

// Degraded reports whether name's feature has exhausted its restart
// budget and should be treated as permanently unavailable this session.
func (s *Supervisor) Degraded(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.children[name]
	return ok && cs.degraded
}

// Healthy reports the last-observed health of name.
func (s *Supervisor) Healthy(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.children[name]
	return ok && cs.lastHealthy
}

// timeNow is a seam so tests can avoid real wall-clock dependence if
// needed; production always uses time.Now.
var timeNow = time.Now
