// Command coshell is the interactive front end: it owns the terminal,
// classifies and dispatches each line, supervises the probe, backend, and
// middleware children, and renders the status prompt.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	coshell "github.com/coshell-dev/coshell"
	"github.com/coshell-dev/coshell/internal/frontend"
	"github.com/coshell-dev/coshell/internal/probe"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	verbose := flag.Bool("verbose", false, "log classification and dispatch decisions")
	flag.Parse()

	if *showVersion {
		fmt.Println("coshell", Version)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar})))

	cfg, err := coshell.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		slog.Error("failed to resolve cwd", "error", err)
		os.Exit(1)
	}

	history, err := coshell.OpenHistory(coshell.HistoryPath())
	if err != nil {
		slog.Error("failed to open history", "error", err)
		os.Exit(1)
	}
	defer history.Close()

	histLines, err := coshell.ReadHistory(coshell.HistoryPath(), 1000)
	if err != nil {
		slog.Warn("failed to read history", "error", err)
	}

	editor, err := frontend.NewEditor(histLines)
	if err != nil {
		slog.Error("failed to initialize terminal", "error", err)
		os.Exit(1)
	}
	defer editor.Close()

	probeSocket := resolveSocketPath("COSHELL_PROBE_SOCKET", "coshell-probe.sock")
	middlewareSocket := resolveSocketPath("COSHELL_MIDDLEWARE_SOCKET", "coshell-middleware.sock")
	backendSocket := resolveSocketPath("COSHELL_BACKEND_SOCKET", "coshell-backend.sock")

	supervisor := frontend.NewSupervisor(frontend.DefaultRestartBudget, frontend.DefaultRestartWindow)
	registerChild(supervisor, "probe", "coshell-probe", probeSocket)
	registerChild(supervisor, "backend", "coshell-backend", backendSocket)
	registerChild(supervisor, "middleware", "coshell-middleware", middlewareSocket)

	if err := supervisor.StartAll(context.Background()); err != nil {
		slog.Error("failed to start supervised children", "error", err)
	}
	// Give children a moment to bind their sockets before the first dial.
	time.Sleep(300 * time.Millisecond)

	probeClient := probe.NewClient(probeSocket)
	middlewareClient := frontend.NewMiddlewareClient(middlewareSocket)
	defer middlewareClient.Close()

	repl := frontend.NewREPL(editor, probeClient, middlewareClient, supervisor, history, cfg, cwd)
	defer repl.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		editor.Close()
		os.Exit(0)
	}()

	if err := repl.Run(); err != nil {
		slog.Error("repl exited with error", "error", err)
		os.Exit(1)
	}
}

// registerChild wires a supervised child whose liveness check is a cheap
// socket dial rather than a PID signal: what matters to the front end is
// whether the socket answers. The child is always started by the front
// end; the *_SOCKET environment variables only choose the socket paths.
func registerChild(s *frontend.Supervisor, name, binary, sockPath string) {
	s.Register(frontend.ChildSpec{
		Name: name,
		Start: func(ctx context.Context) (*exec.Cmd, error) {
			cmd := exec.CommandContext(context.Background(), binary)
			cmd.Stderr = os.Stderr
			if err := cmd.Start(); err != nil {
				return nil, fmt.Errorf("start %s: %w", binary, err)
			}
			return cmd, nil
		},
		Healthy: func(ctx context.Context) error {
			conn, err := net.DialTimeout("unix", sockPath, 500*time.Millisecond)
			if err != nil {
				return err
			}
			return conn.Close()
		},
	})
}

func resolveSocketPath(env, filename string) string {
	if path := os.Getenv(env); path != "" {
		return path
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir + "/" + filename
	}
	return fmt.Sprintf("/tmp/%s-%d.sock", strings.TrimSuffix(filename, ".sock"), os.Getuid())
}
