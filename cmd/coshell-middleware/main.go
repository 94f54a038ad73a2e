// Command coshell-middleware is the transparent bidirectional security
// proxy sitting between the front end and the backend. The front end
// dials this socket believing it is the backend.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	coshell "github.com/coshell-dev/coshell"
	"github.com/coshell-dev/coshell/internal/middleware"
	"github.com/coshell-dev/coshell/internal/security"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	verbose := flag.Bool("verbose", false, "log every validation decision")
	flag.Parse()

	if *showVersion {
		fmt.Println("coshell-middleware", Version)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := security.WriteDefaultPolicyFile(coshell.PolicyPath()); err != nil {
		slog.Warn("could not seed default policy file", "error", err)
	}
	policy, err := security.LoadPolicy(coshell.PolicyPath())
	if err != nil {
		slog.Error("failed to load security policy", "error", err)
		os.Exit(1)
	}

	socketPath := resolveMiddlewareSocketPath()
	backendSocketPath := resolveBackendSocketPath()
	slog.Info("starting", "socket", socketPath, "backend", backendSocketPath)

	proxy, err := middleware.NewProxy(socketPath, backendSocketPath, policy)
	if err != nil {
		slog.Error("failed to start middleware proxy", "error", err)
		os.Exit(1)
	}
	defer proxy.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		proxy.Close()
		os.Exit(0)
	}()

	slog.Info("ready")
	if err := proxy.Serve(); err != nil {
		slog.Error("middleware proxy error", "error", err)
		os.Exit(1)
	}
}

func resolveMiddlewareSocketPath() string {
	if path := os.Getenv("COSHELL_MIDDLEWARE_SOCKET"); path != "" {
		return path
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir + "/coshell-middleware.sock"
	}
	return fmt.Sprintf("/tmp/coshell-middleware-%d.sock", os.Getuid())
}

func resolveBackendSocketPath() string {
	if path := os.Getenv("COSHELL_BACKEND_SOCKET"); path != "" {
		return path
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir + "/coshell-backend.sock"
	}
	return fmt.Sprintf("/tmp/coshell-backend-%d.sock", os.Getuid())
}
