// Command coshell-backend owns the single AI-provider session and answers
// status, working-directory, and natural-language queries from whatever
// believes it is talking to it directly (in practice, the middleware).
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	coshell "github.com/coshell-dev/coshell"
	"github.com/coshell-dev/coshell/internal/backend"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	verbose := flag.Bool("verbose", false, "log every request and response")
	flag.Parse()

	if *showVersion {
		fmt.Println("coshell-backend", Version)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := coshell.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	provider := newProvider(cfg)
	engine := backend.NewEngine(provider, cfg.Provider)

	socketPath := resolveSocketPath()
	slog.Info("starting", "socket", socketPath, "provider", cfg.Provider, "model", cfg.Model)

	srv, err := backend.NewServer(socketPath, engine)
	if err != nil {
		slog.Error("failed to start backend server", "error", err)
		os.Exit(1)
	}
	defer srv.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		srv.Close()
		os.Exit(0)
	}()

	slog.Info("ready", "status", engine.Status())
	if err := srv.Serve(); err != nil {
		slog.Error("backend server error", "error", err)
		os.Exit(1)
	}
}

// newProvider resolves the one concrete Provider the core ships. A missing
// API key degrades the engine to AIStatusFailed rather than refusing to
// start: STATUS polls (and the front end's `:coshell status` control
// command) report it as failed, and queries get an explanatory edit: reply.
// The front end's prompt glyph is not derived from this status.
func newProvider(cfg *coshell.Config) backend.Provider {
	apiKey := coshell.ResolveProviderAPIKey()
	if apiKey == "" {
		slog.Warn("no API key configured; backend will report failed status", "env", "COSHELL_API_KEY")
		return nil
	}
	baseURL := coshell.ResolveProviderBaseURL()
	return backend.NewOpenAICompatibleProvider(baseURL, apiKey, cfg.Model)
}

func resolveSocketPath() string {
	if path := os.Getenv("COSHELL_BACKEND_SOCKET"); path != "" {
		return path
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir + "/coshell-backend.sock"
	}
	return fmt.Sprintf("/tmp/coshell-backend-%d.sock", os.Getuid())
}
