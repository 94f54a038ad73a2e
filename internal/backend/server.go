package backend

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"os"

	"github.com/coshell-dev/coshell"
	"github.com/coshell-dev/coshell/internal/wire"
)

// Server exposes an Engine over a Unix domain socket using the wire-level
// grammar of §6. Per §5, the backend serves one connected client (the
// middleware) with a single-threaded cooperative scheduler: one request in
// flight at a time, but a long AI call must remain cancellable by client
// disconnect.
type Server struct {
	listener net.Listener
	sockPath string
	engine   *Engine
}

// NewServer binds a backend server to sockPath.
func NewServer(sockPath string, engine *Engine) (*Server, error) {
	if err := os.Remove(sockPath); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		return nil, err
	}
	return &Server{listener: listener, sockPath: sockPath, engine: engine}, nil
}

// Serve accepts connections until the listener closes. Only the middleware
// is expected to connect, and only one connection at a time carries
// meaningful traffic, but accepting concurrently keeps a stale connection
// from wedging the socket.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

// Close shuts down the listener and removes the socket file.
func (s *Server) Close() {
	s.listener.Close()
	os.Remove(s.sockPath)
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A disconnect must cancel any in-flight AI call (§4.2). The reader
	// goroutine keeps reading while Query runs, so the moment Scan returns
	// false (EOF or error) it cancels ctx and any blocked Query returns.
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lines := make(chan string)
	go func() {
		defer cancel()
		defer close(lines)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for line := range lines {
		if line == "" {
			continue
		}
		reply := s.handleLine(ctx, line)
		if _, err := conn.Write([]byte(reply + "\n")); err != nil {
			slog.Warn("backend: write failed", "error", err)
			return
		}
	}
}

func (s *Server) handleLine(ctx context.Context, line string) string {
	msg, err := wire.ParseClientMessage(line)
	if err != nil {
		slog.Warn("backend: malformed request", "line", line, "error", err)
		return wire.ProxyMessage{Kind: wire.ProxyAIFailed}.Encode()
	}

	switch msg.Kind {
	case wire.ClientStatus:
		return statusReply(s.engine.Status())

	case wire.ClientCwd:
		s.engine.SetCwd(msg.Cwd)
		return wire.ProxyMessage{Kind: wire.ProxyOK}.Encode()

	case wire.ClientVerbose:
		s.engine.SetVerbosity(msg.VerbosityLevel)
		return wire.ProxyMessage{Kind: wire.ProxyOK}.Encode()

	case wire.ClientAIProvider:
		s.engine.SetProvider(msg.Provider)
		return wire.ProxyMessage{Kind: wire.ProxyOK}.Encode()

	case wire.ClientQuery:
		result := s.engine.Query(ctx, msg.Query, nil)
		return resultToWire(result)

	case wire.ClientBashFailed:
		failure := &coshell.FailureContext{ExitCode: msg.ExitCode, OutputPath: msg.OutputPath}
		result := s.engine.Query(ctx, msg.Query, failure)
		return resultToWire(result)

	default:
		return wire.ProxyMessage{Kind: wire.ProxyAIFailed}.Encode()
	}
}

func statusReply(status coshell.AIStatus) string {
	switch status {
	case coshell.AIStatusReady:
		return wire.ProxyMessage{Kind: wire.ProxyAIReady}.Encode()
	case coshell.AIStatusFailed:
		return wire.ProxyMessage{Kind: wire.ProxyAIFailed}.Encode()
	default:
		return wire.ProxyMessage{Kind: wire.ProxyAILoading}.Encode()
	}
}

func resultToWire(result coshell.AIResult) string {
	if result.Kind == coshell.AIResultCommand {
		return wire.ProxyMessage{Kind: wire.ProxyCommand, Command: result.Command}.Encode()
	}
	return wire.ProxyMessage{Kind: wire.ProxyEdit, Text: result.Text}.Encode()
}
