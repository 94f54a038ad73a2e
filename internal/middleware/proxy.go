// Package middleware implements the transparent bidirectional proxy of
// §4.3: the front end dials it believing it is the backend, while the
// middleware holds the real upstream connection to the backend and
// enforces command/response policy on everything that crosses.
package middleware

import (
	"bufio"
	"log/slog"
	"net"
	"os"

	"github.com/coshell-dev/coshell/internal/security"
	"github.com/coshell-dev/coshell/internal/wire"
)

// maxReplyBytes bounds a single buffered backend reply; oversize replies
// are replaced with a synthetic block rather than relayed unbounded.
const maxReplyBytes = 1 << 20 // 1 MiB

// Proxy is the middleware server.
type Proxy struct {
	listener net.Listener
	sockPath string
	policy   *security.Policy
	upstream *upstream
	stats    *statsWindow
}

// NewProxy binds a middleware proxy on sockPath, policing traffic with
// policy and relaying to the backend listening on backendSockPath.
func NewProxy(sockPath, backendSockPath string, policy *security.Policy) (*Proxy, error) {
	if err := os.Remove(sockPath); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		return nil, err
	}
	return &Proxy{
		listener: listener,
		sockPath: sockPath,
		policy:   policy,
		upstream: newUpstream(backendSockPath),
		stats:    newStatsWindow(),
	}, nil
}

// Serve accepts front-end connections until the listener closes.
func (p *Proxy) Serve() error {
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			return err
		}
		go p.handleConn(conn)
	}
}

// Close releases the listener, upstream connection, and stats window.
func (p *Proxy) Close() {
	p.upstream.Close()
	p.stats.Close()
	p.listener.Close()
	os.Remove(p.sockPath)
}

// Stats returns a diagnostic snapshot of recent traffic (never part of
// any correctness decision).
func (p *Proxy) Stats() Snapshot {
	return p.stats.Snapshot()
}

// handleConn serves one front-end connection strictly FIFO (§4.3
// Ordering): each line is fully answered before the next is read.
func (p *Proxy) handleConn(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxReplyBytes)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		reply := p.handleLine(line)
		if _, err := conn.Write([]byte(reply + "\n")); err != nil {
			slog.Warn("middleware: write to front end failed", "error", err)
			return
		}
	}
}

func (p *Proxy) handleLine(line string) string {
	// ClientBashFailed carries a raw failing command line in its Query the
	// same way ClientQuery does (§8 Invariant #2 names no exception for the
	// failure path): both must clear command policy before the backend
	// ever sees them. Only the message envelope — not the embedded command
	// — is unconditionally relayed.
	if !security.IsSystemControl(line) {
		if msg, err := wire.ParseClientMessage(line); err == nil &&
			(msg.Kind == wire.ClientQuery || msg.Kind == wire.ClientBashFailed) {
			verdict := p.policy.CheckCommand(msg.Query)
			if !verdict.Allowed {
				p.stats.RecordBlocked(verdict.Reason)
				return wire.ProxyMessage{Kind: wire.ProxyBlocked, Reason: verdict.Reason}.Encode()
			}
		}
	}

	reply, err := p.upstream.Call(line)
	if err != nil {
		slog.Warn("middleware: upstream call failed", "error", err)
		p.stats.RecordBlocked("backend-unavailable")
		return wire.ProxyMessage{Kind: wire.ProxyBlocked, Reason: "backend-unavailable"}.Encode()
	}

	if len(reply) > maxReplyBytes {
		p.stats.RecordBlocked("oversize")
		return wire.ProxyMessage{Kind: wire.ProxyBlocked, Reason: "oversize"}.Encode()
	}

	if parsed, err := wire.ParseProxyMessage(reply); err == nil &&
		(parsed.Kind == wire.ProxyCommand || parsed.Kind == wire.ProxyEdit) {
		text := parsed.Text
		if parsed.Kind == wire.ProxyCommand {
			text = parsed.Command
		}
		rv := p.policy.CheckReply(parsed.Command, text)
		if !rv.Allowed {
			p.stats.RecordBlocked(rv.Reason)
			return wire.ProxyMessage{Kind: wire.ProxyBlocked, Reason: rv.Reason}.Encode()
		}
	}

	p.stats.RecordAllowed()
	return reply
}
