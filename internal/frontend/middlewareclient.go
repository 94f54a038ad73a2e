package frontend

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/coshell-dev/coshell/internal/wire"
)

// MiddlewareClient is the front end's single logical stream to what it
// believes is the backend (actually the middleware, §4.3). One persistent
// connection is held and reconnected lazily; all calls are strictly FIFO
// because Call holds the lock for the full request/response round trip.
type MiddlewareClient struct {
	sockPath string
	timeout  time.Duration

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// NewMiddlewareClient returns a client dialing sockPath on first use.
func NewMiddlewareClient(sockPath string) *MiddlewareClient {
	return &MiddlewareClient{sockPath: sockPath, timeout: 10 * time.Minute}
}

func (c *MiddlewareClient) ensureConnectedLocked() error {
	if c.conn != nil {
		return nil
	}
	conn, err := net.DialTimeout("unix", c.sockPath, 5*time.Second)
	if err != nil {
		return fmt.Errorf("frontend: dial middleware: %w", err)
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

func (c *MiddlewareClient) call(line string) (wire.ProxyMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnectedLocked(); err != nil {
		return wire.ProxyMessage{}, err
	}
	c.conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := fmt.Fprintf(c.conn, "%s\n", line); err != nil {
		c.closeLocked()
		return wire.ProxyMessage{}, fmt.Errorf("frontend: write to middleware: %w", err)
	}
	raw, err := c.reader.ReadString('\n')
	if err != nil {
		c.closeLocked()
		return wire.ProxyMessage{}, fmt.Errorf("frontend: read from middleware: %w", err)
	}
	return wire.ParseProxyMessage(trimNewline(raw))
}

func (c *MiddlewareClient) closeLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.reader = nil
	}
}

// Close releases the underlying connection.
func (c *MiddlewareClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

// Status polls AI readiness.
func (c *MiddlewareClient) Status() (wire.ProxyMessage, error) {
	return c.call("STATUS")
}

// SetCwd informs the backend of the front end's working directory. Must
// complete before any dependent query is sent (§5).
func (c *MiddlewareClient) SetCwd(path string) error {
	_, err := c.call(wire.ClientMessage{Kind: wire.ClientCwd, Cwd: path}.Encode())
	return err
}

// SetVerbosity updates diagnostic verbosity only.
func (c *MiddlewareClient) SetVerbosity(level int) error {
	_, err := c.call(wire.ClientMessage{Kind: wire.ClientVerbose, VerbosityLevel: level}.Encode())
	return err
}

// SetProvider requests a provider switch, effective next session.
func (c *MiddlewareClient) SetProvider(id string) error {
	_, err := c.call(wire.ClientMessage{Kind: wire.ClientAIProvider, Provider: id}.Encode())
	return err
}

// Query forwards a natural-language line for AI interpretation.
func (c *MiddlewareClient) Query(line string) (wire.ProxyMessage, error) {
	return c.call(wire.ClientMessage{Kind: wire.ClientQuery, Query: line}.Encode())
}

// BashFailed forwards a failure-context query (§4.4 item 5).
func (c *MiddlewareClient) BashFailed(line string, exitCode int, outputPath string) (wire.ProxyMessage, error) {
	return c.call(wire.ClientMessage{
		Kind:       wire.ClientBashFailed,
		Query:      line,
		ExitCode:   exitCode,
		OutputPath: outputPath,
	}.Encode())
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
