package probe

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"github.com/coshell-dev/coshell"
	"github.com/coshell-dev/coshell/internal/wire"
)

// Client is the front end's handle to a probe server over a Unix socket.
// Each call opens a fresh connection: the probe is cheap to dial and this
// keeps the client free of any half-open-connection bookkeeping.
type Client struct {
	sockPath string
	timeout  time.Duration
}

// NewClient returns a probe client dialing sockPath.
func NewClient(sockPath string) *Client {
	return &Client{sockPath: sockPath, timeout: DefaultTimeout + 2*time.Second}
}

// Probe asks the probe server to run line and returns its verdict.
func (c *Client) Probe(line string) (coshell.Verdict, error) {
	return c.call(line)
}

// Chdir keeps the probe's working directory synchronized with the front
// end's current directory.
func (c *Client) Chdir(path string) error {
	_, err := c.call("CD:" + path)
	return err
}

func (c *Client) call(line string) (coshell.Verdict, error) {
	conn, err := net.DialTimeout("unix", c.sockPath, c.timeout)
	if err != nil {
		return coshell.Verdict{Kind: coshell.VerdictUnavailable}, fmt.Errorf("probe client: dial: %w", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		return coshell.Verdict{Kind: coshell.VerdictUnavailable}, fmt.Errorf("probe client: write: %w", err)
	}

	reader := bufio.NewReader(conn)
	var raw string
	for i := 0; i < 3; i++ {
		l, err := reader.ReadString('\n')
		raw += l
		if err != nil {
			return coshell.Verdict{Kind: coshell.VerdictUnavailable}, fmt.Errorf("probe client: read: %w", err)
		}
	}

	parsed, err := wire.ParseProbeVerdictLines(raw)
	if err != nil {
		return coshell.Verdict{Kind: coshell.VerdictUnavailable}, err
	}
	return verdictFromWire(parsed), nil
}

func verdictFromWire(p wire.ParsedProbeVerdict) coshell.Verdict {
	switch p.ExitCode {
	case "INTERACTIVE":
		return coshell.Verdict{Kind: coshell.VerdictInteractive}
	case "TIMEOUT":
		return coshell.Verdict{Kind: coshell.VerdictTimeout}
	default:
		var code int
		fmt.Sscanf(p.ExitCode, "%d", &code)
		return coshell.Verdict{Kind: coshell.VerdictOK, ExitCode: code, Stdout: p.Stdout, Stderr: p.Stderr}
	}
}
