package middleware

import (
	"bufio"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/coshell-dev/coshell/internal/security"
)

// stubBackend answers fixed per-request-prefix replies, standing in for
// the real backend so the proxy's policy and relay logic can be tested in
// isolation.
func stubBackend(t *testing.T, sockPath string, reply func(line string) string) net.Listener {
	t.Helper()
	l, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				scanner := bufio.NewScanner(c)
				for scanner.Scan() {
					c.Write([]byte(reply(scanner.Text()) + "\n"))
				}
			}(conn)
		}
	}()
	return l
}

func testPolicy(t *testing.T) *security.Policy {
	t.Helper()
	p, err := security.LoadPolicy(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func newTestProxy(t *testing.T, reply func(string) string) (*Proxy, net.Conn) {
	t.Helper()
	dir := t.TempDir()
	backendSock := filepath.Join(dir, "backend.sock")
	middlewareSock := filepath.Join(dir, "middleware.sock")

	stubBackend(t, backendSock, reply)

	p, err := NewProxy(middlewareSock, backendSock, testPolicy(t))
	if err != nil {
		t.Fatal(err)
	}
	go p.Serve()
	t.Cleanup(p.Close)

	time.Sleep(50 * time.Millisecond)

	conn, err := net.Dial("unix", middlewareSock)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return p, conn
}

func sendAndRecv(t *testing.T, conn net.Conn, line string) string {
	t.Helper()
	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		t.Fatal(err)
	}
	reader := bufio.NewReader(conn)
	reply, err := reader.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	return trimNewline(reply)
}

func TestProxyForwardsSystemControlUnconditionally(t *testing.T) {
	_, conn := newTestProxy(t, func(line string) string { return "OK" })
	got := sendAndRecv(t, conn, "STATUS")
	if got != "OK" {
		t.Errorf("got %q", got)
	}
}

func TestProxyBlocksDangerousQueryBeforeReachingBackend(t *testing.T) {
	reached := false
	_, conn := newTestProxy(t, func(line string) string {
		reached = true
		return "OK"
	})
	got := sendAndRecv(t, conn, "QUERY:rm -rf /")
	if reached {
		t.Error("backend should never have seen the blocked query")
	}
	if got != "blocked:destructive-filesystem" {
		t.Errorf("got %q", got)
	}
}

func TestProxyAllowsBenignQuery(t *testing.T) {
	_, conn := newTestProxy(t, func(line string) string { return "cmd:kubectl get pods" })
	got := sendAndRecv(t, conn, "QUERY:please list the pods")
	if got != "cmd:kubectl get pods" {
		t.Errorf("got %q", got)
	}
}

func TestProxyBlocksSecretLeakInReply(t *testing.T) {
	_, conn := newTestProxy(t, func(line string) string {
		return "edit:your password=hunter2345 should still work"
	})
	got := sendAndRecv(t, conn, "QUERY:what was the db password")
	if got != "blocked:secret-exposure" {
		t.Errorf("got %q", got)
	}
}

func TestProxyBackendUnavailableSynthesizesBlock(t *testing.T) {
	dir := t.TempDir()
	middlewareSock := filepath.Join(dir, "middleware.sock")
	backendSock := filepath.Join(dir, "nonexistent-backend.sock")

	p, err := NewProxy(middlewareSock, backendSock, testPolicy(t))
	if err != nil {
		t.Fatal(err)
	}
	go p.Serve()
	defer p.Close()
	time.Sleep(50 * time.Millisecond)

	conn, err := net.Dial("unix", middlewareSock)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	got := sendAndRecv(t, conn, "STATUS")
	if got != "blocked:backend-unavailable" {
		t.Errorf("got %q", got)
	}
}

func TestProxyBlocksDangerousCommandInBashFailed(t *testing.T) {
	reached := false
	_, conn := newTestProxy(t, func(line string) string {
		reached = true
		return "cmd:git status"
	})
	// BASH_FAILED is always relayed as a message category, but the raw
	// failing command line it embeds is still a command and must clear
	// command policy like any other (§8 Invariant #2 names no exception).
	got := sendAndRecv(t, conn, "BASH_FAILED:127:rm -rf /:/tmp/out")
	if reached {
		t.Error("backend should never have seen the blocked BASH_FAILED command")
	}
	if got != "blocked:destructive-filesystem" {
		t.Errorf("got %q", got)
	}
}

func TestProxyForwardsBenignBashFailed(t *testing.T) {
	reached := false
	_, conn := newTestProxy(t, func(line string) string {
		reached = true
		return "cmd:git status"
	})
	got := sendAndRecv(t, conn, "BASH_FAILED:127:gti status:/tmp/out")
	if !reached {
		t.Error("expected a benign BASH_FAILED command to reach the backend")
	}
	if got != "cmd:git status" {
		t.Errorf("got %q", got)
	}
}
