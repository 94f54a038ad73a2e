package probe

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/coshell-dev/coshell"
)

func TestServerProbeRoundTrip(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "probe.sock")
	srv, err := NewServer(sockPath)
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()
	go srv.Serve()

	// Give the listener a moment to accept.
	time.Sleep(50 * time.Millisecond)

	client := NewClient(sockPath)
	v, err := client.Probe("echo hi")
	if err != nil {
		t.Fatal(err)
	}
	if v.Kind != coshell.VerdictOK || v.ExitCode != 0 {
		t.Fatalf("got %+v", v)
	}
}

func TestServerChdir(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "probe.sock")
	srv, err := NewServer(sockPath)
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()
	go srv.Serve()

	time.Sleep(50 * time.Millisecond)

	client := NewClient(sockPath)
	if err := client.Chdir("/tmp"); err != nil {
		t.Fatal(err)
	}
}

func TestServerMultipleSequentialRequests(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "probe.sock")
	srv, err := NewServer(sockPath)
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()
	go srv.Serve()

	time.Sleep(50 * time.Millisecond)

	client := NewClient(sockPath)
	for i := 0; i < 3; i++ {
		v, err := client.Probe("true")
		if err != nil {
			t.Fatal(err)
		}
		if v.Kind != coshell.VerdictOK || v.ExitCode != 0 {
			t.Fatalf("iteration %d: got %+v", i, v)
		}
	}
}
