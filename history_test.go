package coshell

import (
	"path/filepath"
	"testing"
)

func TestHistoryAppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.log")

	h, err := OpenHistory(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, line := range []string{"ls -la", "cd /tmp", "git status"} {
		if err := h.Append(line); err != nil {
			t.Fatal(err)
		}
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}

	lines, err := ReadHistory(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"cd /tmp", "git status"}
	if len(lines) != len(want) {
		t.Fatalf("got %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("lines[%d] = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestReadHistoryMissingFile(t *testing.T) {
	lines, err := ReadHistory(filepath.Join(t.TempDir(), "nope.log"), 10)
	if err != nil {
		t.Fatal(err)
	}
	if lines != nil {
		t.Errorf("expected nil, got %v", lines)
	}
}
