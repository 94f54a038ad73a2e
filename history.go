package coshell

import (
	"bufio"
	"os"
)

// HistoryWriter appends executed lines to the command history file.
// It is the only writer of persisted state the core requires (§6).
type HistoryWriter struct {
	f *os.File
}

// OpenHistory opens (creating if necessary) the history file at path for
// appending.
func OpenHistory(path string) (*HistoryWriter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &HistoryWriter{f: f}, nil
}

// Append writes one line to the history file.
func (h *HistoryWriter) Append(line string) error {
	_, err := h.f.WriteString(line + "\n")
	return err
}

// Close closes the underlying file.
func (h *HistoryWriter) Close() error {
	return h.f.Close()
}

// ReadHistory returns the last n lines of the history file at path, oldest
// first. A missing file yields an empty slice, not an error.
func ReadHistory(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
