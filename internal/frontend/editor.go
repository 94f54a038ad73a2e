// Package frontend implements the interactive REPL that owns the
// terminal: line editing, classification and dispatch, display, child
// supervision, and prompt rendering (§4.4).
package frontend

import (
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/term"
)

// Editor is a line editor with cursor tracking and history navigation. It
// reads from /dev/tty so it works even when stdout is redirected.
type Editor struct {
	tty      *os.File
	oldState *term.State
	buf      []byte
	pos      int

	history    []string
	historyPos int    // index into history while browsing; len(history) = not browsing
	savedLine  string // the in-progress line, preserved while browsing history
}

// ErrInterrupt is returned when the user presses Ctrl-C.
var ErrInterrupt = fmt.Errorf("interrupted")

// NewEditor opens /dev/tty and switches to raw mode.
func NewEditor(history []string) (*Editor, error) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("frontend: open /dev/tty: %w", err)
	}

	old, err := term.MakeRaw(int(tty.Fd()))
	if err != nil {
		tty.Close()
		return nil, fmt.Errorf("frontend: raw mode: %w", err)
	}

	return &Editor{tty: tty, oldState: old, history: history}, nil
}

// Close restores terminal state and closes the tty fd.
func (e *Editor) Close() {
	term.Restore(int(e.tty.Fd()), e.oldState)
	e.tty.Close()
}

// Tty returns the tty file for writing prompts/UI.
func (e *Editor) Tty() *os.File {
	return e.tty
}

// PushHistory appends a successfully-read line to the in-memory history
// used for Up/Down navigation in subsequent ReadLine calls.
func (e *Editor) PushHistory(line string) {
	e.history = append(e.history, line)
}

// ReadLine displays the prompt and reads a line with cursor tracking and
// history browsing. Returns io.EOF on Ctrl-D with an empty buffer.
func (e *Editor) ReadLine(prompt string) (text string, cursor int, err error) {
	e.buf = e.buf[:0]
	e.pos = 0
	e.historyPos = len(e.history)
	e.savedLine = ""
	e.redraw(prompt)

	var esc [8]byte

	for {
		var b [1]byte
		if _, err := e.tty.Read(b[:]); err != nil {
			return "", 0, err
		}

		switch b[0] {
		case 3: // Ctrl-C
			fmt.Fprintf(e.tty, "\r\n")
			return "", 0, ErrInterrupt

		case 4: // Ctrl-D
			if len(e.buf) == 0 {
				fmt.Fprintf(e.tty, "\r\n")
				return "", 0, io.EOF
			}

		case 13, 10: // Enter
			fmt.Fprintf(e.tty, "\r\n")
			return string(e.buf), e.pos, nil

		case 127, 8: // Backspace / Ctrl-H
			if e.pos > 0 {
				_, size := prevRune(e.buf, e.pos)
				copy(e.buf[e.pos-size:], e.buf[e.pos:])
				e.buf = e.buf[:len(e.buf)-size]
				e.pos -= size
			}

		case 1: // Ctrl-A (Home)
			e.pos = 0

		case 5: // Ctrl-E (End)
			e.pos = len(e.buf)

		case 21: // Ctrl-U (clear line)
			e.buf = e.buf[:0]
			e.pos = 0

		case 27: // Escape sequence
			n, _ := e.tty.Read(esc[:1])
			if n == 0 {
				continue
			}
			if esc[0] == '[' {
				n, _ = e.tty.Read(esc[1:2])
				if n == 0 {
					continue
				}
				switch esc[1] {
				case 'D':
					if e.pos > 0 {
						_, size := prevRune(e.buf, e.pos)
						e.pos -= size
					}
				case 'C':
					if e.pos < len(e.buf) {
						_, size := utf8.DecodeRune(e.buf[e.pos:])
						e.pos += size
					}
				case 'H':
					e.pos = 0
				case 'F':
					e.pos = len(e.buf)
				case 'A': // Up: older history
					e.browseHistory(-1)
				case 'B': // Down: newer history
					e.browseHistory(1)
				case '3':
					e.tty.Read(esc[2:3])
					if e.pos < len(e.buf) {
						_, size := utf8.DecodeRune(e.buf[e.pos:])
						copy(e.buf[e.pos:], e.buf[e.pos+size:])
						e.buf = e.buf[:len(e.buf)-size]
					}
				case '1':
					e.tty.Read(esc[2:3])
					e.pos = 0
				case '4':
					e.tty.Read(esc[2:3])
					e.pos = len(e.buf)
				}
			}

		default:
			if b[0] >= 32 {
				ch := []byte{b[0]}
				if b[0] >= 0xC0 {
					extra := utf8RuneLen(b[0]) - 1
					tmp := make([]byte, extra)
					e.tty.Read(tmp)
					ch = append(ch, tmp...)
				}
				e.buf = append(e.buf, make([]byte, len(ch))...)
				copy(e.buf[e.pos+len(ch):], e.buf[e.pos:len(e.buf)-len(ch)])
				copy(e.buf[e.pos:], ch)
				e.pos += len(ch)
			}
		}

		e.redraw(prompt)
	}
}

func (e *Editor) browseHistory(delta int) {
	if len(e.history) == 0 {
		return
	}
	if e.historyPos == len(e.history) && delta < 0 {
		e.savedLine = string(e.buf)
	}
	newPos := e.historyPos + delta
	if newPos < 0 {
		newPos = 0
	}
	if newPos > len(e.history) {
		newPos = len(e.history)
	}
	e.historyPos = newPos

	var line string
	if e.historyPos == len(e.history) {
		line = e.savedLine
	} else {
		line = e.history[e.historyPos]
	}
	e.buf = []byte(line)
	e.pos = len(e.buf)
}

func (e *Editor) redraw(prompt string) {
	fmt.Fprintf(e.tty, "\r\x1b[K%s%s", prompt, string(e.buf))
	tailLen := runeCount(e.buf[e.pos:])
	if tailLen > 0 {
		fmt.Fprintf(e.tty, "\x1b[%dD", tailLen)
	}
}

func prevRune(buf []byte, pos int) (rune, int) {
	if pos <= 0 {
		return 0, 0
	}
	i := pos - 1
	for i > 0 && !utf8.RuneStart(buf[i]) {
		i--
	}
	r, size := utf8.DecodeRune(buf[i:pos])
	return r, size
}

func runeCount(b []byte) int {
	return utf8.RuneCount(b)
}

func utf8RuneLen(lead byte) int {
	if lead < 0xC0 {
		return 1
	}
	if lead < 0xE0 {
		return 2
	}
	if lead < 0xF0 {
		return 3
	}
	return 4
}
