package frontend

import (
	"strings"
	"testing"

	coshell "github.com/coshell-dev/coshell"
)

func TestBackendGlyphVocabulary(t *testing.T) {
	cases := []struct {
		running bool
		status  coshell.AIStatus
		want    string
	}{
		{false, coshell.AIStatusReady, "🚫"},
		{true, coshell.AIStatusLoading, "🤖"},
		{true, coshell.AIStatusReady, "🧠"},
		{true, coshell.AIStatusFailed, "💀"},
	}
	for _, c := range cases {
		if got := backendGlyph(c.running, c.status); got != c.want {
			t.Errorf("backendGlyph(%v, %v) = %q, want %q", c.running, c.status, got, c.want)
		}
	}
}

func TestSecurityGlyphVocabulary(t *testing.T) {
	cases := []struct {
		started, responsive bool
		want                string
	}{
		{false, false, "⛔"},
		{true, false, "🔓"},
		{true, true, "🔒"},
	}
	for _, c := range cases {
		if got := securityGlyph(c.started, c.responsive); got != c.want {
			t.Errorf("securityGlyph(%v, %v) = %q, want %q", c.started, c.responsive, got, c.want)
		}
	}
}

func TestPromptRenderIncludesGlyphsAndCwd(t *testing.T) {
	p := NewPrompt()
	out := p.Render(PromptState{
		Cwd:                "/tmp/work",
		BackendRunning:     true,
		BackendStatus:      coshell.AIStatusReady,
		SecurityStarted:    true,
		SecurityResponsive: true,
	})
	if !strings.Contains(out, "🧠") || !strings.Contains(out, "🔒") || !strings.Contains(out, "/tmp/work") {
		t.Errorf("prompt missing expected elements: %q", out)
	}
}
