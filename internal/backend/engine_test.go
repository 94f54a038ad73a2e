package backend

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/coshell-dev/coshell"
)

type fakeProvider struct {
	output string
	err    error
}

func (f *fakeProvider) Generate(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	return f.output, f.err
}

func TestEngineQueryReturnsCommand(t *testing.T) {
	e := NewEngine(&fakeProvider{output: "cmd:kubectl get pods"}, "openai-compatible")
	result := e.Query(context.Background(), "please list the pods", nil)
	if result.Kind != coshell.AIResultCommand || result.Command != "kubectl get pods" {
		t.Errorf("got %+v", result)
	}
}

func TestEngineQueryReturnsText(t *testing.T) {
	e := NewEngine(&fakeProvider{output: "edit:that command is not installed"}, "openai-compatible")
	result := e.Query(context.Background(), "explain the last error", nil)
	if result.Kind != coshell.AIResultText || result.Text != "that command is not installed" {
		t.Errorf("got %+v", result)
	}
}

func TestEngineQueryProviderErrorBecomesText(t *testing.T) {
	e := NewEngine(&fakeProvider{err: errors.New("connection refused")}, "openai-compatible")
	result := e.Query(context.Background(), "list the pods", nil)
	if result.Kind != coshell.AIResultText {
		t.Fatalf("got %+v", result)
	}
}

func TestEngineNoProviderConfigured(t *testing.T) {
	e := NewEngine(nil, "openai-compatible")
	if e.Status() != coshell.AIStatusFailed {
		t.Errorf("expected failed status with nil provider, got %v", e.Status())
	}
	result := e.Query(context.Background(), "list the pods", nil)
	if result.Kind != coshell.AIResultText {
		t.Fatalf("got %+v", result)
	}
}

func TestEngineStatusReadyWithProvider(t *testing.T) {
	e := NewEngine(&fakeProvider{output: "edit:ok"}, "openai-compatible")
	if e.Status() != coshell.AIStatusReady {
		t.Errorf("expected ready status, got %v", e.Status())
	}
}

func TestEngineSetCwdAndVerbosityAndProvider(t *testing.T) {
	e := NewEngine(&fakeProvider{output: "edit:ok"}, "openai-compatible")
	e.SetCwd("/tmp")
	e.SetVerbosity(2)
	e.SetProvider("anthropic")
	if e.ProviderID() != "anthropic" {
		t.Errorf("got %q", e.ProviderID())
	}
}

func TestEngineQueryIncludesFailureContext(t *testing.T) {
	var captured string
	e := NewEngine(&capturingProvider{capture: &captured}, "openai-compatible")
	e.Query(context.Background(), "gti status", &coshell.FailureContext{ExitCode: 127, OutputPath: "/tmp/out"})
	if captured == "" {
		t.Fatal("expected user message to be captured")
	}
	if !strings.Contains(captured, "exit code: 127") || !strings.Contains(captured, "/tmp/out") {
		t.Errorf("user message missing failure context: %q", captured)
	}
}

type capturingProvider struct {
	capture *string
}

func (c *capturingProvider) Generate(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	*c.capture = userMessage
	return "edit:ok", nil
}
