package backend

import "testing"

func TestParseAIResultCommand(t *testing.T) {
	kind, payload := parseAIResult("cmd:kubectl get pods")
	if kind != "cmd" || payload != "kubectl get pods" {
		t.Errorf("got (%q, %q)", kind, payload)
	}
}

func TestParseAIResultEdit(t *testing.T) {
	kind, payload := parseAIResult("edit:the command failed because...")
	if kind != "edit" || payload != "the command failed because..." {
		t.Errorf("got (%q, %q)", kind, payload)
	}
}

func TestParseAIResultUnrecognizedDegradesToEdit(t *testing.T) {
	kind, payload := parseAIResult("just some text without a prefix")
	if kind != "edit" || payload != "just some text without a prefix" {
		t.Errorf("got (%q, %q)", kind, payload)
	}
}
