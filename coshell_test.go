package coshell

import "testing"

func TestVerdictFailed(t *testing.T) {
	cases := []struct {
		name string
		v    Verdict
		want bool
	}{
		{"ok-silent", Verdict{Kind: VerdictOK, ExitCode: 0}, false},
		{"ok-nonzero-exit", Verdict{Kind: VerdictOK, ExitCode: 1}, true},
		{"ok-stderr", Verdict{Kind: VerdictOK, Stderr: "boom"}, true},
		{"interactive", Verdict{Kind: VerdictInteractive}, false},
		{"timeout", Verdict{Kind: VerdictTimeout}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.v.Failed(); got != tc.want {
				t.Errorf("Failed() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAllowBlock(t *testing.T) {
	a := Allow("heads up")
	if !a.Allowed || a.Warning != "heads up" {
		t.Errorf("Allow() = %+v", a)
	}
	b := Block("destructive-filesystem")
	if b.Allowed || b.Reason != "destructive-filesystem" {
		t.Errorf("Block() = %+v", b)
	}
}

func TestAIStatusString(t *testing.T) {
	if AIStatusReady.String() != "ready" {
		t.Errorf("String() = %q", AIStatusReady.String())
	}
}
