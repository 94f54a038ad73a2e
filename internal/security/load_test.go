package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPolicyFallsBackToEmbeddedDefault(t *testing.T) {
	p, err := LoadPolicy(filepath.Join(t.TempDir(), "missing-policy.toml"))
	if err != nil {
		t.Fatal(err)
	}
	v := p.CheckCommand("rm -rf /")
	if v.Allowed {
		t.Fatal("expected embedded default policy to block rm -rf /")
	}
}

func TestLoadPolicyReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.toml")
	if err := os.WriteFile(path, defaultTestPolicyTOML, 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatal(err)
	}
	if v := p.CheckCommand("sudo su -"); v.Allowed {
		t.Fatal("expected block from file-loaded policy")
	}
}

func TestWriteDefaultPolicyFileDoesNotOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.toml")
	if err := os.WriteFile(path, []byte("# custom\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteDefaultPolicyFile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "# custom\n" {
		t.Errorf("WriteDefaultPolicyFile overwrote existing file")
	}
}
