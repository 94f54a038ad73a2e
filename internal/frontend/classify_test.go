package frontend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstTokenSimple(t *testing.T) {
	assert.Equal(t, "ls", firstToken("ls -la /tmp"))
}

func TestFirstTokenPipeline(t *testing.T) {
	assert.Equal(t, "cat", firstToken("cat /etc/passwd | grep root"))
}

func TestFirstTokenUnparsable(t *testing.T) {
	// An unbalanced quote defeats the AST parser; firstToken must still
	// degrade gracefully via the naive split.
	assert.Equal(t, "echo", firstToken(`echo "unterminated`))
}

func TestFirstTokenEmpty(t *testing.T) {
	assert.Equal(t, "", firstToken(""))
}

func TestIsStructuralOverride(t *testing.T) {
	cases := map[string]bool{
		"vim foo.go":         true,
		"ssh host.example":   true,
		"sudo rm -rf /tmp/x": true,
		"ls -la":             false,
		"git status":         false,
	}
	for line, want := range cases {
		assert.Equal(t, want, IsStructuralOverride(line), "line %q", line)
	}
}

func TestMeetsMinimumWordRule(t *testing.T) {
	assert.False(t, MeetsMinimumWordRule("gti"))
	assert.False(t, MeetsMinimumWordRule("gti status"))
	assert.True(t, MeetsMinimumWordRule("gti status now"))
}
