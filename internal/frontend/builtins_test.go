package frontend

import (
	"path/filepath"
	"testing"

	coshell "github.com/coshell-dev/coshell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBuiltin(t *testing.T) {
	assert.True(t, IsBuiltin(":coshell help"))
	assert.False(t, IsBuiltin("ls -la"))
}

func TestRunBuiltinHelp(t *testing.T) {
	cfg := coshell.DefaultConfig()
	result := RunBuiltin(":coshell help", cfg, nil)
	require.True(t, result.Handled)
	assert.NotEmpty(t, result.Output)
}

func TestRunBuiltinQuit(t *testing.T) {
	cfg := coshell.DefaultConfig()
	result := RunBuiltin(":coshell quit", cfg, nil)
	assert.True(t, result.Quit)
}

func TestRunBuiltinVerbosityGetAndSet(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("COSHELL_CONFIG_DIR", dir)

	cfg := coshell.DefaultConfig()
	mw := NewMiddlewareClient(filepath.Join(dir, "nonexistent.sock"))

	result := RunBuiltin(":coshell verbosity 2", cfg, mw)
	assert.Equal(t, 2, cfg.Verbosity)
	assert.NotEmpty(t, result.Output)

	result = RunBuiltin(":coshell verbosity", cfg, mw)
	assert.Equal(t, "verbosity: 2", result.Output)
}

func TestRunBuiltinUnknown(t *testing.T) {
	cfg := coshell.DefaultConfig()
	result := RunBuiltin(":coshell frobnicate", cfg, nil)
	require.True(t, result.Handled)
}
