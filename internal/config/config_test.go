package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogtb/go-spreadsheet/packages/formula/internal/errors"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Web.Enabled)
	assert.Equal(t, "Sheet1", cfg.Eval.DefaultSheet)
}

func TestDecode(t *testing.T) {
	cfg, err := Decode(`
[web]
enabled = true
timeout = "2s"
max_concurrent = 8

[eval]
default_sheet = "Data"
`)
	require.NoError(t, err)
	assert.True(t, cfg.Web.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Web.Timeout.Duration)
	assert.Equal(t, 8, cfg.Web.MaxConcurrent)
	assert.Equal(t, 2000, cfg.Web.MaxURLLength, "unset keys keep defaults")
	assert.Equal(t, "Data", cfg.Eval.DefaultSheet)
}

func TestDecodeRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"negative concurrency": "[web]\nmax_concurrent = 0",
		"bad duration":         "[web]\ntimeout = \"soon\"",
		"bad level":            "[log]\nlevel = \"loud\"",
		"empty sheet":          "[eval]\ndefault_sheet = \"\"",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(data)
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.Code(err))
		})
	}
}

func TestLoadAppliesEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "formula.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\naddr = \":9000\"\n"), 0o644))

	t.Setenv("FORMULA_WEB_ENABLED", "true")
	t.Setenv("FORMULA_WEB_MAX_RESPONSE_BYTES", "512")
	t.Setenv("FORMULA_WEB_TIMEOUT", "250ms")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.True(t, cfg.Web.Enabled)
	assert.Equal(t, 512, cfg.Web.MaxResponseBytes)
	assert.Equal(t, 250*time.Millisecond, cfg.Web.Timeout.Duration)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.Code(err))
}
