package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.toml")

	cfg, resolved, exists, err := Load(path)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, path, resolved)
	assert.Equal(t, 50, cfg.Cache.MaxSize)
	assert.Equal(t, 30, cfg.Cache.MaxAgeDays)
	assert.Equal(t, "web", cfg.Providers.DefaultTranslation)
	assert.Equal(t, "local-first", cfg.Sync.ConflictPolicy)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[cache]
max_size = 10
max_age_days = 7

[providers]
default_translation = "KJV"

[sync]
conflict_policy = "Cloud-First"
`)

	cfg, _, exists, err := Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 10, cfg.Cache.MaxSize)
	assert.Equal(t, 7, cfg.Cache.MaxAgeDays)
	assert.Equal(t, "kjv", cfg.Providers.DefaultTranslation, "translation codes are normalized to lowercase")
	assert.Equal(t, "cloud-first", cfg.Sync.ConflictPolicy)
	assert.Equal(t, 8750, cfg.Server.Port, "unset sections keep defaults")
}

func TestLoad_ExpandsPaths(t *testing.T) {
	path := writeConfig(t, `
[paths]
data_dir = "~/pulpit-data"
`)

	cfg, _, _, err := Load(path)
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "pulpit-data"), cfg.Paths.DataDir)
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		toml string
	}{
		{"zero cache size", "[cache]\nmax_size = 0\nmax_age_days = 30\n"},
		{"bad port", "[server]\nport = 70000\n"},
		{"tls without certs", "[server]\nport = 8750\ntls_enabled = true\n"},
		{"bad conflict policy", "[sync]\nconflict_policy = \"newest-wins\"\n"},
		{"bad log level", "[logging]\nlevel = \"verbose\"\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.toml)
			_, _, _, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestCreateSampleParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	require.NoError(t, CreateSample(path))

	cfg, _, exists, err := Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 50, cfg.Cache.MaxSize)
}
