package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/docref"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docref.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, docref.DefaultConfig(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
content_root: docs
base_url: /handbook/
repo_base_url: https://github.com/acme/widgets
default_branch: trunk
missing_identifier: error
bare_repo_links: false
include:
  - "**/*.md"
workers: 4
`)

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "docs", cfg.ContentRoot)
	assert.Equal(t, "/handbook/", cfg.BaseURL)
	assert.Equal(t, "https://github.com/acme/widgets", cfg.RepoBaseURL)
	assert.Equal(t, "trunk", cfg.DefaultBranch)
	assert.Equal(t, docref.MissingIdentifierError, cfg.MissingIdentifier)
	assert.False(t, cfg.BareRepoLinks)
	assert.Equal(t, []string{"**/*.md"}, cfg.Include)
	assert.Equal(t, 4, cfg.Workers)
	assert.False(t, cfg.Strict)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoad_ProductionDefaultsToStrict(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DOCREF_ENV", "production")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.True(t, cfg.Strict)
}

func TestLoad_ExplicitStrictWins(t *testing.T) {
	t.Setenv("DOCREF_ENV", "production")
	path := writeConfig(t, "strict: false\n")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.False(t, cfg.Strict)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("DOCREF_CONTENT_ROOT", "site/docs")
	t.Setenv("DOCREF_STRICT", "true")
	path := writeConfig(t, "content_root: docs\n")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "site/docs", cfg.ContentRoot)
	assert.True(t, cfg.Strict)
}

func TestLoad_InvalidPolicy(t *testing.T) {
	path := writeConfig(t, "missing_identifier: sometimes\n")

	_, err := Load(viper.New(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}
