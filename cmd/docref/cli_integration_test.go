package main_test

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildBinary(t *testing.T) string {
	t.Helper()
	binName := "docref"
	if runtime.GOOS == "windows" {
		binName += ".exe"
	}
	bin := filepath.Join(t.TempDir(), binName)
	cmd := exec.Command("go", "build", "-o", bin, ".")
	cmd.Dir = filepath.Join(projectRoot(t), "cmd", "docref")
	cmd.Env = append(os.Environ(), "CGO_ENABLED=1")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "build failed: %s", string(out))
	return bin
}

// projectRoot returns the root of the module by walking up from the test
// file's directory to find go.mod.
func projectRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "runtime.Caller failed")
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find go.mod")
		}
		dir = parent
	}
}

// createSite writes a small content tree with a docref.yaml at its root.
func createSite(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))

	files := map[string]string{
		"docref.yaml": "content_root: docs\nrepo_base_url: https://example.com/org/repo\n",
		"docs/index.md": `---
globalReference: home
---
# Home

Read [the guide](ref:start) and [the code](repo:main.go).
`,
		"docs/guides/a.md": `---
globalReference: start
title: Start
---
Back [home](ref:home) or [nowhere](ref:missing).
`,
	}
	for rel, body := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return dir
}

// run executes the binary in dir and parses the JSON envelope on stdout.
func run(t *testing.T, bin, dir string, args ...string) (map[string]any, error) {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "HOME="+t.TempDir(), "DOCREF_ENV=development")
	stdout, err := cmd.Output()
	if err != nil && len(stdout) == 0 {
		t.Fatalf("%v failed with no output: %v", args, err)
	}

	var result map[string]any
	require.NoError(t, json.Unmarshal(stdout, &result), "invalid JSON output: %s", string(stdout))
	return result, err
}

func TestCLI_CheckBuildQuery(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	site := createSite(t)

	// check reports the broken link and fails without touching files.
	result, err := run(t, bin, site, "check")
	require.Error(t, err)
	assert.Equal(t, "check", result["command"])
	summary := result["results"].(map[string]any)
	diags := summary["diagnostics"].([]any)
	require.Len(t, diags, 1)
	assert.Equal(t, "missing-reference", diags[0].(map[string]any)["kind"])

	src, err := os.ReadFile(filepath.Join(site, "docs", "index.md"))
	require.NoError(t, err)
	assert.Contains(t, string(src), "(ref:start)")

	// build needs somewhere to write.
	result, err = run(t, bin, site, "build")
	require.Error(t, err)
	assert.Contains(t, result["error"], "--in-place")

	// build --in-place rewrites the sources and succeeds in permissive mode.
	result, err = run(t, bin, site, "build", "--in-place")
	require.NoError(t, err)
	summary = result["results"].(map[string]any)
	assert.EqualValues(t, 2, summary["written"])

	src, err = os.ReadFile(filepath.Join(site, "docs", "index.md"))
	require.NoError(t, err)
	assert.Contains(t, string(src), `[the guide](/guides/a "Start")`)
	assert.Contains(t, string(src), "[the code](https://example.com/org/repo/tree/main/main.go)")
	src, err = os.ReadFile(filepath.Join(site, "docs", "guides", "a.md"))
	require.NoError(t, err)
	assert.Contains(t, string(src), "[nowhere](ref:missing)", "unresolved link stays live")
	require.FileExists(t, filepath.Join(site, ".docref", "report.db"))

	result, err = run(t, bin, site, "query", "backlinks", "start")
	require.NoError(t, err)
	links := result["results"].([]any)
	require.Len(t, links, 1)
	assert.Equal(t, "ref:start", links[0].(map[string]any)["token"])

	result, err = run(t, bin, site, "query", "links", "docs/guides/a.md")
	require.NoError(t, err)
	links = result["results"].([]any)
	require.Len(t, links, 2)
	assert.Equal(t, "unresolved", links[1].(map[string]any)["status"])

	result, err = run(t, bin, site, "query", "definition", "home")
	require.NoError(t, err)
	assert.Equal(t, "/", result["results"].(map[string]any)["canonical_path"])

	result, err = run(t, bin, site, "query", "builds")
	require.NoError(t, err)
	assert.EqualValues(t, 2, result["total_count"])
}

func TestCLI_StrictBuildFails(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	site := createSite(t)

	result, err := run(t, bin, site, "build", "--in-place", "--strict", "--no-report")
	require.Error(t, err)
	assert.Contains(t, result["error"], "strict mode")
	assert.NoFileExists(t, filepath.Join(site, ".docref", "report.db"))

	src, err := os.ReadFile(filepath.Join(site, "docs", "index.md"))
	require.NoError(t, err)
	assert.Contains(t, string(src), "(ref:start)", "nothing is written")
}

func TestCLI_QueryWithoutDatabase(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	site := createSite(t)

	result, err := run(t, bin, site, "query", "ids")
	require.Error(t, err)
	assert.Contains(t, result["error"], "database not found")
}
