package runtime

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/risor-io/risor/object"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/docref/internal/registry"
)

func writeScript(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hook.risor")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func testLookup(records ...registry.Record) Lookup {
	byID := make(map[string]registry.Record, len(records))
	for _, r := range records {
		byID[r.Identifier] = r
	}
	return func(id string) (registry.Record, bool) {
		r, ok := byID[id]
		return r, ok
	}
}

func TestRewriteURL_StringReplaces(t *testing.T) {
	t.Parallel()

	rt, err := NewRuntime(writeScript(t, `url + "?utm=docs"`))
	require.NoError(t, err)

	got, err := rt.RewriteURL(context.Background(), LinkContext{URL: "/guides/a", Kind: "ref"})
	require.NoError(t, err)
	assert.Equal(t, "/guides/a?utm=docs", got)
}

func TestRewriteURL_NilKeeps(t *testing.T) {
	t.Parallel()

	rt, err := NewRuntime(writeScript(t, `nil`))
	require.NoError(t, err)

	got, err := rt.RewriteURL(context.Background(), LinkContext{URL: "/guides/a"})
	require.NoError(t, err)
	assert.Equal(t, "/guides/a", got)
}

func TestRewriteURL_WrongTypeFails(t *testing.T) {
	t.Parallel()

	rt, err := NewRuntime(writeScript(t, `42`))
	require.NoError(t, err)

	_, err = rt.RewriteURL(context.Background(), LinkContext{URL: "/guides/a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want string or nil")
}

func TestRewriteURL_ScriptError(t *testing.T) {
	t.Parallel()

	rt, err := NewRuntime(writeScript(t, `undefined_name + 1`))
	require.NoError(t, err)

	_, err = rt.RewriteURL(context.Background(), LinkContext{URL: "/x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runtime: script")
}

func TestRewriteURL_SeesLinkGlobals(t *testing.T) {
	t.Parallel()

	rt, err := NewRuntime(writeScript(t, `kind + "|" + identifier + "|" + anchor + "|" + source_file`))
	require.NoError(t, err)

	got, err := rt.RewriteURL(context.Background(), LinkContext{
		URL:        "/guides/a#step",
		Kind:       "ref",
		Identifier: "guide",
		Anchor:     "step",
		SourceFile: "docs/index.md",
	})
	require.NoError(t, err)
	assert.Equal(t, "ref|guide|step|docs/index.md", got)
}

func TestRewriteURL_Lookup(t *testing.T) {
	t.Parallel()

	rt, err := NewRuntime(
		writeScript(t, `lookup(identifier)["title"]`),
		WithLookup(testLookup(registry.Record{Identifier: "guide", CanonicalPath: "/guides/a", Title: "The Guide"})),
	)
	require.NoError(t, err)

	got, err := rt.RewriteURL(context.Background(), LinkContext{URL: "/guides/a", Identifier: "guide"})
	require.NoError(t, err)
	assert.Equal(t, "The Guide", got)
}

func TestRunSource_LookupMissingIsNil(t *testing.T) {
	t.Parallel()

	rt, err := NewRuntime(writeScript(t, `nil`), WithLookup(testLookup()))
	require.NoError(t, err)

	res, err := rt.RunSource(context.Background(), `lookup("nope")`, nil)
	require.NoError(t, err)
	assert.Equal(t, object.Nil, res)
}

func TestRunSource_LookupArgsError(t *testing.T) {
	t.Parallel()

	rt, err := NewRuntime(writeScript(t, `nil`), WithLookup(testLookup()))
	require.NoError(t, err)

	_, err = rt.RunSource(context.Background(), `lookup()`, nil)
	require.Error(t, err)
}

func TestRunSource_LogRoutesToLogger(t *testing.T) {
	t.Parallel()

	logger, hook := test.NewNullLogger()
	script := writeScript(t, `nil`)
	rt, err := NewRuntime(script, WithLogger(logger))
	require.NoError(t, err)

	_, err = rt.RunSource(context.Background(), `log.Warn("careful")`, nil)
	require.NoError(t, err)

	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "careful", hook.LastEntry().Message)
	assert.Equal(t, script, hook.LastEntry().Data["hook"])
}

func TestNewRuntime_MissingScript(t *testing.T) {
	t.Parallel()

	_, err := NewRuntime(filepath.Join(t.TempDir(), "missing.risor"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading script")
}

func TestNewRuntime_FromFS(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"hooks/rewrite.risor": &fstest.MapFile{Data: []byte(`"https://docs.example.com" + url`)},
	}
	rt, err := NewRuntime("/hooks/rewrite.risor", WithRuntimeFS(fsys))
	require.NoError(t, err)

	got, err := rt.RewriteURL(context.Background(), LinkContext{URL: "/guides/a"})
	require.NoError(t, err)
	assert.Equal(t, "https://docs.example.com/guides/a", got)
}

func TestRewriteURL_Concurrent(t *testing.T) {
	t.Parallel()

	rt, err := NewRuntime(writeScript(t, `url + "/"`))
	require.NoError(t, err)

	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		go func() {
			got, err := rt.RewriteURL(context.Background(), LinkContext{URL: "/a"})
			if err == nil && got != "/a/" {
				err = assert.AnError
			}
			errs <- err
		}()
	}
	for i := 0; i < 16; i++ {
		require.NoError(t, <-errs)
	}
}
