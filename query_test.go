package docref

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/docref/internal/store"
)

func newStoreEngine(t *testing.T, root string) *Engine {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "report.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return newTestEngine(t, testConfig(root), WithStore(s))
}

func TestQuery_RecordedBuild(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeTree(t, root, siteFiles())
	writeTree(t, root, map[string]string{"broken.md": "---\nglobalReference: broken\n---\nSee [x](ref:nope).\n"})

	e := newStoreEngine(t, root)
	res, err := e.BuildAll(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, res.BuildID)

	q := e.Query()
	b, err := q.Build()
	require.NoError(t, err)
	assert.Equal(t, res.BuildID, b.ID)
	assert.Equal(t, store.BuildOK, b.Status)
	assert.Equal(t, 3, b.FileCount)
	assert.Equal(t, 1, b.DiagnosticCount)
	assert.Equal(t, res.RegistryHash, b.RegistryHash)
	require.NotNil(t, b.FinishedAt)

	docs, err := q.Identifiers()
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, filepath.Join(root, "broken.md"), docs[0].SourceFile)

	def, err := q.Definition("start")
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, "/guides/a", def.CanonicalPath)
	assert.Equal(t, "Start", def.Title)
	assert.True(t, def.Changed)

	missing, err := q.Definition("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	back, err := q.Backlinks("start")
	require.NoError(t, err)
	require.Len(t, back, 2)
	assert.Equal(t, "ref:start", back[0].Token)
	assert.Equal(t, "/guides/a", back[0].Target)
	assert.Equal(t, "ref:start#step-2", back[1].Token)
	assert.Equal(t, "/guides/a#step-2", back[1].Target)

	broken, err := q.BrokenLinks()
	require.NoError(t, err)
	require.Len(t, broken, 1)
	assert.Equal(t, "ref:nope", broken[0].Token)
	assert.Equal(t, 4, broken[0].Line)

	diags, err := q.Diagnostics(MissingReference)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, filepath.Join(root, "broken.md"), diags[0].File)

	none, err := q.Diagnostics(DuplicateIdentifier)
	require.NoError(t, err)
	assert.Empty(t, none)

	doc, links, err := q.Links(filepath.Join(root, "index.md"))
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "/", doc.CanonicalPath)
	require.Len(t, links, 3)
	assert.Equal(t, "ref", links[0].Kind)
	assert.Equal(t, "resolved", links[0].Status)
	assert.Equal(t, "repo", links[2].Kind)
	assert.Equal(t, "https://example.com/org/repo/tree/main/pkg/thing.go", links[2].Target)
	assert.Nil(t, links[2].Identifier)

	doc, links, err = q.Links(filepath.Join(root, "nope.md"))
	require.NoError(t, err)
	assert.Nil(t, doc)
	assert.Empty(t, links)
}

func TestQuery_ForBuild(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeTree(t, root, siteFiles())

	e := newStoreEngine(t, root)
	first, err := e.BuildAll(context.Background())
	require.NoError(t, err)

	writeTree(t, root, map[string]string{"extra.md": "---\nglobalReference: extra\n---\n"})
	second, err := e.BuildAll(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, first.BuildID, second.BuildID)

	latest, err := e.Query().Build()
	require.NoError(t, err)
	assert.Equal(t, second.BuildID, latest.ID)

	old, err := e.Query().ForBuild(first.BuildID).Identifiers()
	require.NoError(t, err)
	assert.Len(t, old, 2)

	_, err = e.Query().ForBuild("does-not-exist").Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestQuery_FailedBuildIsRecorded(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.md": "---\nglobalReference: a\n---\n[x](ref:gone)\n"})

	s, err := OpenStore(filepath.Join(t.TempDir(), "report.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	cfg := testConfig(root)
	cfg.Strict = true
	e := newTestEngine(t, cfg, WithStore(s))
	_, err = e.BuildAll(context.Background())
	var se *StrictError
	require.ErrorAs(t, err, &se)

	b, err := e.Query().Build()
	require.NoError(t, err)
	assert.Equal(t, store.BuildFailed, b.Status)
	assert.True(t, b.Strict)
	assert.Equal(t, 1, b.DiagnosticCount)
}

func TestQuery_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewQueryBuilder(nil).Build()
	require.ErrorIs(t, err, ErrNoStore)

	e := newStoreEngine(t, t.TempDir())
	_, err = e.Query().Backlinks("x")
	require.ErrorIs(t, err, ErrNoBuild)
}
