package docref

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalPath(t *testing.T) {
	t.Parallel()

	root := filepath.FromSlash("/site/documentation")
	tests := []struct {
		name     string
		baseURL  string
		location string
		want     string
	}{
		{"markdown", "/", "/site/documentation/guides/a.md", "/guides/a"},
		{"mdx", "/", "/site/documentation/guides/b.mdx", "/guides/b"},
		{"index", "/", "/site/documentation/guides/index.md", "/guides"},
		{"root index", "/", "/site/documentation/index.md", "/"},
		{"base url", "/docs/", "/site/documentation/guides/a.md", "/docs/guides/a"},
		{"empty base url", "", "/site/documentation/a.md", "/a"},
		{"encoded", "/", "/site/documentation/how to/a b.md", "/how%20to/a%20b"},
		{"relative location", "/", "guides/a.md", "/guides/a"},
		{"other extension", "/", "/site/documentation/notes.txt", "/notes.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := CanonicalPath(root, tt.baseURL, filepath.FromSlash(tt.location))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalPath_OutsideRoot(t *testing.T) {
	t.Parallel()

	_, err := CanonicalPath(filepath.FromSlash("/site/documentation"), "/", filepath.FromSlash("/site/other/a.md"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside content root")
}
