package markdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDoc = `---
globalReference: start
title: Start
---
# Getting Started

Read [the guide](ref:guide#step-2) first.
Then open [the code](repo:pkg/thing.go "Source").

` + "```" + `
[not a link](ref:ignored)
` + "```" + `

[docs]: ref:docs "Docs"
`

func parseTest(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := Parse(context.Background(), []byte(src))
	require.NoError(t, err)
	return doc
}

func urls(links []*Link) []string {
	var out []string
	for _, l := range links {
		out = append(out, l.URL)
	}
	return out
}

func TestParse_FrontMatterAndHeading(t *testing.T) {
	t.Parallel()
	doc := parseTest(t, testDoc)

	require.True(t, doc.HasFrontMatter)
	assert.Contains(t, string(doc.FrontMatter), "globalReference: start")
	assert.Equal(t, "Getting Started", doc.Heading)
}

func TestParse_CollectsLinksOutsideCode(t *testing.T) {
	t.Parallel()
	doc := parseTest(t, testDoc)

	assert.Equal(t, []string{"ref:guide#step-2", "repo:pkg/thing.go", "ref:docs"}, urls(doc.Links))
	assert.NotContains(t, urls(doc.Links), "ref:ignored")
}

func TestParse_TitlesAndKinds(t *testing.T) {
	t.Parallel()
	doc := parseTest(t, testDoc)
	require.Len(t, doc.Links, 3)

	assert.Empty(t, doc.Links[0].Title)
	assert.Equal(t, KindInline, doc.Links[0].Kind)
	assert.Equal(t, "Source", doc.Links[1].Title)
	assert.Equal(t, KindDefinition, doc.Links[2].Kind)
	assert.Equal(t, "Docs", doc.Links[2].Title)
}

func TestParse_Positions(t *testing.T) {
	t.Parallel()
	doc := parseTest(t, testDoc)
	require.NotEmpty(t, doc.Links)

	// "Read [the guide](ref:guide..." sits on line 7 of the file.
	assert.Equal(t, 7, doc.Links[0].Line)
	assert.Equal(t, len("Read [the guide](")+1, doc.Links[0].Column)
}

func TestParse_NoFrontMatter(t *testing.T) {
	t.Parallel()
	doc := parseTest(t, "Plain [link](https://example.com).\n")
	assert.False(t, doc.HasFrontMatter)
	assert.Empty(t, doc.Heading)
	assert.Equal(t, []string{"https://example.com"}, urls(doc.Links))
	assert.Equal(t, 1, doc.Links[0].Line)
}

func TestParse_SkipsImages(t *testing.T) {
	t.Parallel()
	doc := parseTest(t, "![diagram](ref:not-a-link)\n")
	assert.Empty(t, doc.Links)
}

func TestParse_SecondLevelHeadingIsNotTitle(t *testing.T) {
	t.Parallel()
	doc := parseTest(t, "## Section\n\n# Real Title #\n")
	assert.Equal(t, "Real Title", doc.Heading)
}

func TestParse_HeadingStripsInlineMarkup(t *testing.T) {
	t.Parallel()
	tests := []struct {
		src  string
		want string
	}{
		{src: "# Use `foo` *now*\n", want: "Use foo now"},
		{src: "# **Bold** and _light_ ##\n", want: "Bold and light"},
		{src: "# Read [the guide](ref:start \"Guide\")\n", want: "Read the guide"},
		{src: "# Price \\*not emphasis\\*\n", want: "Price *not emphasis*"},
		{src: "# snake_case_name\n", want: "snake_case_name"},
	}
	for _, tt := range tests {
		doc := parseTest(t, tt.src)
		assert.Equal(t, tt.want, doc.Heading, "heading of %q", tt.src)
	}

	doc := parseTest(t, "# Read [the guide](ref:start)\n")
	assert.Equal(t, []string{"ref:start"}, urls(doc.Links), "heading links are still links")
}

func TestIsContentFile(t *testing.T) {
	t.Parallel()
	assert.True(t, IsContentFile(".md"))
	assert.True(t, IsContentFile(".MDX"))
	assert.False(t, IsContentFile(".go"))
}

func TestHeadingText(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Title", headingText(" Title "))
	assert.Equal(t, "Title", headingText("Title ##"))
	assert.Equal(t, "C#", headingText("C#"))
}

func TestLineIndex(t *testing.T) {
	t.Parallel()
	idx := newLineIndex([]byte("ab\ncdé\nx"))
	line, col := idx.position(0)
	assert.Equal(t, [2]int{1, 1}, [2]int{line, col})
	line, col = idx.position(4)
	assert.Equal(t, [2]int{2, 2}, [2]int{line, col})
	line, col = idx.position(8)
	assert.Equal(t, [2]int{3, 1}, [2]int{line, col})
}

func TestDocumentClone(t *testing.T) {
	t.Parallel()

	doc, err := Parse(context.Background(), []byte("[a](ref:one)\n"))
	require.NoError(t, err)
	require.Len(t, doc.Links, 1)

	c := doc.Clone()
	c.Links[0].URL = "/one"
	c.Links[0].Inert = true

	assert.Equal(t, "ref:one", doc.Links[0].URL)
	assert.False(t, doc.Links[0].Inert)
	assert.Equal(t, "[a](/one)\n", string(Rewrite(c.Source, c.Links)))
}
