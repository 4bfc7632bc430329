package markdown

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	mdblock "github.com/smacker/go-tree-sitter/markdown/tree-sitter-markdown"
	mdinline "github.com/smacker/go-tree-sitter/markdown/tree-sitter-markdown-inline"
)

// Markdown is parsed in two passes, as the grammar intends: the block
// grammar finds paragraphs, headings, code blocks and definitions, and the
// inline grammar is run over each inline range.
var (
	blockLang    *sitter.Language
	inlineLang   *sitter.Language
	grammarsOnce sync.Once
)

func initGrammars() {
	grammarsOnce.Do(func() {
		blockLang = mdblock.GetLanguage()
		inlineLang = mdinline.GetLanguage()
	})
}

// extensions lists the file extensions treated as markdown content.
var extensions = map[string]bool{
	".md":  true,
	".mdx": true,
}

// IsContentFile reports whether ext (including the dot, any case) names a
// markdown content file.
func IsContentFile(ext string) bool {
	return extensions[strings.ToLower(ext)]
}

