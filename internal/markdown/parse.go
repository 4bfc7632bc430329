// Package markdown extracts link nodes from markdown content files and writes
// rewritten link targets back into the source in place.
package markdown

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/docref/internal/frontmatter"
)

// Kind distinguishes the markdown construct a Link was read from.
type Kind int

const (
	// KindInline is [text](url "title").
	KindInline Kind = iota
	// KindDefinition is a link reference definition: [label]: url "title".
	KindDefinition
)

func (k Kind) String() string {
	switch k {
	case KindInline:
		return "inline"
	case KindDefinition:
		return "definition"
	default:
		return "unknown"
	}
}

// Link is one link node. URL, Title and Inert may be changed by resolvers;
// Rewrite compares them against the values originally parsed.
type Link struct {
	URL    string
	Title  string
	Line   int // 1-based
	Column int // 1-based, in runes
	Kind   Kind

	// Inert marks a link whose token could not be resolved. Rewrite escapes
	// it so it renders as literal text instead of a dead hyperlink.
	Inert bool

	parsed     bool
	origURL    string
	origTitle  string
	angled     bool
	destStart  int
	destEnd    int
	titleStart int // -1 when the source has no title
	titleEnd   int
	escapeAt   int
}

// Document is a parsed content file.
type Document struct {
	Source []byte

	// FrontMatter is the raw YAML between the "---" delimiters.
	FrontMatter    []byte
	HasFrontMatter bool

	// Heading is the text of the first level-1 ATX heading, if any.
	Heading string

	Links []*Link
}

// Parse splits front matter off src and collects every inline link and link
// reference definition outside of code blocks.
func Parse(ctx context.Context, src []byte) (*Document, error) {
	initGrammars()

	doc := &Document{Source: src}
	raw, body, offset, ok := frontmatter.Split(src)
	if ok {
		doc.FrontMatter = raw
		doc.HasFrontMatter = true
	}

	blockParser := sitter.NewParser()
	defer blockParser.Close()
	blockParser.SetLanguage(blockLang)

	tree, err := blockParser.ParseCtx(ctx, nil, body)
	if err != nil {
		return nil, fmt.Errorf("markdown: block parse failed: %w", err)
	}
	defer tree.Close()

	inlineParser := sitter.NewParser()
	defer inlineParser.Close()
	inlineParser.SetLanguage(inlineLang)

	idx := newLineIndex(src)
	var walkErr error
	walk(tree.RootNode(), func(n *sitter.Node) bool {
		if walkErr != nil {
			return false
		}
		switch n.Type() {
		case "fenced_code_block", "indented_code_block", "html_block":
			return false
		case "atx_heading":
			if doc.Heading == "" && hasChildOfType(n, "atx_h1_marker") {
				if content := childOfType(n, "inline"); content != nil {
					heading, err := plainText(ctx, inlineParser, []byte(headingText(content.Content(body))))
					if err != nil {
						walkErr = err
						return false
					}
					doc.Heading = heading
				}
			}
			return true
		case "link_reference_definition":
			if l := definitionLink(n, offset, idx); l != nil {
				doc.Links = append(doc.Links, l)
			}
			return false
		case "inline", "pipe_table_cell":
			start, end := int(n.StartByte()), int(n.EndByte())
			links, err := inlineLinks(ctx, inlineParser, body[start:end], offset+start, src, idx)
			if err != nil {
				walkErr = err
				return false
			}
			doc.Links = append(doc.Links, links...)
			return false
		}
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}

	sort.SliceStable(doc.Links, func(i, j int) bool {
		return doc.Links[i].destStart < doc.Links[j].destStart
	})
	return doc, nil
}

// inlineLinks parses one inline range. base is the absolute offset of seg in
// the full file.
func inlineLinks(ctx context.Context, p *sitter.Parser, seg []byte, base int, src []byte, idx lineIndex) ([]*Link, error) {
	tree, err := p.ParseCtx(ctx, nil, seg)
	if err != nil {
		return nil, fmt.Errorf("markdown: inline parse failed: %w", err)
	}
	defer tree.Close()

	var links []*Link
	walk(tree.RootNode(), func(n *sitter.Node) bool {
		switch n.Type() {
		case "image", "code_span":
			return false
		case "inline_link":
			dest := childOfType(n, "link_destination")
			if dest == nil {
				return false
			}
			destStart, destEnd := base+int(dest.StartByte()), base+int(dest.EndByte())
			open := bytes.LastIndexByte(src[base+int(n.StartByte()):destStart], '(')
			if open < 0 {
				return false
			}
			l := newLink(KindInline, src, destStart, destEnd, childOfType(n, "link_title"), base, idx)
			l.escapeAt = base + int(n.StartByte()) + open
			links = append(links, l)
			return false
		}
		return true
	})
	return links, nil
}

func definitionLink(n *sitter.Node, base int, idx lineIndex) *Link {
	dest := childOfType(n, "link_destination")
	if dest == nil {
		return nil
	}
	src := idx.src
	start := base + int(n.StartByte())
	bracket := bytes.IndexByte(src[start:base+int(n.EndByte())], '[')
	if bracket < 0 {
		return nil
	}
	l := newLink(KindDefinition, src, base+int(dest.StartByte()), base+int(dest.EndByte()), childOfType(n, "link_title"), base, idx)
	l.escapeAt = start + bracket
	return l
}

func newLink(kind Kind, src []byte, destStart, destEnd int, title *sitter.Node, base int, idx lineIndex) *Link {
	l := &Link{
		Kind:       kind,
		parsed:     true,
		titleStart: -1,
	}
	if destEnd-destStart >= 2 && src[destStart] == '<' && src[destEnd-1] == '>' {
		l.angled = true
		destStart++
		destEnd--
	}
	l.destStart, l.destEnd = destStart, destEnd
	l.URL = string(src[destStart:destEnd])
	l.origURL = l.URL
	if title != nil {
		l.titleStart = base + int(title.StartByte())
		l.titleEnd = base + int(title.EndByte())
		l.Title = unquoteTitle(string(src[l.titleStart:l.titleEnd]))
		l.origTitle = l.Title
	}
	l.Line, l.Column = idx.position(destStart)
	return l
}

func unquoteTitle(s string) string {
	if len(s) >= 2 {
		s = s[1 : len(s)-1]
	}
	return strings.NewReplacer(`\"`, `"`, `\'`, `'`, `\)`, `)`).Replace(s)
}

func headingText(s string) string {
	s = strings.TrimSpace(s)
	// Optional closing sequence: "# Title ##".
	if trimmed := strings.TrimRight(s, "#"); trimmed != s && (trimmed == "" || strings.HasSuffix(trimmed, " ")) {
		s = strings.TrimSpace(trimmed)
	}
	return s
}

// plainText returns seg with inline markup removed: code span and emphasis
// delimiters, escape backslashes, and everything of a link or image but its
// text.
func plainText(ctx context.Context, p *sitter.Parser, seg []byte) (string, error) {
	tree, err := p.ParseCtx(ctx, nil, seg)
	if err != nil {
		return "", fmt.Errorf("markdown: inline parse failed: %w", err)
	}
	defer tree.Close()

	drop := make([]bool, len(seg))
	mark := func(start, end int) {
		for i := start; i < end && i < len(drop); i++ {
			drop[i] = true
		}
	}
	walk(tree.RootNode(), func(n *sitter.Node) bool {
		start, end := int(n.StartByte()), int(n.EndByte())
		switch n.Type() {
		case "code_span_delimiter", "emphasis_delimiter":
			mark(start, end)
			return false
		case "backslash_escape":
			mark(start, start+1)
			return false
		case "inline_link", "full_reference_link", "collapsed_reference_link", "shortcut_link", "image":
			text := childOfType(n, "link_text")
			if text == nil {
				text = childOfType(n, "image_description")
			}
			if text == nil {
				return true
			}
			mark(start, int(text.StartByte()))
			mark(int(text.EndByte()), end)
		}
		return true
	})

	var b strings.Builder
	for i, c := range seg {
		if !drop[i] {
			b.WriteByte(c)
		}
	}
	return strings.Join(strings.Fields(b.String()), " "), nil
}

func walk(n *sitter.Node, visit func(*sitter.Node) bool) {
	if n == nil || n.IsNull() {
		return
	}
	if !visit(n) {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), visit)
	}
}

func childOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c != nil && c.Type() == typ {
			return c
		}
	}
	return nil
}

func hasChildOfType(n *sitter.Node, typ string) bool {
	return childOfType(n, typ) != nil
}

// lineIndex maps byte offsets to 1-based line/column positions.
type lineIndex struct {
	src    []byte
	starts []int
}

func newLineIndex(src []byte) lineIndex {
	starts := []int{0}
	for i, c := range src {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	return lineIndex{src: src, starts: starts}
}

func (x lineIndex) position(offset int) (line, col int) {
	i := sort.Search(len(x.starts), func(i int) bool { return x.starts[i] > offset }) - 1
	if i < 0 {
		i = 0
	}
	return i + 1, utf8.RuneCount(x.src[x.starts[i]:offset]) + 1
}

// Clone returns a copy of d whose links can be mutated without affecting d.
func (d *Document) Clone() *Document {
	c := *d
	c.Links = make([]*Link, len(d.Links))
	for i, l := range d.Links {
		lc := *l
		c.Links[i] = &lc
	}
	return &c
}
