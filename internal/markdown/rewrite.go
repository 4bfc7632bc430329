package markdown

import (
	"sort"
	"strings"
)

type edit struct {
	start, end int
	text       string
}

// Rewrite returns src with every changed link written back in place. Links
// that were not produced by Parse over src are ignored. src is not modified.
func Rewrite(src []byte, links []*Link) []byte {
	return rewrite(src, links, true)
}

// RewriteSource is Rewrite for output that replaces src itself: inert links
// are left unescaped, so the next parse still sees their tokens.
func RewriteSource(src []byte, links []*Link) []byte {
	return rewrite(src, links, false)
}

func rewrite(src []byte, links []*Link, escapeInert bool) []byte {
	var edits []edit
	for _, l := range links {
		if !l.parsed {
			continue
		}
		if l.Inert {
			if escapeInert {
				edits = append(edits, edit{start: l.escapeAt, end: l.escapeAt, text: `\`})
			}
			continue
		}
		if l.URL != l.origURL {
			text := l.URL
			if !l.angled && strings.ContainsAny(text, " <>") {
				text = "<" + text + ">"
			}
			edits = append(edits, edit{start: l.destStart, end: l.destEnd, text: text})
		}
		if l.Title != l.origTitle {
			switch {
			case l.titleStart >= 0:
				edits = append(edits, edit{start: l.titleStart, end: l.titleEnd, text: quoteTitle(l.Title)})
			case l.Title != "":
				at := l.destEnd
				if l.angled {
					at++
				}
				edits = append(edits, edit{start: at, end: at, text: " " + quoteTitle(l.Title)})
			}
		}
	}
	if len(edits) == 0 {
		out := make([]byte, len(src))
		copy(out, src)
		return out
	}

	sort.SliceStable(edits, func(i, j int) bool {
		return edits[i].start > edits[j].start
	})
	out := make([]byte, len(src))
	copy(out, src)
	for _, e := range edits {
		tail := append([]byte(e.text), out[e.end:]...)
		out = append(out[:e.start], tail...)
	}
	return out
}

// Changed reports whether any link differs from its parsed state.
func Changed(links []*Link) bool {
	for _, l := range links {
		if l.parsed && (l.Inert || l.URL != l.origURL || l.Title != l.origTitle) {
			return true
		}
	}
	return false
}

func quoteTitle(t string) string {
	return `"` + strings.ReplaceAll(t, `"`, `\"`) + `"`
}
