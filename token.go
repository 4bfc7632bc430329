package docref

import "strings"

// TokenKind classifies a link target.
type TokenKind int

const (
	// TokenPlain is any target that is not one of the recognized tokens.
	// It is passed through untouched.
	TokenPlain TokenKind = iota
	// TokenGlobalRef is "ref:<identifier>[#<anchor>]".
	TokenGlobalRef
	// TokenRepoLocator is "repo" or "repo:<path>".
	TokenRepoLocator
)

func (k TokenKind) String() string {
	switch k {
	case TokenGlobalRef:
		return "ref"
	case TokenRepoLocator:
		return "repo"
	default:
		return "plain"
	}
}

const (
	refPrefix  = "ref:"
	repoToken  = "repo"
	repoPrefix = repoToken + ":"
)

// Token is a parsed link target.
type Token struct {
	Kind TokenKind
	Raw  string

	// Identifier and Anchor are set for TokenGlobalRef. Anchor excludes the
	// leading '#'.
	Identifier string
	Anchor     string

	// Path is set for TokenRepoLocator; empty means the bare form.
	Path string
}

// HasPath reports whether a repository locator names a path.
func (t Token) HasPath() bool { return t.Path != "" }

// String renders the token in its canonical source form.
func (t Token) String() string {
	switch t.Kind {
	case TokenGlobalRef:
		if t.Anchor != "" {
			return refPrefix + t.Identifier + "#" + t.Anchor
		}
		return refPrefix + t.Identifier
	case TokenRepoLocator:
		if t.HasPath() {
			return repoPrefix + t.Path
		}
		return repoToken
	default:
		return t.Raw
	}
}

// ParseToken classifies a link target. Parsing stops at the first ')' or
// whitespace so a target sliced with its surrounding syntax still yields the
// intended identifier, anchor or path. Plain targets keep Raw unchanged.
func ParseToken(raw string) Token {
	s := raw[:tokenEnd(raw)]
	switch {
	case strings.HasPrefix(s, refPrefix):
		tok := Token{Kind: TokenGlobalRef, Raw: raw}
		body := s[len(refPrefix):]
		if id, anchor, ok := strings.Cut(body, "#"); ok {
			tok.Identifier, tok.Anchor = id, anchor
		} else {
			tok.Identifier = body
		}
		return tok
	case s == repoToken:
		return Token{Kind: TokenRepoLocator, Raw: raw}
	case strings.HasPrefix(s, repoPrefix):
		return Token{
			Kind: TokenRepoLocator,
			Raw:  raw,
			Path: strings.TrimLeft(s[len(repoPrefix):], "/"),
		}
	}
	return Token{Kind: TokenPlain, Raw: raw}
}

func tokenEnd(s string) int {
	if i := strings.IndexAny(s, ") \t\r\n"); i >= 0 {
		return i
	}
	return len(s)
}
