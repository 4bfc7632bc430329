package docref

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want Token
	}{
		{"ref:start", Token{Kind: TokenGlobalRef, Raw: "ref:start", Identifier: "start"}},
		{"ref:start#step-2", Token{Kind: TokenGlobalRef, Raw: "ref:start#step-2", Identifier: "start", Anchor: "step-2"}},
		{"ref:start)", Token{Kind: TokenGlobalRef, Raw: "ref:start)", Identifier: "start"}},
		{"ref:start#a) more", Token{Kind: TokenGlobalRef, Raw: "ref:start#a) more", Identifier: "start", Anchor: "a"}},
		{"ref:", Token{Kind: TokenGlobalRef, Raw: "ref:"}},
		{"repo", Token{Kind: TokenRepoLocator, Raw: "repo"}},
		{"repo)", Token{Kind: TokenRepoLocator, Raw: "repo)"}},
		{"repo:internal/pkg/values", Token{Kind: TokenRepoLocator, Raw: "repo:internal/pkg/values", Path: "internal/pkg/values"}},
		{"repo:/chart", Token{Kind: TokenRepoLocator, Raw: "repo:/chart", Path: "chart"}},
		{"repo:", Token{Kind: TokenRepoLocator, Raw: "repo:"}},
		{"repository", Token{Kind: TokenPlain, Raw: "repository"}},
		{"https://example.com/ref:x", Token{Kind: TokenPlain, Raw: "https://example.com/ref:x"}},
		{"./local.md", Token{Kind: TokenPlain, Raw: "./local.md"}},
		{"", Token{Kind: TokenPlain, Raw: ""}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseToken(tt.raw))
		})
	}
}

func TestToken_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ref:start#a", ParseToken("ref:start#a)").String())
	assert.Equal(t, "ref:start", ParseToken("ref:start").String())
	assert.Equal(t, "repo:chart", ParseToken("repo:/chart").String())
	assert.Equal(t, "repo", ParseToken("repo").String())
	assert.Equal(t, "https://x", ParseToken("https://x").String())
	assert.Equal(t, "ref", TokenGlobalRef.String())
	assert.Equal(t, "plain", TokenPlain.String())
}
