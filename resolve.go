package docref

import (
	"context"
	"fmt"
	"strings"

	"github.com/jward/docref/internal/registry"
)

// LinkStatus is the resolution result of a single link.
type LinkStatus string

const (
	LinkPlain      LinkStatus = "plain"
	LinkResolved   LinkStatus = "resolved"
	LinkUnresolved LinkStatus = "unresolved"
)

// LinkOutcome describes what happened to one link.
type LinkOutcome struct {
	Kind       TokenKind  `json:"-"`
	Token      string     `json:"token"`
	Identifier string     `json:"identifier,omitempty"`
	Target     string     `json:"target,omitempty"`
	Status     LinkStatus `json:"status"`
	Line       int        `json:"line"`
	Column     int        `json:"column"`
}

// Hook may replace the URL of a resolved link.
type Hook interface {
	RewriteURL(ctx context.Context, link HookLink) (string, error)
}

// RepoResolver turns repository locator tokens into absolute source URLs.
type RepoResolver struct {
	BaseURL   string
	Branch    string
	BareLinks bool
}

// URL returns the link for tok. ok is false when tok has no path and bare
// links are disabled, or when no repository is configured.
func (r RepoResolver) URL(tok Token) (string, bool) {
	if r.BaseURL == "" {
		return "", false
	}
	base := strings.TrimRight(r.BaseURL, "/")
	if !tok.HasPath() {
		return base, r.BareLinks
	}
	return base + "/tree/" + r.Branch + "/" + tok.Path, true
}

// Resolver rewrites ref and repo tokens. It only reads the registry, so it
// must run after every file has been registered.
type Resolver struct {
	registry *registry.Registry
	reporter *Reporter
	repo     RepoResolver

	// Hook, if set, is consulted for every resolved link.
	Hook Hook
	// OnLink, if set, is called for every classified link.
	OnLink func(LinkOutcome)
}

// NewResolver creates a Resolver reading reg and reporting through rep.
func NewResolver(cfg Config, reg *registry.Registry, rep *Reporter) *Resolver {
	return &Resolver{
		registry: reg,
		reporter: rep,
		repo: RepoResolver{
			BaseURL:   cfg.RepoBaseURL,
			Branch:    cfg.DefaultBranch,
			BareLinks: cfg.BareRepoLinks,
		},
	}
}

// ResolveLinks rewrites links of sourceFile in place. Unresolvable tokens are
// marked inert. The returned error is a *StrictError or a hook failure.
func (r *Resolver) ResolveLinks(ctx context.Context, sourceFile string, links []*Link) ([]LinkOutcome, error) {
	outcomes := make([]LinkOutcome, 0, len(links))
	for _, l := range links {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		tok := ParseToken(l.URL)
		var (
			out LinkOutcome
			err error
		)
		switch tok.Kind {
		case TokenGlobalRef:
			out, err = r.resolveGlobal(ctx, sourceFile, l, tok)
		case TokenRepoLocator:
			out, err = r.resolveRepo(ctx, sourceFile, l, tok)
		default:
			out = LinkOutcome{Kind: TokenPlain, Token: l.URL, Status: LinkPlain}
		}
		out.Line, out.Column = l.Line, l.Column
		if r.OnLink != nil {
			r.OnLink(out)
		}
		outcomes = append(outcomes, out)
		if err != nil {
			return outcomes, err
		}
	}
	return outcomes, nil
}

func (r *Resolver) resolveGlobal(ctx context.Context, sourceFile string, l *Link, tok Token) (LinkOutcome, error) {
	out := LinkOutcome{Kind: TokenGlobalRef, Token: tok.String(), Identifier: tok.Identifier, Status: LinkUnresolved}

	rec, ok := r.registry.Lookup(tok.Identifier)
	if !ok {
		l.Inert = true
		return out, r.reporter.Report(Diagnostic{
			Kind:    MissingReference,
			File:    sourceFile,
			Line:    l.Line,
			Column:  l.Column,
			Token:   out.Token,
			Message: fmt.Sprintf("no document declares globalReference %q", tok.Identifier),
		})
	}
	if rec.SourceFile == sourceFile {
		l.Inert = true
		return out, r.reporter.Report(Diagnostic{
			Kind:    SelfReference,
			File:    sourceFile,
			Line:    l.Line,
			Column:  l.Column,
			Token:   out.Token,
			Message: fmt.Sprintf("%s points at its own document; use a local anchor link instead", out.Token),
		})
	}

	target := rec.CanonicalPath
	if tok.Anchor != "" {
		target += "#" + tok.Anchor
	}
	target, err := r.applyHook(ctx, HookLink{
		URL:        target,
		Kind:       TokenGlobalRef.String(),
		Identifier: tok.Identifier,
		Anchor:     tok.Anchor,
		SourceFile: sourceFile,
	})
	if err != nil {
		return out, err
	}
	l.URL = target
	if l.Title == "" {
		l.Title = rec.Title
	}
	out.Target, out.Status = target, LinkResolved
	return out, nil
}

func (r *Resolver) resolveRepo(ctx context.Context, sourceFile string, l *Link, tok Token) (LinkOutcome, error) {
	out := LinkOutcome{Kind: TokenRepoLocator, Token: tok.String(), Status: LinkUnresolved}

	target, ok := r.repo.URL(tok)
	if !ok {
		msg := "repository link has no path; use repo:<path>"
		if r.repo.BaseURL == "" {
			msg = "repository link used but no repo_base_url is configured"
		}
		l.Inert = true
		return out, r.reporter.Report(Diagnostic{
			Kind:    MissingRepoPath,
			File:    sourceFile,
			Line:    l.Line,
			Column:  l.Column,
			Token:   out.Token,
			Message: msg,
		})
	}
	target, err := r.applyHook(ctx, HookLink{
		URL:        target,
		Kind:       TokenRepoLocator.String(),
		SourceFile: sourceFile,
	})
	if err != nil {
		return out, err
	}
	l.URL = target
	out.Target, out.Status = target, LinkResolved
	return out, nil
}

func (r *Resolver) applyHook(ctx context.Context, link HookLink) (string, error) {
	if r.Hook == nil {
		return link.URL, nil
	}
	url, err := r.Hook.RewriteURL(ctx, link)
	if err != nil {
		return "", fmt.Errorf("%s: rewrite hook: %w", link.SourceFile, err)
	}
	return url, nil
}
