package docref

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// MissingIdentifierPolicy controls how a content file without a
// globalReference is treated.
type MissingIdentifierPolicy string

const (
	// MissingIdentifierAllow accepts the file silently.
	MissingIdentifierAllow MissingIdentifierPolicy = "allow"
	// MissingIdentifierWarn logs a warning.
	MissingIdentifierWarn MissingIdentifierPolicy = "warn"
	// MissingIdentifierError reports a MissingIdentifier diagnostic, which
	// aborts the build in strict mode.
	MissingIdentifierError MissingIdentifierPolicy = "error"
)

// Config holds the settings the engine needs for a build.
type Config struct {
	// ContentRoot is the directory content files live under. Canonical paths
	// are computed relative to it.
	ContentRoot string `mapstructure:"content_root" json:"content_root"`
	// BaseURL prefixes every canonical path.
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	// RepoBaseURL and DefaultBranch build repository locator links.
	RepoBaseURL   string `mapstructure:"repo_base_url" json:"repo_base_url"`
	DefaultBranch string `mapstructure:"default_branch" json:"default_branch"`

	Strict            bool                    `mapstructure:"strict" json:"strict"`
	MissingIdentifier MissingIdentifierPolicy `mapstructure:"missing_identifier" json:"missing_identifier"`
	// BareRepoLinks resolves a pathless "repo" token to the repository root.
	// When false it is reported as MissingRepoPath.
	BareRepoLinks bool `mapstructure:"bare_repo_links" json:"bare_repo_links"`

	// Include and Exclude are doublestar patterns relative to ContentRoot.
	Include []string `mapstructure:"include" json:"include"`
	Exclude []string `mapstructure:"exclude" json:"exclude,omitempty"`

	// HookScript is an optional Risor script consulted for every resolved link.
	HookScript string `mapstructure:"hook_script" json:"hook_script,omitempty"`
	// Workers bounds the per-phase worker pool. Zero means GOMAXPROCS.
	Workers int `mapstructure:"workers" json:"workers"`
}

// DefaultConfig returns the configuration of the documentation site this
// engine was first built for.
func DefaultConfig() Config {
	return Config{
		ContentRoot:       "documentation",
		BaseURL:           "/",
		RepoBaseURL:       "https://github.com/caas-team/GoKubeDownscaler",
		DefaultBranch:     "main",
		MissingIdentifier: MissingIdentifierWarn,
		BareRepoLinks:     true,
		Include:           []string{"**/*.md", "**/*.mdx"},
		Exclude:           []string{"**/_*", "**/_*/**", "**/node_modules/**"},
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	var errs []error
	if c.ContentRoot == "" {
		errs = append(errs, errors.New("content_root is required"))
	}
	if c.BaseURL != "" && !strings.HasPrefix(c.BaseURL, "/") {
		errs = append(errs, fmt.Errorf("base_url %q must start with /", c.BaseURL))
	}
	if c.RepoBaseURL != "" {
		u, err := url.Parse(c.RepoBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("repo_base_url %q is not an absolute URL", c.RepoBaseURL))
		}
		if c.DefaultBranch == "" {
			errs = append(errs, errors.New("default_branch is required with repo_base_url"))
		}
	}
	switch c.MissingIdentifier {
	case MissingIdentifierAllow, MissingIdentifierWarn, MissingIdentifierError:
	default:
		errs = append(errs, fmt.Errorf("missing_identifier %q must be one of allow, warn, error", c.MissingIdentifier))
	}
	if len(c.Include) == 0 {
		errs = append(errs, errors.New("include needs at least one pattern"))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	return errors.Join(errs...)
}
