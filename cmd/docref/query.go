package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/docref"
)

var (
	flagBuildID string
	flagLimit   int
	flagKinds   []string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the build report",
	Long:  "Answer questions about a recorded build. Queries read the latest finished build unless --build is given. Line and column numbers are 1-based.",
}

func init() {
	queryCmd.PersistentFlags().StringVar(&flagBuildID, "build", "", "query this build instead of the latest")

	buildsCmd.Flags().IntVar(&flagLimit, "limit", 20, "number of builds to list (0 for all)")
	diagnosticsCmd.Flags().StringSliceVar(&flagKinds, "kind", nil, "only these diagnostic kinds (repeatable)")

	queryCmd.AddCommand(buildsCmd)
	queryCmd.AddCommand(idsCmd)
	queryCmd.AddCommand(definitionCmd)
	queryCmd.AddCommand(backlinksCmd)
	queryCmd.AddCommand(linksCmd)
	queryCmd.AddCommand(brokenCmd)
	queryCmd.AddCommand(diagnosticsCmd)
}

// --- Helpers ---

// openStore opens the report database from the --db flag path (or default).
func openStore() (*docref.Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	repoRoot := findRepoRoot(cwd)
	dbPath := resolveDBPath(repoRoot)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'docref build' first)", dbPath)
	}
	return docref.OpenStore(dbPath)
}

// resolveFilePath converts a file argument to an absolute path.
// If the path is already absolute, it's returned as-is.
// Otherwise, it's resolved relative to the current working directory.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// withQuery opens the store, runs fn with a QueryBuilder and prints its
// result.
func withQuery(command string, fn func(q *docref.QueryBuilder) (any, error)) error {
	s, err := openStore()
	if err != nil {
		return outputError(command, err)
	}
	defer s.Close()

	q := docref.NewQueryBuilder(s)
	if flagBuildID != "" {
		q = q.ForBuild(flagBuildID)
	}
	results, err := fn(q)
	if err != nil {
		return outputError(command, err)
	}
	result := CLIResult{Command: command, Results: results}
	if n, ok := resultCount(results); ok {
		result.TotalCount = &n
	}
	return outputResult(result)
}

// resultCount returns the length of list results.
func resultCount(v any) (int, bool) {
	switch r := v.(type) {
	case []CLIBuild:
		return len(r), true
	case []CLIDocument:
		return len(r), true
	case []CLILink:
		return len(r), true
	case []CLIDiagnostic:
		return len(r), true
	default:
		return 0, false
	}
}

// --- Commands ---

var buildsCmd = &cobra.Command{
	Use:   "builds",
	Short: "List recorded builds, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return outputError("builds", err)
		}
		defer s.Close()

		builds, err := s.Builds(flagLimit)
		if err != nil {
			return outputError("builds", err)
		}
		out := make([]CLIBuild, 0, len(builds))
		for _, b := range builds {
			out = append(out, toCLIBuild(b))
		}
		n := len(out)
		return outputResult(CLIResult{Command: "builds", Results: out, TotalCount: &n})
	},
}

var idsCmd = &cobra.Command{
	Use:   "ids",
	Short: "List every declared identifier",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQuery("ids", func(q *docref.QueryBuilder) (any, error) {
			docs, err := q.Identifiers()
			if err != nil {
				return nil, err
			}
			out := make([]CLIDocument, 0, len(docs))
			for _, d := range docs {
				out = append(out, toCLIDocument(d))
			}
			return out, nil
		})
	},
}

var definitionCmd = &cobra.Command{
	Use:   "definition <identifier>",
	Short: "Show the document declaring an identifier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQuery("definition", func(q *docref.QueryBuilder) (any, error) {
			d, err := q.Definition(args[0])
			if err != nil || d == nil {
				return nil, err
			}
			return toCLIDocument(d), nil
		})
	},
}

var backlinksCmd = &cobra.Command{
	Use:   "backlinks <identifier>",
	Short: "List the links that reference an identifier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQuery("backlinks", func(q *docref.QueryBuilder) (any, error) {
			links, err := q.Backlinks(args[0])
			if err != nil {
				return nil, err
			}
			return toCLILinks(links), nil
		})
	},
}

var linksCmd = &cobra.Command{
	Use:   "links <file>",
	Short: "List the links of one content file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := resolveFilePath(args[0])
		if err != nil {
			return outputError("links", err)
		}
		return withQuery("links", func(q *docref.QueryBuilder) (any, error) {
			doc, links, err := q.Links(file)
			if err != nil {
				return nil, err
			}
			if doc == nil {
				return nil, fmt.Errorf("%s was not part of the build", file)
			}
			out := make([]CLILink, 0, len(links))
			for _, l := range links {
				out = append(out, CLILink{
					File:   doc.SourceFile,
					Line:   l.Line,
					Col:    l.Col,
					Token:  l.Token,
					Target: l.Target,
					Status: l.Status,
				})
			}
			return out, nil
		})
	},
}

var brokenCmd = &cobra.Command{
	Use:   "broken",
	Short: "List links that could not be resolved",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQuery("broken", func(q *docref.QueryBuilder) (any, error) {
			links, err := q.BrokenLinks()
			if err != nil {
				return nil, err
			}
			return toCLILinks(links), nil
		})
	},
}

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics",
	Short: "List the diagnostics of a build",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQuery("diagnostics", func(q *docref.QueryBuilder) (any, error) {
			kinds := make([]docref.DiagnosticKind, len(flagKinds))
			for i, k := range flagKinds {
				kinds[i] = docref.DiagnosticKind(k)
			}
			diags, err := q.Diagnostics(kinds...)
			if err != nil {
				return nil, err
			}
			out := make([]CLIDiagnostic, 0, len(diags))
			for _, d := range diags {
				out = append(out, toCLIStoredDiagnostic(d))
			}
			return out, nil
		})
	},
}

func toCLILinks(links []*docref.Backlink) []CLILink {
	out := make([]CLILink, 0, len(links))
	for _, l := range links {
		out = append(out, toCLILink(l))
	}
	return out
}

var hooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "List the builtin rewrite hooks",
	Long:  "Lists the hooks usable as hook_script: builtin:<name>.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return outputResult(CLIResult{Command: "hooks", Results: builtinHooks()})
	},
}
