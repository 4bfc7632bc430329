package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jward/docref"
	"github.com/jward/docref/internal/config"
	dlog "github.com/jward/docref/internal/log"
	"github.com/jward/docref/internal/metrics"
	"github.com/jward/docref/scripts"
)

const builtinPrefix = "builtin:"

var (
	flagConfig      string
	flagDB          string
	flagFormat      string
	flagLogLevel    string
	flagLogFormat   string
	flagMetricsFile string
	flagNoReport    bool
	flagKeepBuilds  int
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "docref",
	Short:         "Resolve cross-document references in Markdown content",
	Long:          "docref rewrites ref:<id> and repo:<path> link tokens into site and repository URLs, and records each build in a SQLite report.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run; prints help by default.
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default: docref.yaml or .docref/docref.yaml)")
	pf.StringVar(&flagDB, "db", "", "report database path (default: .docref/report.db relative to repo root)")
	pf.StringVar(&flagFormat, "format", "json", "output format: json|text")
	pf.StringVar(&flagLogLevel, "log-level", "warn", "log level: debug|info|warn|error")
	pf.StringVar(&flagLogFormat, "log-format", "text", "log format: text|json")
	pf.StringVar(&flagMetricsFile, "metrics-file", "", "write Prometheus metrics to this file after each build")
	pf.BoolVar(&flagNoReport, "no-report", false, "do not record builds in the report database")
	pf.IntVar(&flagKeepBuilds, "keep-builds", 20, "recorded builds to keep in the report database (0 keeps all)")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(hooksCmd)
}

// loadConfig reads configuration and applies the command's flags on top.
// A positional directory overrides content_root.
func loadConfig(cmd *cobra.Command, args []string) (docref.Config, error) {
	v := viper.New()
	for flag, key := range map[string]string{
		"strict":   "strict",
		"base-url": "base_url",
		"workers":  "workers",
	} {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return docref.Config{}, err
			}
		}
	}
	if len(args) > 0 {
		v.Set("content_root", args[0])
	}
	return config.Load(v, flagConfig)
}

func newLogger() (*logrus.Logger, error) {
	return dlog.New(os.Stderr, flagLogLevel, flagLogFormat)
}

// newEngine builds an Engine for cfg. The returned cleanup closes the
// report store, if one was opened.
func newEngine(cfg docref.Config, log logrus.FieldLogger, m *metrics.Metrics) (*docref.Engine, func(), error) {
	opts := []docref.Option{docref.WithLogger(log), docref.WithMetrics(m)}

	if name, ok := strings.CutPrefix(cfg.HookScript, builtinPrefix); ok {
		cfg.HookScript = scripts.HookPath(name)
		opts = append(opts, docref.WithScriptsFS(scripts.FS))
	}

	cleanup := func() {}
	if !flagNoReport {
		dbPath, err := reportPath(cfg.ContentRoot)
		if err != nil {
			return nil, nil, err
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
		}
		s, err := docref.OpenStore(dbPath)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, docref.WithStore(s))
		cleanup = func() { s.Close() }
	}

	e, err := docref.New(cfg, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return e, cleanup, nil
}

// reportPath resolves the report database for a content root.
func reportPath(contentRoot string) (string, error) {
	abs, err := filepath.Abs(contentRoot)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", contentRoot, err)
	}
	return resolveDBPath(findRepoRoot(abs)), nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root without finding .git.
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from the --db flag or the default.
func resolveDBPath(repoRoot string) string {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) {
			return flagDB
		}
		return filepath.Join(repoRoot, flagDB)
	}
	return filepath.Join(repoRoot, ".docref", "report.db")
}

// builtinHooks returns the hook_script values of the embedded hooks.
func builtinHooks() []string {
	names := scripts.Names()
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = builtinPrefix + n
	}
	return out
}
