package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jward/docref"
	"github.com/jward/docref/internal/metrics"
)

var (
	flagOut     string
	flagInPlace bool
	flagDryRun  bool
	flagDiff    bool
)

var buildCmd = &cobra.Command{
	Use:   "build [content-root]",
	Short: "Resolve link tokens and write the rewritten content",
	Long: `Registers every content file's globalReference, then rewrites ref: and repo: links
against the complete registry. Output goes under --out; --in-place rewrites the sources
instead, leaving unresolved links as they are so later builds still report them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBuild(cmd, args, "build")
	},
}

var checkCmd = &cobra.Command{
	Use:   "check [content-root]",
	Short: "Report unresolvable links without writing anything",
	Long:  "Runs a full build without writing output and exits non-zero when any diagnostic is reported.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBuild(cmd, args, "check")
	},
}

func init() {
	for _, cmd := range []*cobra.Command{buildCmd, checkCmd, watchCmd} {
		cmd.Flags().Bool("strict", false, "abort on the first diagnostic")
		cmd.Flags().String("base-url", "", "URL prefix of canonical paths")
		cmd.Flags().Int("workers", 0, "worker goroutines per phase (default: GOMAXPROCS)")
	}
	for _, cmd := range []*cobra.Command{buildCmd, watchCmd} {
		cmd.Flags().StringVar(&flagOut, "out", "", "write output under this directory")
	}
	buildCmd.Flags().BoolVar(&flagInPlace, "in-place", false, "rewrite the source files instead of writing under --out")
	buildCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "build without writing output")
	buildCmd.Flags().BoolVar(&flagDiff, "diff", false, "show a diff of every changed file")
	checkCmd.Flags().BoolVar(&flagDiff, "diff", false, "show a diff of every file a build would change")
}

func runBuild(cmd *cobra.Command, args []string, command string) error {
	if err := checkOutputFlags(command); err != nil {
		return outputError(command, err)
	}
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return outputError(command, err)
	}
	log, err := newLogger()
	if err != nil {
		return outputError(command, err)
	}
	m := newMetrics()

	e, cleanup, err := newEngine(cfg, log, m)
	if err != nil {
		return outputError(command, err)
	}
	defer cleanup()

	write := command == "build" && !flagDryRun
	summary, buildErr := buildOnce(cmd.Context(), e, log, m, write)
	if buildErr != nil {
		return outputError(command, buildErr)
	}

	if err := outputResult(CLIResult{Command: command, Results: summary.summary}); err != nil {
		return err
	}
	if command == "check" {
		if err := summary.result.Err(); err != nil {
			errorHandled = true
			return err
		}
	}
	return nil
}

// checkOutputFlags rejects a writing command with nowhere to write.
func checkOutputFlags(command string) error {
	switch {
	case flagOut != "" && flagInPlace:
		return errors.New("--out and --in-place cannot be combined")
	case command == "watch" && flagOut == "":
		return errors.New("watch requires --out")
	case command == "build" && !flagDryRun && flagOut == "" && !flagInPlace:
		return errors.New("build requires --out, --in-place or --dry-run")
	}
	return nil
}

type buildOutcome struct {
	result  *docref.Result
	summary CLIBuildSummary
}

// buildOnce runs one full build and, when write is set, writes its output
// under --out, or over the sources with an empty --out.
func buildOnce(ctx context.Context, e *docref.Engine, log logrus.FieldLogger, m *metrics.Metrics, write bool) (*buildOutcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	res, err := e.BuildAll(ctx)
	writeMetrics(m, log)
	if err != nil {
		return nil, err
	}

	written := 0
	if write {
		if written, err = e.WriteOutputs(res, flagOut); err != nil {
			return nil, err
		}
	}
	if flagDiff {
		showDiffs(diffWriter(), e.Config().ContentRoot, res)
	}
	if s := e.Store(); s != nil && flagKeepBuilds > 0 {
		if n, err := s.PruneBuilds(flagKeepBuilds); err != nil {
			log.WithError(err).Warn("old builds not pruned")
		} else if n > 0 {
			log.WithField("builds", n).Debug("pruned old builds")
		}
	}

	log.WithFields(logrus.Fields{
		"files":       len(res.Files),
		"changed":     len(res.Changed()),
		"written":     written,
		"diagnostics": len(res.Diagnostics),
		"duration":    time.Since(start).Round(time.Millisecond),
	}).Info("build complete")

	return &buildOutcome{
		result:  res,
		summary: toCLIBuildSummary(e.Config(), res, written),
	}, nil
}

func newMetrics() *metrics.Metrics {
	if flagMetricsFile == "" {
		return nil
	}
	return metrics.New()
}

func writeMetrics(m *metrics.Metrics, log logrus.FieldLogger) {
	if m == nil {
		return
	}
	if err := m.WriteTextfile(flagMetricsFile); err != nil {
		log.WithError(err).Warn("metrics not written")
	}
}

// diffWriter keeps diffs off stdout when stdout carries JSON.
func diffWriter() io.Writer {
	if flagFormat == "text" {
		return os.Stdout
	}
	return os.Stderr
}

func showDiffs(w io.Writer, contentRoot string, res *docref.Result) {
	root, _ := filepath.Abs(contentRoot)
	for _, f := range res.Changed() {
		name := f.SourceFile
		if rel, err := filepath.Rel(root, f.SourceFile); err == nil {
			name = filepath.ToSlash(rel)
		}
		writeDiff(w, name, string(f.Original), string(f.Output), !color.NoColor)
		fmt.Fprintln(w)
	}
}
