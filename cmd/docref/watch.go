package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jward/docref/internal/markdown"
	"github.com/jward/docref/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [content-root]",
	Short: "Rebuild whenever content changes",
	Long: `Builds once into --out, then rebuilds on every burst of content file changes until
interrupted. The registry is kept between builds, so moving a file keeps its identifier
and every ref: link to it follows the move.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := checkOutputFlags("watch"); err != nil {
		return outputError("watch", err)
	}
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return outputError("watch", err)
	}
	log, err := newLogger()
	if err != nil {
		return outputError("watch", err)
	}
	m := newMetrics()

	e, cleanup, err := newEngine(cfg, log, m)
	if err != nil {
		return outputError("watch", err)
	}
	defer cleanup()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	wcfg := watch.DefaultConfig(cfg.ContentRoot)
	wcfg.Log = log
	wcfg.Relevant = func(path string) bool {
		return markdown.IsContentFile(filepath.Ext(path))
	}
	w, err := watch.New(wcfg)
	if err != nil {
		return outputError("watch", err)
	}
	changes, err := w.Start()
	if err != nil {
		return outputError("watch", err)
	}
	defer w.Stop()

	rebuild := func() {
		out, err := buildOnce(ctx, e, log, m, true)
		if err != nil {
			log.WithError(err).Error("build failed")
			return
		}
		if err := outputResult(CLIResult{Command: "watch", Results: out.summary}); err != nil {
			log.WithError(err).Error("writing result")
		}
	}

	rebuild()
	log.WithField("root", cfg.ContentRoot).Info("watching for changes")
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			rebuild()
		}
	}
}
