package docref

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jward/docref/internal/markdown"
	"github.com/jward/docref/internal/store"
)

// fileState carries one file through both phases.
type fileState struct {
	path      string
	content   []byte
	doc       *markdown.Document
	canonical string
	meta      Metadata

	outcomes []LinkOutcome
	output   []byte
	source   []byte
	changed  bool

	// batch buffers the file's report rows until the serial commit.
	batch *store.BatchedStore
}

// Build runs a full build over paths:
//
//	Phase 1 (parallel): read, parse and decode the metadata of each file.
//	Registration:       register every file's identifier, serially in the
//	                    order of paths, so a duplicate identifier always
//	                    resolves to the same winner.
//	Barrier:            prune records of files not seen in this build.
//	Phase 2 (parallel): resolve and rewrite every file's links against the
//	                    now-complete registry.
//	Commit (serial):    write report batches to the store, if any.
//
// In strict mode the first diagnostic cancels the build and is returned as
// a *StrictError alongside the partial result. Other failures (unreadable
// files, invalid front matter, hook errors) are aggregated into the
// returned error. Diagnostics of a permissive build are in the result; see
// Result.Err.
func (e *Engine) Build(ctx context.Context, paths []string) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	reporter := NewReporter(e.cfg.Strict, e.log, func(d Diagnostic) {
		e.metrics.Diagnostic(string(d.Kind))
	})
	registrar := NewRegistrar(e.cfg, e.registry, reporter, e.log)
	registrar.OnRegister = func(Record) { e.metrics.Registered() }
	resolver := NewResolver(e.cfg, e.registry, reporter)
	resolver.Hook = e.hook
	resolver.OnLink = func(o LinkOutcome) { e.metrics.Link(o.Kind.String(), string(o.Status)) }

	res := &Result{Generation: e.registry.BeginGeneration()}
	var build *store.Build
	if e.store != nil {
		build = &store.Build{StartedAt: start.UTC(), Strict: e.cfg.Strict}
		if err := e.store.BeginBuild(build); err != nil {
			return nil, fmt.Errorf("docref: record build: %w", err)
		}
		res.BuildID = build.ID
	}

	log := e.log.WithFields(logrus.Fields{"generation": res.Generation, "files": len(paths)})
	log.Debug("build started")

	// ---- Phase 1: load ----
	files := make([]*fileState, len(paths))
	err := e.forEach(ctx, "load", len(paths), func(ctx context.Context, i int) error {
		f, err := e.loadFile(ctx, paths[i])
		files[i] = f
		return err
	})

	// ---- Registration ----
	if err == nil {
		err = registerAll(ctx, registrar, files)
	}

	// ---- Barrier ----
	if err == nil {
		res.Pruned = e.registry.Prune()
		for _, rec := range res.Pruned {
			log.WithFields(logrus.Fields{
				"identifier": rec.Identifier,
				"path":       rec.CanonicalPath,
			}).Debug("identifier pruned")
		}

		// ---- Phase 2: resolution ----
		err = e.forEach(ctx, "resolution", len(files), func(ctx context.Context, i int) error {
			return e.resolveFile(ctx, resolver, files[i], res.BuildID)
		})
	}

	res.Diagnostics = reporter.Diagnostics()
	res.Records = e.registry.Snapshot()
	res.RegistryHash = e.registry.Hash()
	for _, f := range files {
		if f == nil || f.output == nil {
			continue
		}
		res.Files = append(res.Files, f.result())
	}

	// ---- Commit ----
	if build != nil {
		if cerr := e.commit(build, res, files, err); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}

	res.Duration = time.Since(start)
	e.metrics.ObserveBuild(res.Duration, errors.Join(err, res.Err()))
	log.WithFields(logrus.Fields{
		"diagnostics": len(res.Diagnostics),
		"duration":    res.Duration,
	}).Debug("build finished")
	return res, err
}

// forEach runs fn for every index in [0, n) on a worker pool. The first
// *StrictError cancels the remaining work and is returned as is; other
// errors are collected and summarized.
func (e *Engine) forEach(parent context.Context, stage string, n int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return parent.Err()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	numWorkers := 1
	if e.useParallel {
		numWorkers = min(e.workers, n)
	}

	workCh := make(chan int, n)
	for i := range n {
		workCh <- i
	}
	close(workCh)

	type result struct {
		i   int
		err error
	}
	resultCh := make(chan result, n)

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workCh {
				if ctx.Err() != nil {
					return
				}
				resultCh <- result{i: i, err: fn(ctx, i)}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var (
		strict *StrictError
		errs   []error
	)
	for res := range resultCh {
		if res.err == nil {
			continue
		}
		var se *StrictError
		if errors.As(res.err, &se) {
			if strict == nil {
				strict = se
				cancel()
			}
			continue
		}
		if strict != nil && errors.Is(res.err, context.Canceled) {
			continue
		}
		errs = append(errs, res.err)
	}

	if strict != nil {
		return strict
	}
	if len(errs) > 0 {
		return fmt.Errorf("docref: %s had %d error(s): %w", stage, len(errs), errs[0])
	}
	return parent.Err()
}

// loadFile does phase 1 work for a single file.
func (e *Engine) loadFile(ctx context.Context, path string) (*fileState, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := e.parse(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	meta, err := DecodeMetadata(doc.FrontMatter, doc.Heading)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	canonical, err := CanonicalPath(e.root, e.cfg.BaseURL, abs)
	if err != nil {
		return nil, err
	}

	return &fileState{
		path:      path,
		content:   content,
		doc:       doc,
		canonical: canonical,
		meta:      meta,
	}, nil
}

// registerAll registers files in order. Last write wins on a duplicate
// identifier, so the order of paths decides the winner.
func registerAll(ctx context.Context, registrar *Registrar, files []*fileState) error {
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := registrar.RegisterMetadata(f.path, f.canonical, f.meta); err != nil {
			return err
		}
	}
	return nil
}

// resolveFile does phase 2 work for a single file.
func (e *Engine) resolveFile(ctx context.Context, resolver *Resolver, f *fileState, buildID string) error {
	outcomes, err := resolver.ResolveLinks(ctx, f.path, f.doc.Links)
	f.outcomes = outcomes
	if err != nil {
		return err
	}
	f.output = markdown.Rewrite(f.content, f.doc.Links)
	f.source = markdown.RewriteSource(f.content, f.doc.Links)
	f.changed = markdown.Changed(f.doc.Links)

	if buildID != "" {
		f.batch = store.NewBatchedStore()
		if err := f.record(f.batch, buildID); err != nil {
			return fmt.Errorf("record %s: %w", f.path, err)
		}
	}
	return nil
}

// parse returns a private copy of the parsed document, reusing the cached
// parse of identical content.
func (e *Engine) parse(ctx context.Context, content []byte) (*markdown.Document, error) {
	key := store.ContentHash(content)
	if v, ok := e.cache.Get(key); ok {
		return v.(*markdown.Document).Clone(), nil
	}
	doc, err := markdown.Parse(ctx, content)
	if err != nil {
		return nil, err
	}
	e.cache.SetDefault(key, doc)
	return doc.Clone(), nil
}

// commit writes the per-file batches and the build's diagnostics, then
// finalizes the build row.
func (e *Engine) commit(build *store.Build, res *Result, files []*fileState, buildErr error) error {
	var errs []error
	for _, f := range files {
		if f == nil || f.batch == nil {
			continue
		}
		if err := e.store.CommitBatch(f.batch); err != nil {
			errs = append(errs, fmt.Errorf("commit %s: %w", f.path, err))
		}
	}

	diags := store.NewBatchedStore()
	for _, d := range res.Diagnostics {
		_, _ = diags.InsertDiagnostic(&store.Diagnostic{
			BuildID: build.ID,
			Kind:    string(d.Kind),
			File:    d.File,
			Line:    d.Line,
			Col:     d.Column,
			Token:   d.Token,
			Message: d.Message,
		})
	}
	if err := e.store.CommitBatch(diags); err != nil {
		errs = append(errs, fmt.Errorf("commit diagnostics: %w", err))
	}

	finished := time.Now().UTC()
	build.FinishedAt = &finished
	build.Status = store.BuildOK
	if buildErr != nil {
		build.Status = store.BuildFailed
	}
	build.RegistryHash = res.RegistryHash
	build.FileCount = len(res.Files)
	build.DiagnosticCount = len(res.Diagnostics)
	if err := e.store.FinishBuild(build); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("docref: record build had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

func (f *fileState) identifier() string {
	if d, ok := f.meta.Declaration.(Declared); ok {
		return d.Identifier
	}
	return ""
}

func (f *fileState) result() FileResult {
	return FileResult{
		SourceFile:    f.path,
		CanonicalPath: f.canonical,
		Identifier:    f.identifier(),
		Title:         f.meta.Title,
		Original:      f.content,
		Output:        f.output,
		InPlace:       f.source,
		Changed:       f.changed,
		Links:         f.outcomes,
	}
}

// record buffers the file's document and link rows.
func (f *fileState) record(ds store.DataStore, buildID string) error {
	doc := &store.Document{
		BuildID:       buildID,
		SourceFile:    f.path,
		CanonicalPath: f.canonical,
		Title:         f.meta.Title,
		ContentHash:   store.ContentHash(f.content),
		Changed:       f.changed,
	}
	if id := f.identifier(); id != "" {
		doc.Identifier = &id
	}
	docID, err := ds.InsertDocument(doc)
	if err != nil {
		return err
	}
	for _, o := range f.outcomes {
		l := &store.Link{
			DocumentID: docID,
			Kind:       o.Kind.String(),
			Token:      o.Token,
			Target:     o.Target,
			Status:     string(o.Status),
			Line:       o.Line,
			Col:        o.Column,
		}
		if o.Identifier != "" {
			id := o.Identifier
			l.Identifier = &id
		}
		if _, err := ds.InsertLink(l); err != nil {
			return err
		}
	}
	return nil
}
