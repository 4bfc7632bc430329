package docref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	goruntime "runtime"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/jward/docref/internal/metrics"
	"github.com/jward/docref/internal/registry"
	docrefrt "github.com/jward/docref/internal/runtime"
	"github.com/jward/docref/internal/store"
)

const (
	parseCacheTTL     = 30 * time.Minute
	parseCacheCleanup = 10 * time.Minute
)

// ErrNoStore is returned by report queries on an Engine without a store.
var ErrNoStore = errors.New("docref: no report store configured")

// Engine orchestrates builds: discovery, registration, the barrier,
// resolution and the optional build report.
type Engine struct {
	cfg      Config
	root     string // absolute content root
	log      logrus.FieldLogger
	registry *registry.Registry
	store    *store.Store
	metrics  *metrics.Metrics
	hook     Hook
	hookFS   fs.FS

	// cache holds pristine parsed documents keyed by content hash.
	cache *gocache.Cache

	useParallel bool
	workers     int

	mu sync.Mutex // serializes builds
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithStore records every build in s. The caller owns s.
func WithStore(s *Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithParallel controls the worker pool. When true (default) both phases
// fan out over Config.Workers goroutines; when false files are processed
// one at a time in order.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithMetrics updates m during builds.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithHook consults h for every resolved link. It takes precedence over
// Config.HookScript.
func WithHook(h Hook) Option {
	return func(e *Engine) {
		e.hook = h
	}
}

// WithScriptsFS loads Config.HookScript and its imports from fsys instead
// of disk.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.hookFS = fsys
	}
}

// New validates cfg and creates an Engine with an empty registry.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("docref: %w", err)
	}
	root, err := filepath.Abs(cfg.ContentRoot)
	if err != nil {
		return nil, fmt.Errorf("docref: content root: %w", err)
	}

	e := &Engine{
		cfg:         cfg,
		root:        root,
		registry:    registry.New(),
		cache:       gocache.New(parseCacheTTL, parseCacheCleanup),
		useParallel: true,
		workers:     cfg.Workers,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = discardLogger()
	}
	if e.workers <= 0 {
		e.workers = goruntime.GOMAXPROCS(0)
	}

	if e.hook == nil && cfg.HookScript != "" {
		rtOpts := []docrefrt.RuntimeOption{
			docrefrt.WithLookup(e.registry.Lookup),
			docrefrt.WithLogger(e.log),
		}
		if e.hookFS != nil {
			rtOpts = append(rtOpts, docrefrt.WithRuntimeFS(e.hookFS))
		}
		rt, err := docrefrt.NewRuntime(cfg.HookScript, rtOpts...)
		if err != nil {
			return nil, fmt.Errorf("docref: hook: %w", err)
		}
		e.hook = rt
	}
	return e, nil
}

// OpenStore opens (creating if needed) a report database at dbPath.
func OpenStore(dbPath string) (*Store, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("docref: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("docref: migrate: %w", err)
	}
	return s, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Registry returns the reference registry shared by all builds.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Store returns the report store, or nil.
func (e *Engine) Store() *Store {
	return e.store
}

// Query returns a QueryBuilder over the report store.
func (e *Engine) Query() *QueryBuilder {
	return NewQueryBuilder(e.store)
}

// Discover returns the content files under root that match the configured
// include patterns and none of the exclude patterns, sorted.
func (e *Engine) Discover(root string) ([]string, error) {
	fsys := os.DirFS(root)
	seen := make(map[string]bool)
	var paths []string
	for _, pattern := range e.cfg.Include {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("docref: discover %q: %w", pattern, err)
		}
		for _, m := range matches {
			if seen[m] || e.excluded(m) {
				continue
			}
			seen[m] = true
			paths = append(paths, filepath.Join(root, filepath.FromSlash(m)))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (e *Engine) excluded(rel string) bool {
	for _, pattern := range e.cfg.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// BuildAll discovers the content root and builds every file found. Source
// paths in the result are absolute.
func (e *Engine) BuildAll(ctx context.Context) (*Result, error) {
	paths, err := e.Discover(e.root)
	if err != nil {
		return nil, err
	}
	return e.Build(ctx, paths)
}

// FileResult is the outcome of one file.
type FileResult struct {
	SourceFile    string
	CanonicalPath string
	// Identifier is empty for undeclared files.
	Identifier string
	Title      string
	Original   []byte
	Output     []byte
	// InPlace is Output with unresolved links left as they were, for
	// writing back over SourceFile.
	InPlace []byte
	Changed bool
	Links   []LinkOutcome
}

// Result is the outcome of a build.
type Result struct {
	// BuildID is set when the build was recorded in a store.
	BuildID    string
	Generation int
	Files      []FileResult
	// Diagnostics are ordered by file and position.
	Diagnostics []Diagnostic
	// Records is the registry after the build; Pruned lists records of
	// files that were not part of it.
	Records      []Record
	Pruned       []Record
	RegistryHash string
	Duration     time.Duration
}

// Err returns a *BuildError when the build produced diagnostics.
func (r *Result) Err() error {
	if len(r.Diagnostics) == 0 {
		return nil
	}
	return &BuildError{Diagnostics: r.Diagnostics}
}

// DiagnosticsFor returns the diagnostics reported against sourceFile.
func (r *Result) DiagnosticsFor(sourceFile string) []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.File == sourceFile {
			out = append(out, d)
		}
	}
	return out
}

// Changed returns the files whose output differs from their input.
func (r *Result) Changed() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Changed {
			out = append(out, f)
		}
	}
	return out
}

// WriteOutputs writes build output under outDir, mirroring each file's path
// relative to the content root. With an empty outDir files are rewritten in
// place from FileResult.InPlace, so a later build still reports and can
// still resolve every link this one left unresolved. It returns the number
// of files written.
func (e *Engine) WriteOutputs(res *Result, outDir string) (int, error) {
	n := 0
	for _, f := range res.Files {
		dest, data := f.SourceFile, f.Output
		if outDir != "" {
			abs, err := filepath.Abs(f.SourceFile)
			if err != nil {
				return n, fmt.Errorf("docref: write %s: %w", f.SourceFile, err)
			}
			rel, err := filepath.Rel(e.root, abs)
			if err != nil {
				return n, fmt.Errorf("docref: write %s: %w", f.SourceFile, err)
			}
			dest = filepath.Join(outDir, rel)
		} else {
			if bytes.Equal(f.InPlace, f.Original) {
				continue
			}
			data = f.InPlace
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return n, fmt.Errorf("docref: write %s: %w", dest, err)
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return n, fmt.Errorf("docref: write %s: %w", dest, err)
		}
		n++
	}
	return n, nil
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
