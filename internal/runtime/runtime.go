// Package runtime runs user-supplied Risor scripts that may rewrite the URL
// of every resolved link.
package runtime

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
	"github.com/sirupsen/logrus"

	"github.com/jward/docref/internal/registry"
)

// Lookup resolves an identifier against the reference registry.
type Lookup func(identifier string) (registry.Record, bool)

// LinkContext describes the link a hook is asked about. It is exposed to
// scripts as the globals url, kind, identifier, anchor and source_file.
type LinkContext struct {
	URL        string
	Kind       string
	Identifier string
	Anchor     string
	SourceFile string
}

// Runtime evaluates a link rewrite script. Each call gets a fresh VM, so a
// Runtime can be shared by concurrent resolvers.
type Runtime struct {
	scriptPath string
	scriptsDir string
	fsys       fs.FS
	source     string
	lookup     Lookup
	log        logrus.FieldLogger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS loads the script and its imports from fsys instead of disk.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithLogger routes the script's log.Info/Warn/Error calls to l.
func WithLogger(l logrus.FieldLogger) RuntimeOption {
	return func(r *Runtime) {
		r.log = l
	}
}

// WithLookup exposes the registry to scripts through lookup(identifier).
func WithLookup(fn Lookup) RuntimeOption {
	return func(r *Runtime) {
		r.lookup = fn
	}
}

// NewRuntime loads the script at scriptPath. Imports are resolved relative
// to the script's directory.
func NewRuntime(scriptPath string, opts ...RuntimeOption) (*Runtime, error) {
	r := &Runtime{
		scriptPath: scriptPath,
		scriptsDir: filepath.Dir(scriptPath),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		r.log = l
	}
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return nil, err
	}
	r.source = src
	return r, nil
}

// RewriteURL runs the loaded script for link. A string result replaces the
// URL, nil keeps it, anything else is an error.
func (r *Runtime) RewriteURL(ctx context.Context, link LinkContext) (string, error) {
	res, err := r.eval(ctx, r.source, r.scriptPath, linkGlobals(link))
	if err != nil {
		return "", err
	}
	return urlResult(res, link.URL, r.scriptPath)
}

// RunSource evaluates source with the standard globals plus extra and
// returns the script's final value.
func (r *Runtime) RunSource(ctx context.Context, source string, extra map[string]any) (object.Object, error) {
	return r.eval(ctx, source, "<inline>", extra)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extra map[string]any) (object.Object, error) {
	globals := r.buildGlobals(extra)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	res, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return res, nil
}

func urlResult(res object.Object, current, label string) (string, error) {
	if res == nil || res == object.Nil {
		return current, nil
	}
	s, ok := res.(*object.String)
	if !ok {
		return "", fmt.Errorf("runtime: script %s returned %s, want string or nil", label, res.Type())
	}
	return s.Value(), nil
}

func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file. With an fs.FS configured the path is
// taken relative to it.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", path, err)
	}
	return string(data), nil
}

func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"url":         "",
		"kind":        "",
		"identifier":  "",
		"anchor":      "",
		"source_file": "",
		"lookup":      makeLookupFn(r.lookup),
		"log":         mustProxy(&logObject{log: r.log.WithField("hook", r.scriptPath)}),
	}
	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func linkGlobals(link LinkContext) map[string]any {
	return map[string]any{
		"url":         link.URL,
		"kind":        link.Kind,
		"identifier":  link.Identifier,
		"anchor":      link.Anchor,
		"source_file": link.SourceFile,
	}
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
