package docref

import (
	"errors"
	"fmt"

	"github.com/jward/docref/internal/store"
)

// ErrNoBuild is returned when the store has no finished build to query.
var ErrNoBuild = errors.New("docref: no finished build recorded")

// QueryBuilder answers questions about a recorded build. By default it
// reads the latest finished build.
type QueryBuilder struct {
	store   *store.Store
	buildID string
}

// NewQueryBuilder creates a QueryBuilder over s.
func NewQueryBuilder(s *Store) *QueryBuilder {
	return &QueryBuilder{store: s}
}

// ForBuild returns a QueryBuilder pinned to the build with the given ID.
func (q *QueryBuilder) ForBuild(id string) *QueryBuilder {
	return &QueryBuilder{store: q.store, buildID: id}
}

// Build returns the build the queries read.
func (q *QueryBuilder) Build() (*Build, error) {
	if q.store == nil {
		return nil, ErrNoStore
	}
	var (
		b   *Build
		err error
	)
	if q.buildID != "" {
		b, err = q.store.BuildByID(q.buildID)
	} else {
		b, err = q.store.LatestBuild()
	}
	if err != nil {
		return nil, fmt.Errorf("docref: query: %w", err)
	}
	if b == nil {
		if q.buildID != "" {
			return nil, fmt.Errorf("docref: build %s not found", q.buildID)
		}
		return nil, ErrNoBuild
	}
	return b, nil
}

// Identifiers returns the documents that declared an identifier, ordered
// by source file.
func (q *QueryBuilder) Identifiers() ([]*Document, error) {
	b, err := q.Build()
	if err != nil {
		return nil, err
	}
	docs, err := q.store.DocumentsByBuild(b.ID)
	if err != nil {
		return nil, err
	}
	out := docs[:0]
	for _, d := range docs {
		if d.Identifier != nil {
			out = append(out, d)
		}
	}
	return out, nil
}

// Definition returns the document declaring identifier, or nil.
func (q *QueryBuilder) Definition(identifier string) (*Document, error) {
	b, err := q.Build()
	if err != nil {
		return nil, err
	}
	return q.store.DocumentByIdentifier(b.ID, identifier)
}

// Backlinks returns every link naming identifier.
func (q *QueryBuilder) Backlinks(identifier string) ([]*Backlink, error) {
	b, err := q.Build()
	if err != nil {
		return nil, err
	}
	return q.store.Backlinks(b.ID, identifier)
}

// Links returns the document recorded for sourceFile and its links in
// source order. The document is nil when the file was not part of the
// build.
func (q *QueryBuilder) Links(sourceFile string) (*Document, []*StoredLink, error) {
	b, err := q.Build()
	if err != nil {
		return nil, nil, err
	}
	doc, err := q.store.DocumentBySource(b.ID, sourceFile)
	if err != nil || doc == nil {
		return nil, nil, err
	}
	links, err := q.store.LinksByDocument(doc.ID)
	if err != nil {
		return nil, nil, err
	}
	return doc, links, nil
}

// BrokenLinks returns the links that could not be resolved.
func (q *QueryBuilder) BrokenLinks() ([]*Backlink, error) {
	b, err := q.Build()
	if err != nil {
		return nil, err
	}
	return q.store.LinksByStatus(b.ID, store.LinkUnresolved)
}

// Diagnostics returns the build's diagnostics, optionally only the given
// kinds.
func (q *QueryBuilder) Diagnostics(kinds ...DiagnosticKind) ([]*StoredDiagnostic, error) {
	b, err := q.Build()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return q.store.DiagnosticsByBuild(b.ID, names...)
}
