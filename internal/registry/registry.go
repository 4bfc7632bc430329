// Package registry holds the identifier -> registration bindings shared by
// every file of one build.
//
// A Registry enforces two invariants at all times: at most one Record per
// identifier, and at most one identifier per canonical path. All methods are
// safe for concurrent use; writers are serialized by a single mutex so that
// competing registrations of the same identifier resolve last-write-wins.
package registry

import (
	"sort"
	"sync"
)

// Record binds an identifier to the canonical path of the file declaring it.
type Record struct {
	Identifier    string
	CanonicalPath string
	Title         string
	SourceFile    string

	// Generation is the registration pass that last wrote the record.
	Generation int
}

// Outcome describes what a Register call changed.
type Outcome struct {
	// Conflict is set when the identifier was already claimed, in the
	// current generation, by a different canonical path. The new record has
	// replaced it.
	Conflict *Record

	// Moved is set when the identifier was bound to a different canonical
	// path by an earlier generation (the file moved). The stale binding has
	// been replaced without a conflict.
	Moved *Record

	// Evicted lists records removed because they were bound to the same
	// canonical path under a different identifier (the file was re-tagged).
	Evicted []Record
}

// Registry maps identifiers to records.
type Registry struct {
	mu         sync.RWMutex
	byID       map[string]*Record
	byPath     map[string]string // canonical path -> identifier
	generation int
}

// New returns an empty Registry at generation 0.
func New() *Registry {
	return &Registry{
		byID:   make(map[string]*Record),
		byPath: make(map[string]string),
	}
}

// BeginGeneration starts a new registration pass and returns its number.
func (r *Registry) BeginGeneration() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	return r.generation
}

// Generation returns the current registration pass.
func (r *Registry) Generation() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// Register inserts or overwrites the record for rec.Identifier in the
// current generation.
func (r *Registry) Register(rec Record) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec.Generation = r.generation
	var out Outcome

	if existing, ok := r.byID[rec.Identifier]; ok && existing.CanonicalPath != rec.CanonicalPath {
		prev := *existing
		if existing.Generation == r.generation {
			out.Conflict = &prev
		} else {
			out.Moved = &prev
		}
		if r.byPath[existing.CanonicalPath] == rec.Identifier {
			delete(r.byPath, existing.CanonicalPath)
		}
	}

	if id, ok := r.byPath[rec.CanonicalPath]; ok && id != rec.Identifier {
		if stale, ok := r.byID[id]; ok {
			out.Evicted = append(out.Evicted, *stale)
			delete(r.byID, id)
		}
	}

	stored := rec
	r.byID[rec.Identifier] = &stored
	r.byPath[rec.CanonicalPath] = rec.Identifier
	return out
}

// ReleasePath removes the record bound to canonicalPath, if any. Used when a
// file that previously declared an identifier no longer does.
func (r *Registry) ReleasePath(canonicalPath string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPath[canonicalPath]
	if !ok {
		return Record{}, false
	}
	delete(r.byPath, canonicalPath)
	rec := r.byID[id]
	if rec == nil || rec.CanonicalPath != canonicalPath {
		return Record{}, false
	}
	delete(r.byID, id)
	return *rec, true
}

// Prune removes every record not written in the current generation and
// returns them sorted by identifier.
func (r *Registry) Prune() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []Record
	for id, rec := range r.byID {
		if rec.Generation == r.generation {
			continue
		}
		removed = append(removed, *rec)
		delete(r.byID, id)
		if r.byPath[rec.CanonicalPath] == id {
			delete(r.byPath, rec.CanonicalPath)
		}
	}
	sortRecords(removed)
	return removed
}

// Lookup returns the record registered for identifier.
func (r *Registry) Lookup(identifier string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byID[identifier]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Len returns the number of registered identifiers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Snapshot returns a copy of all records sorted by identifier.
func (r *Registry) Snapshot() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.byID))
	for _, rec := range r.byID {
		out = append(out, *rec)
	}
	sortRecords(out)
	return out
}

func sortRecords(recs []Record) {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].Identifier < recs[j].Identifier
	})
}
