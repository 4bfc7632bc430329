package store

// DataStore is the write interface used while a build runs. Both Store
// (direct SQLite) and BatchedStore (in-memory buffering for parallel
// workers) implement it.
type DataStore interface {
	InsertDocument(doc *Document) (int64, error)
	InsertLink(l *Link) (int64, error)
	InsertDiagnostic(d *Diagnostic) (int64, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
