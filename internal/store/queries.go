package store

import (
	"database/sql"
	"fmt"
)

const buildColumns = "id, started_at, finished_at, strict, status, COALESCE(registry_hash, ''), file_count, diagnostic_count"

func scanBuild(row interface{ Scan(...any) error }) (*Build, error) {
	b := &Build{}
	var finished sql.NullTime
	if err := row.Scan(&b.ID, &b.StartedAt, &finished, &b.Strict, &b.Status, &b.RegistryHash, &b.FileCount, &b.DiagnosticCount); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		b.FinishedAt = &t
	}
	return b, nil
}

// BuildByID returns the build with the given ID, or nil if none exists.
func (s *Store) BuildByID(id string) (*Build, error) {
	b, err := scanBuild(s.db.QueryRow("SELECT "+buildColumns+" FROM builds WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("build by id: %w", err)
	}
	return b, nil
}

// LatestBuild returns the most recently started finished build, or nil if
// no build has finished.
func (s *Store) LatestBuild() (*Build, error) {
	b, err := scanBuild(s.db.QueryRow(
		"SELECT "+buildColumns+" FROM builds WHERE status != ? ORDER BY started_at DESC, rowid DESC LIMIT 1",
		BuildRunning,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest build: %w", err)
	}
	return b, nil
}

// Builds lists builds newest first. limit <= 0 means all.
func (s *Store) Builds(limit int) ([]*Build, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query("SELECT "+buildColumns+" FROM builds ORDER BY started_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("builds: %w", err)
	}
	defer rows.Close()

	var out []*Build
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, fmt.Errorf("builds: scan: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const documentColumns = "id, build_id, source_file, canonical_path, identifier, COALESCE(title, ''), COALESCE(content_hash, ''), changed"

func scanDocuments(rows *sql.Rows) ([]*Document, error) {
	defer rows.Close()
	var out []*Document
	for rows.Next() {
		d := &Document{}
		var ident sql.NullString
		if err := rows.Scan(&d.ID, &d.BuildID, &d.SourceFile, &d.CanonicalPath, &ident, &d.Title, &d.ContentHash, &d.Changed); err != nil {
			return nil, err
		}
		if ident.Valid {
			v := ident.String
			d.Identifier = &v
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DocumentsByBuild returns every document of a build ordered by source file.
func (s *Store) DocumentsByBuild(buildID string) ([]*Document, error) {
	rows, err := s.db.Query(
		"SELECT "+documentColumns+" FROM documents WHERE build_id = ? ORDER BY source_file", buildID,
	)
	if err != nil {
		return nil, fmt.Errorf("documents by build: %w", err)
	}
	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, fmt.Errorf("documents by build: %w", err)
	}
	return docs, nil
}

// DocumentByIdentifier returns the document declaring identifier in a
// build, or nil.
func (s *Store) DocumentByIdentifier(buildID, identifier string) (*Document, error) {
	rows, err := s.db.Query(
		"SELECT "+documentColumns+" FROM documents WHERE build_id = ? AND identifier = ? ORDER BY id DESC LIMIT 1",
		buildID, identifier,
	)
	if err != nil {
		return nil, fmt.Errorf("document by identifier: %w", err)
	}
	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, fmt.Errorf("document by identifier: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

// DocumentBySource returns the document recorded for sourceFile in a
// build, or nil.
func (s *Store) DocumentBySource(buildID, sourceFile string) (*Document, error) {
	rows, err := s.db.Query(
		"SELECT "+documentColumns+" FROM documents WHERE build_id = ? AND source_file = ?",
		buildID, sourceFile,
	)
	if err != nil {
		return nil, fmt.Errorf("document by source: %w", err)
	}
	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, fmt.Errorf("document by source: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

// LinksByDocument returns the links recorded for a document in source order.
func (s *Store) LinksByDocument(documentID int64) ([]*Link, error) {
	rows, err := s.db.Query(
		`SELECT id, document_id, kind, token, identifier, COALESCE(target, ''), status, line, col
		 FROM links WHERE document_id = ? ORDER BY line, col`, documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("links by document: %w", err)
	}
	defer rows.Close()

	var out []*Link
	for rows.Next() {
		l := &Link{}
		var ident sql.NullString
		if err := rows.Scan(&l.ID, &l.DocumentID, &l.Kind, &l.Token, &ident, &l.Target, &l.Status, &l.Line, &l.Col); err != nil {
			return nil, fmt.Errorf("links by document: scan: %w", err)
		}
		if ident.Valid {
			v := ident.String
			l.Identifier = &v
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Backlinks returns every link in a build whose token names identifier.
// When statuses is non-empty only links with one of those statuses match.
func (s *Store) Backlinks(buildID, identifier string, statuses ...string) ([]*Backlink, error) {
	query := `SELECT d.source_file, d.canonical_path, l.token, COALESCE(l.target, ''), l.status, l.line, l.col
		FROM links l JOIN documents d ON d.id = l.document_id
		WHERE d.build_id = ? AND l.identifier = ?`
	args := []any{buildID, identifier}
	if len(statuses) > 0 {
		query += " AND l.status IN (" + placeholderList(len(statuses)) + ")"
		args = append(args, stringsToArgs(statuses)...)
	}
	query += " ORDER BY d.source_file, l.line, l.col"
	return s.queryBacklinks(query, args...)
}

// LinksByStatus returns the links of a build with the given status.
func (s *Store) LinksByStatus(buildID, status string) ([]*Backlink, error) {
	return s.queryBacklinks(
		`SELECT d.source_file, d.canonical_path, l.token, COALESCE(l.target, ''), l.status, l.line, l.col
		 FROM links l JOIN documents d ON d.id = l.document_id
		 WHERE d.build_id = ? AND l.status = ?
		 ORDER BY d.source_file, l.line, l.col`,
		buildID, status,
	)
}

func (s *Store) queryBacklinks(query string, args ...any) ([]*Backlink, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("backlinks: %w", err)
	}
	defer rows.Close()

	var out []*Backlink
	for rows.Next() {
		b := &Backlink{}
		if err := rows.Scan(&b.SourceFile, &b.CanonicalPath, &b.Token, &b.Target, &b.Status, &b.Line, &b.Col); err != nil {
			return nil, fmt.Errorf("backlinks: scan: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// DiagnosticsByBuild returns a build's diagnostics ordered by location.
// When kinds is non-empty only those kinds are returned.
func (s *Store) DiagnosticsByBuild(buildID string, kinds ...string) ([]*Diagnostic, error) {
	query := `SELECT id, build_id, kind, file, line, col, COALESCE(token, ''), message
		FROM diagnostics WHERE build_id = ?`
	args := []any{buildID}
	if len(kinds) > 0 {
		query += " AND kind IN (" + placeholderList(len(kinds)) + ")"
		args = append(args, stringsToArgs(kinds)...)
	}
	query += " ORDER BY file, line, col, id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("diagnostics by build: %w", err)
	}
	defer rows.Close()

	var out []*Diagnostic
	for rows.Next() {
		d := &Diagnostic{}
		if err := rows.Scan(&d.ID, &d.BuildID, &d.Kind, &d.File, &d.Line, &d.Col, &d.Token, &d.Message); err != nil {
			return nil, fmt.Errorf("diagnostics by build: scan: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
