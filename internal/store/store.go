package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite build report. It records what each build registered,
// resolved and reported; builds never read it back as input.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS builds (
  id               TEXT PRIMARY KEY,
  started_at       TIMESTAMP NOT NULL,
  finished_at      TIMESTAMP,
  strict           BOOLEAN DEFAULT FALSE,
  status           TEXT NOT NULL DEFAULT 'running',
  registry_hash    TEXT,
  file_count       INTEGER DEFAULT 0,
  diagnostic_count INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS documents (
  id              INTEGER PRIMARY KEY,
  build_id        TEXT NOT NULL REFERENCES builds(id) ON DELETE CASCADE,
  source_file     TEXT NOT NULL,
  canonical_path  TEXT NOT NULL,
  identifier      TEXT,
  title           TEXT,
  content_hash    TEXT,
  changed         BOOLEAN DEFAULT FALSE,
  UNIQUE(build_id, source_file)
);

CREATE TABLE IF NOT EXISTS links (
  id              INTEGER PRIMARY KEY,
  document_id     INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
  kind            TEXT NOT NULL,
  token           TEXT NOT NULL,
  identifier      TEXT,
  target          TEXT,
  status          TEXT NOT NULL,
  line            INTEGER,
  col             INTEGER
);

CREATE TABLE IF NOT EXISTS diagnostics (
  id              INTEGER PRIMARY KEY,
  build_id        TEXT NOT NULL REFERENCES builds(id) ON DELETE CASCADE,
  kind            TEXT NOT NULL,
  file            TEXT NOT NULL,
  line            INTEGER,
  col             INTEGER,
  token           TEXT,
  message         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_builds_started ON builds(started_at);
CREATE INDEX IF NOT EXISTS idx_documents_build_identifier ON documents(build_id, identifier);
CREATE INDEX IF NOT EXISTS idx_links_document ON links(document_id);
CREATE INDEX IF NOT EXISTS idx_links_identifier ON links(identifier);
CREATE INDEX IF NOT EXISTS idx_diagnostics_build ON diagnostics(build_id);
`

// BeginBuild records a running build. An empty ID is assigned a new UUID.
func (s *Store) BeginBuild(b *Build) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.Status == "" {
		b.Status = BuildRunning
	}
	_, err := s.db.Exec(
		"INSERT INTO builds (id, started_at, strict, status) VALUES (?, ?, ?, ?)",
		b.ID, b.StartedAt, b.Strict, b.Status,
	)
	if err != nil {
		return fmt.Errorf("begin build: %w", err)
	}
	return nil
}

// FinishBuild stores the final status and totals of b.
func (s *Store) FinishBuild(b *Build) error {
	_, err := s.db.Exec(
		`UPDATE builds SET finished_at = ?, status = ?, registry_hash = ?,
		 file_count = ?, diagnostic_count = ? WHERE id = ?`,
		b.FinishedAt, b.Status, b.RegistryHash, b.FileCount, b.DiagnosticCount, b.ID,
	)
	if err != nil {
		return fmt.Errorf("finish build: %w", err)
	}
	return nil
}

func (s *Store) InsertDocument(doc *Document) (int64, error) {
	id, err := insertDocumentTx(s.db, doc)
	if err != nil {
		return 0, err
	}
	doc.ID = id
	return id, nil
}

func (s *Store) InsertLink(l *Link) (int64, error) {
	id, err := insertLinkTx(s.db, l)
	if err != nil {
		return 0, err
	}
	l.ID = id
	return id, nil
}

func (s *Store) InsertDiagnostic(d *Diagnostic) (int64, error) {
	id, err := insertDiagnosticTx(s.db, d)
	if err != nil {
		return 0, err
	}
	d.ID = id
	return id, nil
}

// PruneBuilds deletes all but the keep most recent builds and everything
// recorded for them. It returns the number of builds removed.
func (s *Store) PruneBuilds(keep int) (int, error) {
	res, err := s.db.Exec(
		`DELETE FROM builds WHERE id NOT IN (
		   SELECT id FROM builds ORDER BY started_at DESC, rowid DESC LIMIT ?
		 )`, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune builds: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune builds: %w", err)
	}
	return int(n), nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertLinkTx(ex execer, l *Link) (int64, error) {
	res, err := ex.Exec(
		`INSERT INTO links (document_id, kind, token, identifier, target, status, line, col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.DocumentID, l.Kind, l.Token, l.Identifier, l.Target, l.Status, l.Line, l.Col,
	)
	if err != nil {
		return 0, fmt.Errorf("insert link: %w", err)
	}
	return res.LastInsertId()
}

func insertDiagnosticTx(ex execer, d *Diagnostic) (int64, error) {
	res, err := ex.Exec(
		`INSERT INTO diagnostics (build_id, kind, file, line, col, token, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.BuildID, d.Kind, d.File, d.Line, d.Col, d.Token, d.Message,
	)
	if err != nil {
		return 0, fmt.Errorf("insert diagnostic: %w", err)
	}
	return res.LastInsertId()
}

func insertDocumentTx(ex execer, doc *Document) (int64, error) {
	res, err := ex.Exec(
		`INSERT INTO documents (build_id, source_file, canonical_path, identifier, title, content_hash, changed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.BuildID, doc.SourceFile, doc.CanonicalPath, doc.Identifier, doc.Title, doc.ContentHash, doc.Changed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}
	return res.LastInsertId()
}
