package store

import "time"

// Build statuses.
const (
	BuildRunning = "running"
	BuildOK      = "ok"
	BuildFailed  = "failed"
)

// Link statuses mirror the resolver's outcome.
const (
	LinkPlain      = "plain"
	LinkResolved   = "resolved"
	LinkUnresolved = "unresolved"
)

type Build struct {
	ID              string
	StartedAt       time.Time
	FinishedAt      *time.Time
	Strict          bool
	Status          string
	RegistryHash    string
	FileCount       int
	DiagnosticCount int
}

type Document struct {
	ID            int64
	BuildID       string
	SourceFile    string
	CanonicalPath string
	Identifier    *string
	Title         string
	ContentHash   string
	Changed       bool
}

type Link struct {
	ID         int64
	DocumentID int64
	Kind       string
	Token      string
	Identifier *string
	Target     string
	Status     string
	Line       int
	Col        int
}

type Diagnostic struct {
	ID      int64
	BuildID string
	Kind    string
	File    string
	Line    int
	Col     int
	Token   string
	Message string
}

// Query result types

// Backlink is a resolved or unresolved link pointing at an identifier,
// with the document it appears in.
type Backlink struct {
	SourceFile    string
	CanonicalPath string
	Token         string
	Target        string
	Status        string
	Line          int
	Col           int
}
