package main

import (
	"time"

	"github.com/jward/docref"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIBuildSummary describes a finished build.
type CLIBuildSummary struct {
	BuildID      string          `json:"build_id,omitempty"`
	ContentRoot  string          `json:"content_root"`
	Strict       bool            `json:"strict"`
	Files        int             `json:"files"`
	Changed      []string        `json:"changed"`
	Written      int             `json:"written"`
	Identifiers  int             `json:"identifiers"`
	Pruned       []string        `json:"pruned,omitempty"`
	RegistryHash string          `json:"registry_hash"`
	DurationMS   int64           `json:"duration_ms"`
	Diagnostics  []CLIDiagnostic `json:"diagnostics"`
}

// CLIDiagnostic is a JSON-friendly diagnostic.
type CLIDiagnostic struct {
	Kind    string `json:"kind"`
	File    string `json:"file"`
	Line    int    `json:"line,omitempty"`
	Col     int    `json:"col,omitempty"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
}

// CLIBuild is a JSON-friendly recorded build.
type CLIBuild struct {
	ID              string     `json:"id"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	Strict          bool       `json:"strict"`
	Status          string     `json:"status"`
	RegistryHash    string     `json:"registry_hash"`
	FileCount       int        `json:"file_count"`
	DiagnosticCount int        `json:"diagnostic_count"`
}

// CLIDocument is a JSON-friendly recorded document.
type CLIDocument struct {
	Identifier    string `json:"identifier,omitempty"`
	CanonicalPath string `json:"canonical_path"`
	Title         string `json:"title,omitempty"`
	File          string `json:"file"`
	Changed       bool   `json:"changed"`
}

// CLILink is a JSON-friendly link location.
type CLILink struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Col    int    `json:"col"`
	Token  string `json:"token"`
	Target string `json:"target,omitempty"`
	Status string `json:"status"`
}

func toCLIDiagnostic(d docref.Diagnostic) CLIDiagnostic {
	return CLIDiagnostic{
		Kind:    string(d.Kind),
		File:    d.File,
		Line:    d.Line,
		Col:     d.Column,
		Token:   d.Token,
		Message: d.Message,
	}
}

func toCLIStoredDiagnostic(d *docref.StoredDiagnostic) CLIDiagnostic {
	return CLIDiagnostic{
		Kind:    d.Kind,
		File:    d.File,
		Line:    d.Line,
		Col:     d.Col,
		Token:   d.Token,
		Message: d.Message,
	}
}

func toCLIBuild(b *docref.Build) CLIBuild {
	return CLIBuild{
		ID:              b.ID,
		StartedAt:       b.StartedAt,
		FinishedAt:      b.FinishedAt,
		Strict:          b.Strict,
		Status:          b.Status,
		RegistryHash:    b.RegistryHash,
		FileCount:       b.FileCount,
		DiagnosticCount: b.DiagnosticCount,
	}
}

func toCLIDocument(d *docref.Document) CLIDocument {
	doc := CLIDocument{
		CanonicalPath: d.CanonicalPath,
		Title:         d.Title,
		File:          d.SourceFile,
		Changed:       d.Changed,
	}
	if d.Identifier != nil {
		doc.Identifier = *d.Identifier
	}
	return doc
}

func toCLILink(b *docref.Backlink) CLILink {
	return CLILink{
		File:   b.SourceFile,
		Line:   b.Line,
		Col:    b.Col,
		Token:  b.Token,
		Target: b.Target,
		Status: b.Status,
	}
}

func toCLIBuildSummary(cfg docref.Config, res *docref.Result, written int) CLIBuildSummary {
	s := CLIBuildSummary{
		BuildID:      res.BuildID,
		ContentRoot:  cfg.ContentRoot,
		Strict:       cfg.Strict,
		Files:        len(res.Files),
		Changed:      []string{},
		Written:      written,
		Identifiers:  len(res.Records),
		RegistryHash: res.RegistryHash,
		DurationMS:   res.Duration.Milliseconds(),
		Diagnostics:  []CLIDiagnostic{},
	}
	for _, f := range res.Changed() {
		s.Changed = append(s.Changed, f.SourceFile)
	}
	for _, r := range res.Pruned {
		s.Pruned = append(s.Pruned, r.Identifier)
	}
	for _, d := range res.Diagnostics {
		s.Diagnostics = append(s.Diagnostics, toCLIDiagnostic(d))
	}
	return s
}
