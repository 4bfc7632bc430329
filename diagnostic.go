package docref

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"
)

// DiagnosticKind names a class of build problem.
type DiagnosticKind string

const (
	MissingReference    DiagnosticKind = "missing-reference"
	DuplicateIdentifier DiagnosticKind = "duplicate-identifier"
	SelfReference       DiagnosticKind = "self-reference"
	MissingRepoPath     DiagnosticKind = "missing-repo-path"
	MissingIdentifier   DiagnosticKind = "missing-identifier"
)

// Diagnostic is a located, human-readable build problem.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	File    string         `json:"file"`
	Line    int            `json:"line,omitempty"`
	Column  int            `json:"column,omitempty"`
	Token   string         `json:"token,omitempty"`
	Message string         `json:"message"`
}

// Location renders file:line:column, omitting unknown parts.
func (d Diagnostic) Location() string {
	switch {
	case d.Line == 0:
		return d.File
	case d.Column == 0:
		return fmt.Sprintf("%s:%d", d.File, d.Line)
	default:
		return fmt.Sprintf("%s:%d:%d", d.File, d.Line, d.Column)
	}
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s: %s", d.Location(), d.Kind, d.Message)
}

// StrictError aborts a strict-mode build at the first diagnostic.
type StrictError struct {
	Diagnostic Diagnostic
}

func (e *StrictError) Error() string {
	return "docref: strict mode: " + e.Diagnostic.Error()
}

func (e *StrictError) Unwrap() error { return e.Diagnostic }

// BuildError summarizes the diagnostics of a permissive build.
type BuildError struct {
	Diagnostics []Diagnostic
}

func (e *BuildError) Error() string {
	if len(e.Diagnostics) == 1 {
		return "docref: build had 1 diagnostic: " + e.Diagnostics[0].Error()
	}
	return fmt.Sprintf("docref: build had %d diagnostics, first: %s", len(e.Diagnostics), e.Diagnostics[0].Error())
}

// Reporter applies the error policy. In strict mode Report returns a
// *StrictError for the caller to propagate; in permissive mode it logs a
// warning and returns nil. Every diagnostic is recorded either way. Safe
// for concurrent use.
type Reporter struct {
	strict   bool
	log      logrus.FieldLogger
	onReport func(Diagnostic)

	mu    sync.Mutex
	diags []Diagnostic
}

// NewReporter creates a Reporter. onReport, if non-nil, is called for every
// diagnostic.
func NewReporter(strict bool, log logrus.FieldLogger, onReport func(Diagnostic)) *Reporter {
	if log == nil {
		log = discardLogger()
	}
	return &Reporter{strict: strict, log: log, onReport: onReport}
}

// Strict reports whether the reporter aborts on the first diagnostic.
func (r *Reporter) Strict() bool { return r.strict }

// Report records d and applies the policy.
func (r *Reporter) Report(d Diagnostic) error {
	r.mu.Lock()
	r.diags = append(r.diags, d)
	r.mu.Unlock()

	if r.onReport != nil {
		r.onReport(d)
	}
	if r.strict {
		return &StrictError{Diagnostic: d}
	}
	r.log.WithFields(logrus.Fields{
		"kind":     string(d.Kind),
		"location": d.Location(),
	}).Warn(d.Message)
	return nil
}

// Diagnostics returns the recorded diagnostics ordered by file and position.
func (r *Reporter) Diagnostics() []Diagnostic {
	r.mu.Lock()
	out := slices.Clone(r.diags)
	r.mu.Unlock()
	sortDiagnostics(out)
	return out
}

func sortDiagnostics(diags []Diagnostic) {
	slices.SortStableFunc(diags, func(a, b Diagnostic) int {
		return cmp.Or(
			cmp.Compare(a.File, b.File),
			cmp.Compare(a.Line, b.Line),
			cmp.Compare(a.Column, b.Column),
		)
	})
}
