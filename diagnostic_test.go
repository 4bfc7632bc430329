package docref

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReporter_PermissiveLogsAndContinues(t *testing.T) {
	t.Parallel()

	logger, hook := test.NewNullLogger()
	var seen []DiagnosticKind
	r := NewReporter(false, logger, func(d Diagnostic) { seen = append(seen, d.Kind) })

	err := r.Report(Diagnostic{Kind: MissingReference, File: "b.md", Line: 3, Column: 7, Message: "no x"})
	require.NoError(t, err)

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "no x", entry.Message)
	assert.Equal(t, "missing-reference", entry.Data["kind"])
	assert.Equal(t, "b.md:3:7", entry.Data["location"])
	assert.Equal(t, []DiagnosticKind{MissingReference}, seen)
}

func TestReporter_StrictReturnsError(t *testing.T) {
	t.Parallel()

	logger, hook := test.NewNullLogger()
	r := NewReporter(true, logger, nil)
	assert.True(t, r.Strict())

	d := Diagnostic{Kind: SelfReference, File: "a.md", Line: 2, Column: 1, Message: "self"}
	err := r.Report(d)
	require.Error(t, err)

	var se *StrictError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, d, se.Diagnostic)
	assert.Equal(t, "docref: strict mode: a.md:2:1: self-reference: self", err.Error())

	var unwrapped Diagnostic
	require.True(t, errors.As(err, &unwrapped))
	assert.Equal(t, SelfReference, unwrapped.Kind)

	assert.Empty(t, hook.AllEntries(), "strict mode does not log")
	assert.Len(t, r.Diagnostics(), 1)
}

func TestReporter_DiagnosticsSorted(t *testing.T) {
	t.Parallel()

	r := NewReporter(false, nil, nil)
	for _, d := range []Diagnostic{
		{Kind: MissingReference, File: "b.md", Line: 1, Column: 1},
		{Kind: MissingReference, File: "a.md", Line: 9, Column: 2},
		{Kind: DuplicateIdentifier, File: "a.md", Line: 2},
		{Kind: SelfReference, File: "a.md", Line: 9, Column: 1},
	} {
		require.NoError(t, r.Report(d))
	}

	got := r.Diagnostics()
	require.Len(t, got, 4)
	assert.Equal(t, DuplicateIdentifier, got[0].Kind)
	assert.Equal(t, SelfReference, got[1].Kind)
	assert.Equal(t, 2, got[2].Column)
	assert.Equal(t, "b.md", got[3].File)
}

func TestDiagnostic_Location(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a.md", Diagnostic{File: "a.md"}.Location())
	assert.Equal(t, "a.md:4", Diagnostic{File: "a.md", Line: 4}.Location())
	assert.Equal(t, "a.md:4:2", Diagnostic{File: "a.md", Line: 4, Column: 2}.Location())
}

func TestBuildError_Message(t *testing.T) {
	t.Parallel()

	one := &BuildError{Diagnostics: []Diagnostic{{Kind: MissingReference, File: "a.md", Message: "m"}}}
	assert.Equal(t, "docref: build had 1 diagnostic: a.md: missing-reference: m", one.Error())

	two := &BuildError{Diagnostics: []Diagnostic{
		{Kind: MissingReference, File: "a.md", Message: "m"},
		{Kind: SelfReference, File: "b.md", Message: "s"},
	}}
	assert.Contains(t, two.Error(), "build had 2 diagnostics")
	assert.Contains(t, two.Error(), "a.md: missing-reference: m")
}
