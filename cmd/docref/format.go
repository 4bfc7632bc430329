package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// formatBuildText formats a build summary followed by its diagnostics.
func formatBuildText(w io.Writer, s CLIBuildSummary) {
	fmt.Fprintf(w, "Files: %d (changed %d, written %d)\n", s.Files, len(s.Changed), s.Written)
	fmt.Fprintf(w, "Identifiers: %d\n", s.Identifiers)
	if len(s.Pruned) > 0 {
		fmt.Fprintf(w, "Pruned: %s\n", strings.Join(s.Pruned, ", "))
	}
	if s.BuildID != "" {
		fmt.Fprintf(w, "Build: %s\n", s.BuildID)
	}
	if len(s.Diagnostics) > 0 {
		fmt.Fprintln(w)
		formatDiagnosticsText(w, s.Diagnostics)
	}
}

// formatDiagnosticsText formats diagnostics as "file:line:col: kind: message"
// lines, the way compilers report errors.
func formatDiagnosticsText(w io.Writer, diags []CLIDiagnostic) {
	for _, d := range diags {
		loc := d.File
		if d.Line > 0 {
			loc = fmt.Sprintf("%s:%d:%d", d.File, d.Line, d.Col)
		}
		fmt.Fprintf(w, "%s: %s: %s\n", loc, d.Kind, d.Message)
	}
}

// formatDocumentsText formats CLIDocument results as aligned columns.
func formatDocumentsText(w io.Writer, docs []CLIDocument) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "IDENTIFIER\tPATH\tTITLE\tFILE")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Identifier, d.CanonicalPath, d.Title, d.File)
	}
	tw.Flush()
}

// formatLinksText formats CLILink results as aligned columns.
func formatLinksText(w io.Writer, links []CLILink) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LOCATION\tTOKEN\tTARGET\tSTATUS")
	for _, l := range links {
		fmt.Fprintf(tw, "%s:%d:%d\t%s\t%s\t%s\n", l.File, l.Line, l.Col, l.Token, l.Target, l.Status)
	}
	tw.Flush()
}

// formatBuildsText formats CLIBuild results as aligned columns.
func formatBuildsText(w io.Writer, builds []CLIBuild) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tSTRICT\tFILES\tDIAGNOSTICS")
	for _, b := range builds {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%d\t%d\n",
			b.ID, b.StartedAt.Format("2006-01-02 15:04:05"), b.Status, b.Strict, b.FileCount, b.DiagnosticCount)
	}
	tw.Flush()
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type. It writes to os.Stdout.
func outputResultText(result CLIResult) error {
	w := io.Writer(os.Stdout)

	switch v := result.Results.(type) {
	case CLIBuildSummary:
		formatBuildText(w, v)
	case []CLIDiagnostic:
		formatDiagnosticsText(w, v)
	case []CLIDocument:
		formatDocumentsText(w, v)
	case CLIDocument:
		formatDocumentsText(w, []CLIDocument{v})
	case []CLILink:
		formatLinksText(w, v)
	case []CLIBuild:
		formatBuildsText(w, v)
	case []string:
		for _, s := range v {
			fmt.Fprintln(w, s)
		}
	case nil:
		// No output for nil results (e.g., definition with no match).
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// outputResult writes result to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// writeDiff writes a line diff between before and after, prefixed by a
// header naming the file. Unchanged lines are omitted.
func writeDiff(w io.Writer, name, before, after string, colored bool) {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	header := color.New(color.Bold)
	del := color.New(color.FgRed)
	ins := color.New(color.FgGreen)
	if !colored {
		header.DisableColor()
		del.DisableColor()
		ins.DisableColor()
	}

	header.Fprintf(w, "--- %s\n+++ %s\n", name, name)
	for _, d := range diffs {
		var (
			c      *color.Color
			prefix string
		)
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			c, prefix = del, "-"
		case diffmatchpatch.DiffInsert:
			c, prefix = ins, "+"
		default:
			continue
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			c.Fprint(w, prefix+strings.TrimSuffix(line, "\n")+"\n")
		}
	}
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
