// Package docref resolves cross-document references in a tree of Markdown
// content files.
//
// Authors link to a page by a stable identifier instead of its location.
// A file declares its identifier in front matter:
//
//	---
//	globalReference: scaling-guide
//	title: Scaling Guide
//	---
//
// and other files link to it with a ref token, optionally with an anchor:
//
//	See [the guide](ref:scaling-guide#limits).
//
// A second token, repo or repo:<path>, links into the project's source
// repository at the configured default branch.
//
// # Pipeline
//
// A build runs in two phases separated by a hard barrier:
//
//  1. Register: every content file is parsed and its identifier recorded in
//     the reference registry together with its canonical site path and
//     title.
//
//  2. Resolve: only after every file is registered, each link is rewritten.
//     ref tokens become canonical paths (adopting the target's title when
//     the link has none) and repo tokens become repository URLs.
//
// Problems are reported as [Diagnostic] values. In strict mode the first
// one aborts the build with a [*StrictError]; otherwise the build finishes,
// unresolvable tokens are escaped so they render as plain text, and
// [Result.Err] summarizes what went wrong.
//
// # Usage
//
//	e, err := docref.New(docref.DefaultConfig())
//	if err != nil { ... }
//
//	res, err := e.BuildAll(ctx)
//	if err != nil { ... }
//	_, err = e.WriteOutputs(res, "build/docs")
//
// Repeated builds on one Engine share the registry, so a file that moves
// keeps its identifier without being reported as a duplicate.
//
// # Reports
//
// With [WithStore], every build is recorded in SQLite and can be inspected
// through [Engine.Query]: declared identifiers, backlinks, broken links and
// diagnostics of the latest build.
package docref
