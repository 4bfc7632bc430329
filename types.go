package docref

import (
	"github.com/jward/docref/internal/markdown"
	"github.com/jward/docref/internal/registry"
	docrefrt "github.com/jward/docref/internal/runtime"
	"github.com/jward/docref/internal/store"
)

// Public type aliases for internal types used in the Engine and
// QueryBuilder APIs. These are Go type aliases (=), so no conversion is
// needed.

type Record = registry.Record
type Link = markdown.Link
type HookLink = docrefrt.LinkContext

type Store = store.Store
type Build = store.Build
type Document = store.Document
type Backlink = store.Backlink
type StoredLink = store.Link
type StoredDiagnostic = store.Diagnostic
