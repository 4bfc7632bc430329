package docref

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jward/docref/internal/frontmatter"
	"github.com/jward/docref/internal/registry"
)

// Declaration is the identifier state of a content file: Declared or
// Undeclared.
type Declaration interface {
	isDeclaration()
}

// Declared is a file that claims a global identifier.
type Declared struct {
	Identifier string
}

// Undeclared is a file without a globalReference.
type Undeclared struct{}

func (Declared) isDeclaration()   {}
func (Undeclared) isDeclaration() {}

// Metadata is the registration-relevant view of a file's front matter.
type Metadata struct {
	Declaration Declaration
	Title       string
	// IdentifierLine is the 1-based file line of the globalReference key,
	// or 0 when unknown.
	IdentifierLine int
}

// MetadataFromFrontMatter converts decoded front matter. An empty
// globalReference counts as undeclared. fallbackTitle is used when the
// front matter has no title.
func MetadataFromFrontMatter(fm frontmatter.Metadata, fallbackTitle string) Metadata {
	m := Metadata{Declaration: Undeclared{}, Title: fm.Title}
	if fm.GlobalReference != nil && *fm.GlobalReference != "" {
		m.Declaration = Declared{Identifier: *fm.GlobalReference}
	}
	if m.Title == "" {
		m.Title = fallbackTitle
	}
	return m
}

// Registrar records content files in the reference registry. It never
// alters a file's metadata.
type Registrar struct {
	cfg      Config
	registry *registry.Registry
	reporter *Reporter
	log      logrus.FieldLogger

	// OnRegister, if set, is called after each successful registration.
	OnRegister func(Record)
}

// NewRegistrar creates a Registrar writing to reg and reporting through rep.
func NewRegistrar(cfg Config, reg *registry.Registry, rep *Reporter, log logrus.FieldLogger) *Registrar {
	if log == nil {
		log = discardLogger()
	}
	return &Registrar{cfg: cfg, registry: reg, reporter: rep, log: log}
}

// DecodeMetadata parses a raw front matter block. fallbackTitle is used when
// the block has no title.
func DecodeMetadata(rawMeta []byte, fallbackTitle string) (Metadata, error) {
	fm, err := frontmatter.Decode(rawMeta)
	if err != nil {
		return Metadata{}, err
	}
	meta := MetadataFromFrontMatter(fm, fallbackTitle)
	if line := frontmatter.KeyLine(rawMeta, "globalReference"); line > 0 {
		// Line 1 of the file is the opening delimiter.
		meta.IdentifierLine = line + 1
	}
	return meta, nil
}

// Register decodes rawMeta and registers sourceFile. The returned metadata
// is what the file declared.
func (r *Registrar) Register(sourceFile string, rawMeta []byte, fallbackTitle string) (Metadata, error) {
	meta, err := DecodeMetadata(rawMeta, fallbackTitle)
	if err != nil {
		return Metadata{}, fmt.Errorf("%s: %w", sourceFile, err)
	}
	canonical, err := CanonicalPath(r.cfg.ContentRoot, r.cfg.BaseURL, sourceFile)
	if err != nil {
		return Metadata{}, err
	}
	return meta, r.RegisterMetadata(sourceFile, canonical, meta)
}

// RegisterMetadata registers an already decoded file at canonicalPath.
// The only error returned is a *StrictError.
func (r *Registrar) RegisterMetadata(sourceFile, canonicalPath string, meta Metadata) error {
	decl, ok := meta.Declaration.(Declared)
	if !ok {
		if old, released := r.registry.ReleasePath(canonicalPath); released {
			r.log.WithFields(logrus.Fields{
				"identifier": old.Identifier,
				"path":       canonicalPath,
			}).Debug("identifier released by undeclared file")
		}
		return r.missingIdentifier(sourceFile)
	}

	rec := Record{
		Identifier:    decl.Identifier,
		CanonicalPath: canonicalPath,
		Title:         meta.Title,
		SourceFile:    sourceFile,
	}
	out := r.registry.Register(rec)
	for _, ev := range out.Evicted {
		r.log.WithFields(logrus.Fields{
			"identifier": ev.Identifier,
			"path":       canonicalPath,
		}).Debug("identifier replaced by re-tagged file")
	}
	if out.Moved != nil {
		r.log.WithFields(logrus.Fields{
			"identifier": rec.Identifier,
			"from":       out.Moved.CanonicalPath,
			"to":         canonicalPath,
		}).Debug("identifier moved")
	}
	if r.OnRegister != nil {
		r.OnRegister(rec)
	}
	if out.Conflict != nil {
		return r.reporter.Report(Diagnostic{
			Kind:  DuplicateIdentifier,
			File:  sourceFile,
			Line:  meta.IdentifierLine,
			Token: rec.Identifier,
			Message: fmt.Sprintf("identifier %q is also declared by %s (%s); it now points to %s",
				rec.Identifier, out.Conflict.SourceFile, out.Conflict.CanonicalPath, canonicalPath),
		})
	}
	return nil
}

func (r *Registrar) missingIdentifier(sourceFile string) error {
	switch r.cfg.MissingIdentifier {
	case MissingIdentifierWarn:
		r.log.WithField("file", sourceFile).Warn("content file has no globalReference")
	case MissingIdentifierError:
		return r.reporter.Report(Diagnostic{
			Kind:    MissingIdentifier,
			File:    sourceFile,
			Message: "content file has no globalReference",
		})
	}
	return nil
}
