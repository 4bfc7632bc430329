package runtime

import (
	"context"

	"github.com/risor-io/risor/object"
	"github.com/sirupsen/logrus"
)

// makeLookupFn creates the "lookup" builtin giving scripts registry access.
//
// lookup(identifier) → {identifier, path, title, source_file} or nil
func makeLookupFn(lookup Lookup) *object.Builtin {
	return object.NewBuiltin("lookup", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("lookup", 1, len(args))
		}
		id, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("lookup: identifier must be a string, got %s", args[0].Type())
		}
		if lookup == nil {
			return object.Nil
		}
		rec, found := lookup(id.Value())
		if !found {
			return object.Nil
		}
		return object.NewMap(map[string]object.Object{
			"identifier":  object.NewString(rec.Identifier),
			"path":        object.NewString(rec.CanonicalPath),
			"title":       object.NewString(rec.Title),
			"source_file": object.NewString(rec.SourceFile),
		})
	})
}

// logObject provides log.Info/Warn/Error methods for Risor scripts. Entries
// carry the script path in the "hook" field.
type logObject struct {
	log logrus.FieldLogger
}

func (l *logObject) Info(msg string) {
	l.log.Info(msg)
}

func (l *logObject) Warn(msg string) {
	l.log.Warn(msg)
}

func (l *logObject) Error(msg string) {
	l.log.Error(msg)
}
