// Package scripts embeds the link rewrite hooks shipped with docref.
// Select one with hook_script: builtin:<name>.
package scripts

import (
	"embed"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// FS holds hooks/<name>.risor.
//
//go:embed hooks/*.risor
var FS embed.FS

// HookPath returns the path of the builtin hook name inside FS.
func HookPath(name string) string {
	return path.Join("hooks", name+".risor")
}

// Names lists the builtin hooks.
func Names() []string {
	entries, err := fs.ReadDir(FS, "hooks")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".risor"))
	}
	sort.Strings(names)
	return names
}
