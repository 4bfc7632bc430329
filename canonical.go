package docref

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/jward/docref/internal/markdown"
)

// CanonicalPath returns the site path for the content file at location.
// The content root prefix and the file extension are dropped, a trailing
// "index" segment maps to its directory, each segment is percent-encoded and
// the result is prefixed with baseURL.
//
// A relative location paired with an absolute contentRoot (or the reverse)
// is taken to be relative to the content root already.
func CanonicalPath(contentRoot, baseURL, location string) (string, error) {
	rel := location
	if contentRoot != "" && filepath.IsAbs(contentRoot) == filepath.IsAbs(location) {
		r, err := filepath.Rel(contentRoot, location)
		if err != nil {
			return "", fmt.Errorf("canonical path for %s: %w", location, err)
		}
		rel = r
	}
	rel = filepath.ToSlash(filepath.Clean(rel))
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("canonical path for %s: outside content root %s", location, contentRoot)
	}

	if ext := path.Ext(rel); markdown.IsContentFile(ext) {
		rel = strings.TrimSuffix(rel, ext)
	}
	var segs []string
	for _, seg := range strings.Split(rel, "/") {
		if seg == "" || seg == "." {
			continue
		}
		segs = append(segs, url.PathEscape(seg))
	}
	if n := len(segs); n > 0 && segs[n-1] == "index" {
		segs = segs[:n-1]
	}

	base := "/" + strings.Trim(baseURL, "/")
	return path.Join(append([]string{base}, segs...)...), nil
}
