// Package frontmatter splits and decodes the YAML metadata block at the top
// of a content file.
package frontmatter

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// Metadata holds the recognized front matter fields. Unknown keys are ignored.
type Metadata struct {
	// GlobalReference is nil when the key is absent.
	GlobalReference *string `yaml:"globalReference"`
	Title           string  `yaml:"title"`
}

// Split separates a leading "---" delimited block from the body. bodyOffset
// is the byte offset of body within content, so positions computed on the
// body can be mapped back to the file. ok is false when content has no
// (closed) front matter block, in which case body is content.
func Split(content []byte) (raw, body []byte, bodyOffset int, ok bool) {
	start := 0
	switch {
	case bytes.HasPrefix(content, []byte(delimiter+"\n")):
		start = len(delimiter) + 1
	case bytes.HasPrefix(content, []byte(delimiter+"\r\n")):
		start = len(delimiter) + 2
	default:
		return nil, content, 0, false
	}

	// The closing delimiter must sit on its own line.
	rest := content[start:]
	closeIdx := -1
	if bytes.HasPrefix(rest, []byte(delimiter)) {
		closeIdx = 0
	} else if i := bytes.Index(rest, []byte("\n"+delimiter)); i >= 0 {
		closeIdx = i + 1
	}
	if closeIdx < 0 {
		return nil, content, 0, false
	}

	raw = rest[:closeIdx]
	end := start + closeIdx + len(delimiter)
	// Consume the remainder of the delimiter line.
	for end < len(content) && content[end] != '\n' {
		end++
	}
	if end < len(content) {
		end++
	}
	return raw, content[end:], end, true
}

// Decode parses raw YAML into Metadata. An empty block yields zero Metadata.
func Decode(raw []byte) (Metadata, error) {
	var m Metadata
	if len(bytes.TrimSpace(raw)) == 0 {
		return m, nil
	}
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Metadata{}, fmt.Errorf("parse YAML front matter: %w", err)
	}
	return m, nil
}

// KeyLine returns the 1-based line within raw on which the top-level key is
// declared, or 0 when it is not present.
func KeyLine(raw []byte, key string) int {
	prefix := []byte(key + ":")
	for i, line := range bytes.Split(raw, []byte("\n")) {
		if bytes.HasPrefix(line, prefix) {
			return i + 1
		}
	}
	return 0
}
