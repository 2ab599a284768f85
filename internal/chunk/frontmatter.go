package chunk

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// frontMatter is the parsed result of a leading metadata block.
type frontMatter struct {
	// Metadata holds the flattened key/value pairs. List values are
	// joined with ", ".
	Metadata map[string]string

	// LineCount is the number of lines consumed from the top of the
	// file, including both delimiter lines. Zero when no block exists.
	LineCount int
}

// parseFrontMatter strips a leading metadata block delimited by a first line
// equal to "---" and a later line starting with "---". The block is decoded
// as minimal YAML (scalars, "- item" lists, inline lists). A malformed or
// absent block yields empty metadata and leaves the whole text as body.
func parseFrontMatter(lines []string) frontMatter {
	if len(lines) == 0 || strings.TrimRight(lines[0], " \t\r") != "---" {
		return frontMatter{}
	}

	closing := -1
	for i := 1; i < len(lines); i++ {
		if strings.HasPrefix(lines[i], "---") {
			closing = i
			break
		}
	}
	if closing == -1 {
		// Unterminated block: treat the whole file as body.
		return frontMatter{}
	}

	body := strings.Join(lines[1:closing], "\n")
	meta := decodeMetadata(body)

	return frontMatter{
		Metadata:  meta,
		LineCount: closing + 1,
	}
}

// decodeMetadata decodes a front-matter body into flat string pairs.
// Decode failures fail closed: the block is still stripped, but the
// metadata comes back empty.
func decodeMetadata(body string) map[string]string {
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(body), &raw); err != nil || len(raw) == 0 {
		return nil
	}

	meta := make(map[string]string, len(raw))
	for key, value := range raw {
		if s, ok := flattenValue(value); ok {
			meta[key] = s
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

// flattenValue renders a scalar or list value as a single string.
// Nested maps are dropped; the chunker only carries flat metadata.
func flattenValue(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := flattenValue(item); ok {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, ", "), true
	case map[string]any:
		return "", false
	default:
		return fmt.Sprint(v), true
	}
}
