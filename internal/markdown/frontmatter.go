package markdown

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// FrontmatterDelimiter opens and closes a YAML frontmatter block
const FrontmatterDelimiter = "---"

// StripFrontmatter separates a leading YAML frontmatter block from the
// document body. Documents without frontmatter are returned unchanged.
// On error the returned body is still usable: the whole document when the
// block never closes, the text after it when the YAML is malformed.
func StripFrontmatter(doc string) (string, map[string]any, error) {
	lines := strings.SplitAfter(doc, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != FrontmatterDelimiter {
		return doc, nil, nil
	}

	var (
		header   strings.Builder
		bodyFrom = len(lines[0])
		closed   bool
	)
	for _, line := range lines[1:] {
		bodyFrom += len(line)
		if strings.TrimSpace(line) == FrontmatterDelimiter {
			closed = true
			break
		}
		header.WriteString(line)
	}
	if !closed {
		return doc, nil, fmt.Errorf("frontmatter is not terminated")
	}

	body := strings.TrimLeft(doc[bodyFrom:], "\r\n")

	meta := map[string]any{}
	if err := yaml.Unmarshal([]byte(header.String()), &meta); err != nil {
		return body, nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	return body, meta, nil
}
