package markdown

import (
	"regexp"
	"strings"
)

// GeneralHeading names the implicit section of text that has no heading.
const GeneralHeading = "General Facts from File"

var headingPattern = regexp.MustCompile(`^(#{1,3})\s+(.+)$`)

// Section is a heading and the lines under it.
// Level is the number of '#' characters, 0 for the implicit section.
type Section struct {
	Level   int
	Heading string
	Body    string
}

// ExtractSections splits a markdown document on level 1-3 headings, in
// document order. Text before the first heading, or a document without
// headings, becomes a level 0 section under GeneralHeading.
func ExtractSections(doc string) []Section {
	var (
		sections []Section
		current  *Section
		body     []string
		preamble []string
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Body = strings.Join(body, "\n")
		sections = append(sections, *current)
	}

	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			flush()
			current = &Section{Level: len(m[1]), Heading: strings.TrimSpace(m[2])}
			body = nil
			continue
		}
		if current == nil {
			preamble = append(preamble, line)
		} else {
			body = append(body, line)
		}
	}
	flush()

	if pre := strings.TrimSpace(strings.Join(preamble, "\n")); pre != "" {
		implicit := Section{Level: 0, Heading: GeneralHeading, Body: pre}
		sections = append([]Section{implicit}, sections...)
	}
	return sections
}
