// Package markdown turns semi-structured journal markdown into sections
// and timestamped entries.
package markdown

import (
	"regexp"
	"strings"
	"time"

	"github.com/hession/lifelog/internal/logger"
)

// dateGrammar is one family of timestamp spellings and the layouts tried
// against a match, in order.
type dateGrammar struct {
	name      string
	pattern   *regexp.Regexp
	normalize func(string) string
	layouts   []string
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	meridiemGap   = regexp.MustCompile(`(\d)\s*(AM|PM)$`)
)

// Grammars are tried in this order; the first one whose match parses wins.
var dateGrammars = []dateGrammar{
	{
		name:    "slash",
		pattern: regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{2,4}\s+\d{1,2}:\d{2}\s*(?:AM|PM|am|pm)?`),
		normalize: func(s string) string {
			s = strings.ToUpper(collapseSpace(s))
			return meridiemGap.ReplaceAllString(s, "$1 $2")
		},
		layouts: []string{
			"1/2/06 3:04 PM",
			"1/2/2006 3:04 PM",
			"1/2/06 15:04",
			"1/2/2006 15:04",
		},
	},
	{
		name:      "iso",
		pattern:   regexp.MustCompile(`\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}(?::\d{2})?`),
		normalize: collapseSpace,
		layouts: []string{
			"2006-01-02 15:04:05",
			"2006-01-02 15:04",
		},
	},
	{
		name:      "day-month",
		pattern:   regexp.MustCompile(`\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{2,4}`),
		normalize: collapseSpace,
		layouts: []string{
			"2 Jan 2006",
			"2 January 2006",
			"2 Jan 06",
			"2 January 06",
		},
	},
}

func collapseSpace(s string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
}

// ParseDate returns the first timestamp recognized anywhere in text.
// The result is in UTC; ok is false when nothing parses.
func ParseDate(text string) (time.Time, bool) {
	t, _, ok := findDate(text)
	return t, ok
}

// findDate is ParseDate plus the byte span of the substring that parsed.
func findDate(text string) (time.Time, []int, bool) {
	for _, g := range dateGrammars {
		loc := g.pattern.FindStringIndex(text)
		if loc == nil {
			continue
		}
		raw := text[loc[0]:loc[1]]
		candidate := g.normalize(raw)
		for _, layout := range g.layouts {
			if t, err := time.Parse(layout, candidate); err == nil {
				return t, loc, true
			}
		}
		logger.Warn("Unparseable %s timestamp %q", g.name, raw)
	}
	return time.Time{}, nil, false
}
