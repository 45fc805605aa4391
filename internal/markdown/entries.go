package markdown

import (
	"regexp"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/hession/lifelog/internal/logger"
)

var bulletPattern = regexp.MustCompile(`^\s*[-*]\s+(.*)$`)

// Entry is one unit of journal text, optionally stamped with the time it
// was recorded.
type Entry struct {
	Timestamp *time.Time
	Content   string
}

// ExtractEntries splits a section body into entries.
//
// A bullet ("- " or "* ") starts an entry that runs until the next bullet
// or a blank line. A leading timestamp is lifted off the bullet text into
// Timestamp. Bodies without any bullet yield one untimed entry per
// non-blank line.
func ExtractEntries(body string) []Entry {
	bullets := splitBullets(body)
	if len(bullets) > 0 {
		return lo.FilterMap(bullets, func(text string, _ int) (Entry, bool) {
			e := newEntry(text)
			return e, e.Content != ""
		})
	}

	lines := lo.FilterMap(strings.Split(body, "\n"), func(line string, _ int) (string, bool) {
		line = strings.TrimSpace(line)
		return line, line != ""
	})
	if len(lines) == 0 {
		return nil
	}
	logger.Debug("No bullets found, using %d lines as entries", len(lines))
	return lo.Map(lines, func(line string, _ int) Entry {
		return Entry{Content: line}
	})
}

func splitBullets(body string) []string {
	var (
		bullets []string
		current []string
		open    bool
	)
	closeBullet := func() {
		if open {
			bullets = append(bullets, strings.Join(current, "\n"))
		}
		current = nil
		open = false
	}

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if m := bulletPattern.FindStringSubmatch(line); m != nil {
			closeBullet()
			current = []string{m[1]}
			open = true
			continue
		}
		if strings.TrimSpace(line) == "" {
			closeBullet()
			continue
		}
		if open {
			current = append(current, line)
		}
	}
	closeBullet()
	return bullets
}

// newEntry parses a bullet's text. The timestamp is only cut from the
// content when it opens the bullet; later dates stay part of the text.
func newEntry(text string) Entry {
	text = strings.TrimSpace(text)
	ts, loc, ok := findDate(text)
	if !ok {
		return Entry{Content: text}
	}

	content := text
	if loc[0] == 0 {
		content = strings.TrimSpace(strings.TrimLeft(text[loc[1]:], ": \t"))
	}
	return Entry{Timestamp: &ts, Content: content}
}
