package processor

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/gabriel-vasile/mimetype"
)

// converter turns one kind of text document into markdown
type converter struct {
	extensions []string
	convert    func(string) (string, error)
}

var converters = []converter{
	{
		extensions: []string{".html", ".htm"},
		convert: func(html string) (string, error) {
			return htmltomarkdown.ConvertString(html)
		},
	},
}

// isText reports whether mtype is text/plain or one of its descendants
func isText(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// loadDocument reads path as markdown. Binary files are rejected; HTML
// journals are converted first.
func loadDocument(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Size() == 0 {
		return "", nil
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to detect MIME type: %w", err)
	}
	if !isText(mtype) {
		return "", fmt.Errorf("not a text file (%s)", mtype.String())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	doc := string(data)

	ext := strings.ToLower(filepath.Ext(path))
	for _, c := range converters {
		if slices.Contains(c.extensions, ext) {
			converted, err := c.convert(doc)
			if err != nil {
				return "", fmt.Errorf("failed to convert %s to markdown: %w", ext, err)
			}
			return converted, nil
		}
	}
	return doc, nil
}
