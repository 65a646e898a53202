// Package markdown converts the notebook's rich HTML bodies into the
// ATX-heading markdown form used for chunking and display.
package markdown

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

var tagRe = regexp.MustCompile(`<[^>]*>`)

type Converter struct {
	conv *md.Converter
}

func NewConverter() *Converter {
	conv := md.NewConverter("", true, &md.Options{
		HeadingStyle: "atx",
	})
	return &Converter{conv: conv}
}

// FromHTML converts rich markup into markdown with `#`-depth heading markers.
// Malformed markup never raises: unconvertible input degrades to its
// tag-stripped text representation.
func (c *Converter) FromHTML(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	out, err := c.conv.ConvertString(html)
	if err != nil {
		return StripTags(html)
	}
	return out
}

// StripTags drops all markup tags, leaving only text content. Used for note
// previews and as the conversion fallback.
func StripTags(html string) string {
	return tagRe.ReplaceAllString(html, "")
}
