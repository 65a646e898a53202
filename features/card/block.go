package card

import (
	"regexp"
	"strconv"
	"strings"
)

var headingRe = regexp.MustCompile(`(?is)<h([1-6])\b[^>]*>(.*?)</h[1-6]>`)

type heading struct {
	start int
	end   int
	level int
	inner string
}

func findHeadings(html string) []heading {
	var out []heading
	for _, m := range headingRe.FindAllStringSubmatchIndex(html, -1) {
		level, _ := strconv.Atoi(html[m[2]:m[3]])
		out = append(out, heading{
			start: m[0],
			end:   m[1],
			level: level,
			inner: html[m[4]:m[5]],
		})
	}
	return out
}

// extractBlock finds the first heading whose inner text contains needle and
// cuts out everything from that heading up to the next heading of equal or
// shallower level. Deeper headings are absorbed into the block; with no later
// boundary the block runs to end of document. Returns the remaining body and
// the extracted block, or ok=false when no heading matches.
func extractBlock(html, needle string) (remaining, block string, ok bool) {
	headings := findHeadings(html)

	var target *heading
	for i := range headings {
		if strings.Contains(headings[i].inner, needle) {
			target = &headings[i]
			break
		}
	}
	if target == nil {
		return html, "", false
	}

	end := len(html)
	for _, h := range headings {
		if h.start <= target.start {
			continue
		}
		if h.level <= target.level {
			end = h.start
			break
		}
	}

	return html[:target.start] + html[end:], html[target.start:end], true
}
