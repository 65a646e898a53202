// Package chunk turns a note's rich body into the bounded, metadata-tagged
// text chunks that feed the semantic index.
package chunk

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/blacktokki/notesearcher/internal/markdown"
	"github.com/blacktokki/notesearcher/internal/note"
)

// minChunkLength is the cutoff below which a chunk is treated as noise and
// discarded rather than indexed.
const minChunkLength = 2

const maxHeadingDepth = 6

var (
	headingRe = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	linkRe    = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
)

// HeaderRef is one ancestor heading on the path from the document root down
// to a chunk's section.
type HeaderRef struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type Metadata struct {
	OriginalID int64
	OwnerID    int64
	Title      string
	CreatedAt  time.Time
	HeaderPath []HeaderRef
	Links      []Link
	Hidden     bool
	External   bool
}

type Chunk struct {
	ID       string
	Text     string
	Metadata Metadata
}

type Chunker struct {
	conv    *markdown.Converter
	size    int
	overlap int
}

func New(conv *markdown.Converter, size, overlap int) *Chunker {
	return &Chunker{conv: conv, size: size, overlap: overlap}
}

// Chunk converts a document body to markdown, splits it at the shallowest
// heading depth that keeps every section within the size threshold, then runs
// the size-bounded secondary splitter inside each section. Chunk ids are
// `{documentID}_{ordinal}` in split order, so re-chunking unchanged content
// yields the same id set.
func (c *Chunker) Chunk(doc note.Document) []Chunk {
	md := c.conv.FromHTML(doc.Body)
	sections := headerSplit(md, c.size)

	var chunks []Chunk
	ordinal := 0
	for _, sec := range sections {
		for _, piece := range splitBySize(sec.body, c.size, c.overlap) {
			piece = strings.TrimSpace(piece)
			if len(piece) < minChunkLength {
				continue
			}

			links := extractLinks(piece)
			// Keep the link label in the visible text but drop the raw URL;
			// the full link lives in metadata.
			text := linkRe.ReplaceAllString(piece, "[$1]()")

			chunks = append(chunks, Chunk{
				ID:   fmt.Sprintf("%d_%d", doc.ID, ordinal),
				Text: preamble(doc.Title, sec.path) + text,
				Metadata: Metadata{
					OriginalID: doc.ID,
					OwnerID:    doc.OwnerID,
					Title:      doc.Title,
					CreatedAt:  doc.UpdatedAt,
					HeaderPath: sec.path,
					Links:      links,
					Hidden:     doc.Hidden,
					External:   doc.External,
				},
			})
			ordinal++
		}
	}
	return chunks
}

// preamble prepends the document title and each ancestor heading, one per
// line at its own depth, so a contextless chunk still carries document and
// section identity when embedded.
func preamble(title string, path []HeaderRef) string {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(title)
	b.WriteString("\n")
	for _, h := range path {
		b.WriteString(strings.Repeat("#", h.Level))
		b.WriteString(" ")
		b.WriteString(h.Text)
		b.WriteString("\n")
	}
	return b.String()
}

func extractLinks(text string) []Link {
	matches := linkRe.FindAllStringSubmatch(text, -1)
	var links []Link
	for _, m := range matches {
		links = append(links, Link{Text: m[1], URL: m[2]})
	}
	return links
}

type section struct {
	path []HeaderRef
	body string
}

// headerSplit finds the smallest depth (1..6) at which splitting the document
// at all heading boundaries up to that depth leaves every section within the
// size threshold, and returns that split. Depth 6 is used if none satisfies
// the bound.
func headerSplit(md string, threshold int) []section {
	var sections []section
	for depth := 1; depth <= maxHeadingDepth; depth++ {
		sections = splitAtDepth(md, depth)
		fits := true
		for _, s := range sections {
			if len(s.body) > threshold {
				fits = false
				break
			}
		}
		if fits {
			break
		}
	}
	return sections
}

// splitAtDepth cuts the document at every heading of level <= depth. Headings
// that become section boundaries move into the header path; deeper headings
// stay in the section body.
func splitAtDepth(md string, depth int) []section {
	lines := strings.Split(md, "\n")

	var sections []section
	var path []HeaderRef
	var body []string

	flush := func() {
		text := strings.TrimSpace(strings.Join(body, "\n"))
		if text != "" {
			sections = append(sections, section{path: append([]HeaderRef(nil), path...), body: text})
		}
		body = nil
	}

	for _, line := range lines {
		m := headingRe.FindStringSubmatch(line)
		if m != nil {
			level := len(m[1])
			if level <= depth {
				flush()
				// Truncate the path to this heading's ancestors, then descend.
				for len(path) > 0 && path[len(path)-1].Level >= level {
					path = path[:len(path)-1]
				}
				path = append(path, HeaderRef{Level: level, Text: strings.TrimSpace(m[2])})
				continue
			}
		}
		body = append(body, line)
	}
	flush()
	return sections
}

// splitBySize is the secondary splitter: blank-line boundaries first, then
// single-line boundaries, then a hard cut. Adjacent chunks within a section
// share an overlap of trailing bytes from the previous chunk, so no emitted
// chunk exceeds size+overlap bytes.
func splitBySize(text string, size, overlap int) []string {
	parts := splitGreedy(text, size, []string{"\n\n", "\n"})
	if overlap <= 0 || len(parts) < 2 {
		return parts
	}

	out := make([]string, len(parts))
	out[0] = parts[0]
	for i := 1; i < len(parts); i++ {
		prev := parts[i-1]
		tail := prev
		// One byte of the overlap budget is spent on the joining newline.
		if len(prev) > overlap-1 {
			tail = prev[len(prev)-(overlap-1):]
		}
		out[i] = strings.TrimSpace(tail + "\n" + parts[i])
	}
	return out
}

func splitGreedy(text string, size int, seps []string) []string {
	if len(text) <= size {
		return []string{text}
	}
	if len(seps) == 0 {
		return hardCut(text, size)
	}

	sep := seps[0]
	pieces := strings.Split(text, sep)

	var out []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			out = append(out, current.String())
			current.Reset()
		}
	}

	for _, p := range pieces {
		if len(p) > size {
			flush()
			out = append(out, splitGreedy(p, size, seps[1:])...)
			continue
		}
		if current.Len() > 0 && current.Len()+len(sep)+len(p) > size {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(p)
	}
	flush()
	return out
}

func hardCut(text string, size int) []string {
	var out []string
	for len(text) > size {
		out = append(out, text[:size])
		text = text[size:]
	}
	if len(text) > 0 {
		out = append(out, text)
	}
	return out
}
