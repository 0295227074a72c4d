package ingest

import (
	"strings"
	"unicode"
)

// Chunker splits text into overlapping windows for embedding. Windows
// prefer to end on a sentence or line boundary in the back half of the
// window, falling back to a hard cut.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a Chunker. overlap must be smaller than size.
func NewChunker(size, overlap int) *Chunker {
	if size < 1 {
		size = 1
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk splits text. Whitespace runs collapse to single spaces except
// newlines, which survive as boundary candidates. Every returned chunk
// is non-empty and at most size characters; consecutive chunks share up
// to overlap characters.
func (c *Chunker) Chunk(text string) []string {
	text = strings.TrimSpace(collapseWhitespace(text))
	if text == "" {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + c.size
		if end > len(text) {
			end = len(text)
		}

		if end < len(text) {
			// Snap back to the closest boundary in the back half.
			for i := end; i > start+c.size/2; i-- {
				if isBoundary(text[i-1]) {
					end = i
					break
				}
			}
		}

		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(text) {
			break
		}
		next := end - c.overlap
		if next <= start {
			// Forward progress regardless of overlap.
			next = start + 1
		}
		start = next
	}
	return chunks
}

func isBoundary(b byte) bool {
	return b == '.' || b == '!' || b == '?' || b == '\n'
}

// collapseWhitespace reduces whitespace runs to a single character,
// preserving one newline when the run contains any.
func collapseWhitespace(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))

	inRun := false
	runHasNewline := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			inRun = true
			if r == '\n' {
				runHasNewline = true
			}
			continue
		}
		if inRun {
			if runHasNewline {
				sb.WriteByte('\n')
			} else {
				sb.WriteByte(' ')
			}
			inRun = false
			runHasNewline = false
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
