// Package chunker splits long text into overlapping, word-boundary-aligned
// pieces before they are handed to the embedding backend.
package chunker

import "strings"

// DefaultSize and DefaultOverlap mirror the original implementation's
// defaults and are used when a Chunker is constructed with zero values.
const (
	DefaultSize    = 768
	DefaultOverlap = 100
)

// Chunker splits text into chunks of at most Size characters, with Overlap
// characters of carryover between consecutive chunks.
type Chunker struct {
	Size    int
	Overlap int
}

// New builds a Chunker, falling back to DefaultSize for a non-positive size
// and to DefaultOverlap for a negative overlap or one not smaller than size.
func New(size, overlap int) Chunker {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultOverlap
	}
	return Chunker{Size: size, Overlap: overlap}
}

// ChunkText splits text into contiguous chunks, preferring to break at the
// last whitespace within the window. Text no longer than Size yields a
// single chunk.
func (c Chunker) ChunkText(text string) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= c.Size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.Size
		if end > len(runes) {
			end = len(runes)
		}
		if end < len(runes) {
			for i := end - 1; i > start; i-- {
				if runes[i] == ' ' {
					end = i
					break
				}
			}
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := end
		if end < len(runes) {
			next = end - c.Overlap
		}
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// Chunk is one piece of chunked text paired with its position metadata.
type Chunk struct {
	Text       string
	Index      int
	TotalCount int
}

// ChunkWithMetadata chunks text and annotates each piece with its index and
// the total chunk count, mirroring the original chunk_with_metadata contract.
func (c Chunker) ChunkWithMetadata(text string) []Chunk {
	pieces := c.ChunkText(text)
	out := make([]Chunk, len(pieces))
	for i, p := range pieces {
		out[i] = Chunk{Text: p, Index: i, TotalCount: len(pieces)}
	}
	return out
}
