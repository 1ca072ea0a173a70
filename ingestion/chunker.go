package ingestion

import (
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the character overlap between consecutive
	// chunks.
	DefaultChunkOverlap = 150
)

// chunkSeparators is the split hierarchy: paragraph break, line break,
// sentence boundary, word boundary, then hard character split.
var chunkSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunker splits extracted text into overlapping windows. Identical
// text and parameters always yield an identical chunk sequence, which
// keeps chunk indices stable across reprocessing.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
}

// NewChunker creates a chunker with the given size and overlap.
// Non-positive values fall back to the defaults.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators(chunkSeparators),
		),
	}
}

// Split returns the ordered chunk sequence for text.
func (c *Chunker) Split(text string) ([]string, error) {
	return c.splitter.SplitText(text)
}
