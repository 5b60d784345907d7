package knowledge

import (
	"fmt"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	// DefaultChunkSize is the target chunk length in characters. Character
	// length (not tokens) keeps boundaries language-agnostic and
	// reproducible across runs.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap preserves context across chunk boundaries.
	DefaultChunkOverlap = 100
)

// newSplitter builds the recursive character splitter used for all
// collections. Fixed parameters make chunk boundaries deterministic for a
// given corpus.
func newSplitter() textsplitter.RecursiveCharacter {
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(DefaultChunkSize),
		textsplitter.WithChunkOverlap(DefaultChunkOverlap),
	)
}

// splitDocuments chunks loaded documents, carrying each document's metadata
// onto its chunks.
func splitDocuments(docs []schema.Document) ([]schema.Document, error) {
	chunked, err := textsplitter.SplitDocuments(newSplitter(), docs)
	if err != nil {
		return nil, fmt.Errorf("split documents: %w", err)
	}
	return chunked, nil
}
