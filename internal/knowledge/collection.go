package knowledge

import (
	"math"
	"sort"
	"time"
)

// Chunk is a persisted piece of a collection: the unit of retrieval.
// Chunks are immutable; a rebuild replaces the whole set.
type Chunk struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Embedding []float32         `json:"embedding"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Hit is one ranked retrieval result. Distance is cosine distance
// (1 - cosine similarity): lower means more similar.
type Hit struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Distance float64           `json:"distance"`
}

// Collection is a loaded, queryable set of chunks. The in-memory
// representation is read-only once built; the Manager swaps whole
// Collection values on rebuild.
type Collection struct {
	Name           string    `json:"name"`
	EmbeddingModel string    `json:"embedding_model"`
	Dimension      int       `json:"dimension"`
	BuiltAt        time.Time `json:"built_at"`
	Chunks         []Chunk   `json:"chunks"`
}

// Search ranks all chunks by cosine distance to the query vector and returns
// the k closest, optionally restricted to chunks whose metadata contains all
// filter pairs.
func (c *Collection) Search(query []float32, k int, filter map[string]string) []Hit {
	if k <= 0 {
		return nil
	}

	hits := make([]Hit, 0, len(c.Chunks))
	for i := range c.Chunks {
		chunk := &c.Chunks[i]
		if !matchesFilter(chunk.Metadata, filter) {
			continue
		}
		hits = append(hits, Hit{
			Content:  chunk.Content,
			Metadata: chunk.Metadata,
			Distance: cosineDistance(query, chunk.Embedding),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func matchesFilter(metadata, filter map[string]string) bool {
	for key, want := range filter {
		if metadata[key] != want {
			return false
		}
	}
	return true
}

// cosineDistance computes 1 - cosine similarity. Mismatched or zero-norm
// vectors yield the maximum distance so they rank last rather than erroring.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}

	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
