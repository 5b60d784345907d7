package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vimathss/otto-backend/internal/metrics"
)

// ErrEmptyCorpus is returned by Build when the source directory yields no
// loadable documents. A build never silently produces an empty collection.
var ErrEmptyCorpus = errors.New("no documents found in source directory")

// ErrCollectionNotFound is returned by Search when a collection has never
// been built. Callers treat it as "no knowledge available", not a failure.
var ErrCollectionNotFound = errors.New("collection not found")

// collectionFile is the single document persisted per collection directory.
const collectionFile = "collection.json"

var validCollectionName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// embedBatchSize bounds a single embedding request during builds.
const embedBatchSize = 64

// Embedder is the embedding provider contract the manager depends on.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimension() int
}

// Manager owns named collections persisted under a base directory. Each
// collection maps 1:1 to a subdirectory; collections load lazily on first
// reference and rebuilds publish atomically (build to a staging directory,
// then rename into place) so readers never observe a half-written state.
type Manager struct {
	baseDir   string
	embedder  Embedder
	collector *metrics.Collector

	mu     sync.RWMutex
	loaded map[string]*Collection
}

// NewManager creates a collection manager rooted at baseDir, creating the
// directory if needed.
func NewManager(baseDir string, embedder Embedder, collector *metrics.Collector) (*Manager, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Manager{
		baseDir:   baseDir,
		embedder:  embedder,
		collector: collector,
		loaded:    make(map[string]*Collection),
	}, nil
}

// BuildResult summarizes an ingestion run.
type BuildResult struct {
	Collection   string
	Documents    int
	Chunks       int
	SkippedFiles int
	Duration     time.Duration
}

// Build ingests all supported documents under sourceDir into a collection.
// Rebuild is destructive: any previously persisted collection of the same
// name is fully replaced, never merged, so re-ingestion is idempotent with
// respect to final state.
func (m *Manager) Build(ctx context.Context, name, sourceDir string) (*BuildResult, error) {
	if !validCollectionName.MatchString(name) {
		return nil, fmt.Errorf("invalid collection name %q", name)
	}

	start := time.Now()

	docs, stats, err := loadDirectory(ctx, sourceDir)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyCorpus, sourceDir)
	}

	chunked, err := splitDocuments(docs)
	if err != nil {
		return nil, err
	}
	slog.Info("documents chunked", "collection", name, "documents", len(docs), "chunks", len(chunked))

	// Chunk ids are namespaced by a per-build generation so ids from a
	// previous build can never resolve against the new one.
	buildID := uuid.NewString()
	coll := &Collection{
		Name:           name,
		EmbeddingModel: m.embedder.Model(),
		Dimension:      m.embedder.Dimension(),
		BuiltAt:        time.Now().UTC(),
		Chunks:         make([]Chunk, len(chunked)),
	}

	for batchStart := 0; batchStart < len(chunked); batchStart += embedBatchSize {
		end := min(batchStart+embedBatchSize, len(chunked))

		texts := make([]string, 0, end-batchStart)
		for _, doc := range chunked[batchStart:end] {
			texts = append(texts, doc.PageContent)
		}

		vectors, err := m.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks: %w", err)
		}

		for i, doc := range chunked[batchStart:end] {
			idx := batchStart + i
			coll.Chunks[idx] = Chunk{
				ID:        fmt.Sprintf("%s-%05d", buildID, idx),
				Content:   doc.PageContent,
				Embedding: vectors[i],
				Metadata:  stringMetadata(doc.Metadata),
			}
		}
	}

	if err := m.publish(coll); err != nil {
		return nil, err
	}

	duration := time.Since(start)
	if m.collector != nil {
		m.collector.RecordTiming(metrics.OpIndexBuild, duration)
	}
	slog.Info("collection built", "collection", name, "chunks", len(coll.Chunks), "duration_ms", duration.Milliseconds())

	return &BuildResult{
		Collection:   name,
		Documents:    len(docs),
		Chunks:       len(coll.Chunks),
		SkippedFiles: len(stats.Skipped),
		Duration:     duration,
	}, nil
}

// publish writes a built collection to a staging directory, removes any old
// generation, renames the staging directory into place, and swaps the
// in-memory handle. The rename is the publication point: concurrent readers
// see either the old collection or the new one, never a mixture.
func (m *Manager) publish(coll *Collection) error {
	raw, err := json.Marshal(coll)
	if err != nil {
		return fmt.Errorf("encode collection: %w", err)
	}

	staging := filepath.Join(m.baseDir, fmt.Sprintf(".building-%s-%s", coll.Name, uuid.NewString()))
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := os.WriteFile(filepath.Join(staging, collectionFile), raw, 0o644); err != nil {
		return fmt.Errorf("write collection: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	final := m.collectionDir(coll.Name)
	if err := os.RemoveAll(final); err != nil {
		return fmt.Errorf("remove previous collection: %w", err)
	}
	if err := os.Rename(staging, final); err != nil {
		return fmt.Errorf("publish collection: %w", err)
	}

	m.loaded[coll.Name] = coll
	return nil
}

// Search embeds the query and returns the k nearest chunks of a collection,
// lower distance first. filter optionally restricts hits by metadata
// equality.
func (m *Manager) Search(ctx context.Context, name, query string, k int, filter map[string]string) ([]Hit, error) {
	coll, err := m.get(name)
	if err != nil {
		return nil, err
	}

	vector, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	start := time.Now()
	hits := coll.Search(vector, k, filter)
	if m.collector != nil {
		m.collector.RecordTiming(metrics.OpIndexSearch, time.Since(start))
	}

	slog.Debug("collection searched", "collection", name, "hits", len(hits), "k", k)
	return hits, nil
}

// Collections lists the names of all persisted collections.
func (m *Manager) Collections() ([]string, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read store directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && validCollectionName.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Stats describes a persisted collection without exposing its chunks.
type Stats struct {
	Name           string    `json:"name"`
	EmbeddingModel string    `json:"embedding_model"`
	Dimension      int       `json:"dimension"`
	BuiltAt        time.Time `json:"built_at"`
	Chunks         int       `json:"chunks"`
}

// CollectionStats loads a collection if needed and reports its metadata.
func (m *Manager) CollectionStats(name string) (*Stats, error) {
	coll, err := m.get(name)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Name:           coll.Name,
		EmbeddingModel: coll.EmbeddingModel,
		Dimension:      coll.Dimension,
		BuiltAt:        coll.BuiltAt,
		Chunks:         len(coll.Chunks),
	}, nil
}

// get returns a loaded collection, reading it from disk on first reference.
// Absence is not cached: a collection built later in the process lifetime
// becomes visible on the next call.
func (m *Manager) get(name string) (*Collection, error) {
	if !validCollectionName.MatchString(name) {
		return nil, fmt.Errorf("invalid collection name %q", name)
	}

	m.mu.RLock()
	coll, ok := m.loaded[name]
	m.mu.RUnlock()
	if ok {
		return coll, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if coll, ok := m.loaded[name]; ok {
		return coll, nil
	}

	raw, err := os.ReadFile(filepath.Join(m.collectionDir(name), collectionFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read collection %s: %w", name, err)
	}

	coll = &Collection{}
	if err := json.Unmarshal(raw, coll); err != nil {
		return nil, fmt.Errorf("decode collection %s: %w", name, err)
	}

	m.loaded[name] = coll
	slog.Info("collection loaded", "collection", name, "chunks", len(coll.Chunks))
	return coll, nil
}

func (m *Manager) collectionDir(name string) string {
	return filepath.Join(m.baseDir, name)
}

func stringMetadata(metadata map[string]any) map[string]string {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}
