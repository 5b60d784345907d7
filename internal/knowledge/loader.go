// Package knowledge implements the knowledge index: document loading,
// chunking, embedding, and per-collection persisted similarity search.
package knowledge

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
)

// LoadStats reports per-type document counts from a directory load.
type LoadStats struct {
	Loaded  map[string]int
	Skipped []string
}

// loadDirectory reads all supported files under dir (recursively) and returns
// one or more documents per file. A failure to load a single file is logged
// and skipped; it never aborts the rest of the load.
func loadDirectory(ctx context.Context, dir string) ([]schema.Document, LoadStats, error) {
	stats := LoadStats{Loaded: make(map[string]int)}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, stats, fmt.Errorf("source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, stats, fmt.Errorf("source path is not a directory: %s", dir)
	}

	var docs []schema.Document
	walkFn := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		loaded, lErr := loadFile(ctx, path, ext)
		if lErr != nil {
			slog.Warn("skipping unreadable document", "file", path, "type", ext, "error", lErr)
			stats.Skipped = append(stats.Skipped, path)
			return nil
		}
		if loaded == nil {
			// Unsupported extension
			return nil
		}

		docs = append(docs, loaded...)
		stats.Loaded[ext] += len(loaded)
		return nil
	}

	if err := filepath.WalkDir(dir, walkFn); err != nil {
		return nil, stats, fmt.Errorf("scan directory: %w", err)
	}

	for ext, n := range stats.Loaded {
		slog.Info("loaded documents", "type", ext, "count", n)
	}
	if len(stats.Skipped) > 0 {
		slog.Warn("some documents were skipped", "count", len(stats.Skipped))
	}

	return docs, stats, nil
}

// loadFile dispatches to the loader for a file extension. Returns (nil, nil)
// for unsupported extensions.
func loadFile(ctx context.Context, path, ext string) ([]schema.Document, error) {
	switch ext {
	case ".txt", ".md":
		return loadWithReader(ctx, path, func(raw []byte) documentloaders.Loader {
			return documentloaders.NewText(bytes.NewReader(raw))
		})

	case ".csv":
		return loadWithReader(ctx, path, func(raw []byte) documentloaders.Loader {
			return documentloaders.NewCSV(bytes.NewReader(raw))
		})

	case ".pdf":
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		loader := documentloaders.NewPDF(bytes.NewReader(raw), int64(len(raw)))
		docs, err := loader.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("parse pdf: %w", err)
		}
		return withSource(docs, path), nil

	case ".docx":
		text, err := extractDocxText(path)
		if err != nil {
			return nil, fmt.Errorf("parse docx: %w", err)
		}
		return []schema.Document{{
			PageContent: text,
			Metadata:    map[string]any{"source": path},
		}}, nil

	case ".json":
		// JSON is opaque: the serialized text is the document, no field
		// extraction.
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return []schema.Document{{
			PageContent: string(raw),
			Metadata:    map[string]any{"source": path},
		}}, nil

	default:
		return nil, nil
	}
}

func loadWithReader(ctx context.Context, path string, newLoader func([]byte) documentloaders.Loader) ([]schema.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	docs, err := newLoader(raw).Load(ctx)
	if err != nil {
		return nil, err
	}
	return withSource(docs, path), nil
}

// withSource stamps the originating file path onto each document's metadata.
func withSource(docs []schema.Document, path string) []schema.Document {
	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = make(map[string]any)
		}
		docs[i].Metadata["source"] = path
	}
	return docs
}
