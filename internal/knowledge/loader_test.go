package knowledge

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"
)

// writeDocx builds a minimal but valid .docx: a zip with a
// word/document.xml body containing one text run per paragraph.
func writeDocx(t *testing.T, path string, paragraphs ...string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create docx: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	body, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create document.xml: %v", err)
	}

	doc := `<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	for _, p := range paragraphs {
		doc += `<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`
	}
	doc += `</w:body></w:document>`

	if _, err := body.Write([]byte(doc)); err != nil {
		t.Fatalf("write document.xml: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "notes.txt"), "plain text notes")
	writeFile(t, filepath.Join(dir, "guide.md"), "# Heading\n\nmarkdown body")
	writeFile(t, filepath.Join(dir, "grades.csv"), "student,grade\nana,9\nbruno,7\n")
	writeFile(t, filepath.Join(dir, "config.json"), `{"school": "central"}`)
	writeFile(t, filepath.Join(dir, "ignore.xyz"), "unsupported")
	writeDocx(t, filepath.Join(dir, "lesson.docx"), "First paragraph.", "Second paragraph.")

	docs, stats, err := loadDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("loadDirectory() error = %v", err)
	}

	if len(docs) == 0 {
		t.Fatal("no documents loaded")
	}
	for _, ext := range []string{".txt", ".md", ".csv", ".json", ".docx"} {
		if stats.Loaded[ext] == 0 {
			t.Errorf("no documents loaded for %s", ext)
		}
	}
	if stats.Loaded[".xyz"] != 0 {
		t.Error("unsupported extension was loaded")
	}
	if len(stats.Skipped) != 0 {
		t.Errorf("unexpected skipped files: %v", stats.Skipped)
	}

	for _, doc := range docs {
		if doc.Metadata["source"] == nil || doc.Metadata["source"] == "" {
			t.Errorf("document without source metadata: %.40q", doc.PageContent)
		}
	}
}

func TestLoadDirectorySkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "good.txt"), "readable content")
	// Not a zip archive, so the docx loader must fail on it.
	writeFile(t, filepath.Join(dir, "broken.docx"), "this is not a zip")

	docs, stats, err := loadDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("loadDirectory() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("len(docs) = %d, want 1 (corrupt file skipped)", len(docs))
	}
	if len(stats.Skipped) != 1 {
		t.Fatalf("len(Skipped) = %d, want 1", len(stats.Skipped))
	}
}

func TestLoadDirectoryMissing(t *testing.T) {
	if _, _, err := loadDirectory(context.Background(), "/nonexistent/dir"); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestExtractDocxText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.docx")
	writeDocx(t, path, "Hello world.", "Second line.")

	text, err := extractDocxText(path)
	if err != nil {
		t.Fatalf("extractDocxText() error = %v", err)
	}
	want := "Hello world.\nSecond line."
	if text != want {
		t.Errorf("text = %q, want %q", text, want)
	}
}

func TestExtractDocxTextMissingBody(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.docx")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	zw.Close()
	f.Close()

	if _, err := extractDocxText(path); err == nil {
		t.Error("expected error for docx without word/document.xml")
	}
}
