package bundle

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/scribe-labs/scribe/internal/thesis"
)

// mapFetcher serves refs from a map and fails everything else.
type mapFetcher struct {
	payloads map[string][]byte
}

func (f mapFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	data, ok := f.payloads[ref]
	if !ok {
		return nil, errors.New("ref unavailable")
	}
	return data, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
}

func docWithImages(refs map[string]string) thesis.Document {
	doc := thesis.NewDocument()
	for name, ref := range refs {
		doc = thesis.AppendBlock(doc, doc.Chapters[0].ID, thesis.NewImageBlock(ref, name, ""))
	}
	return doc
}

func entryPaths(entries []Entry) []string {
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	return paths
}

func findEntry(t *testing.T, entries []Entry, path string) Entry {
	t.Helper()
	for _, e := range entries {
		if e.Path == path {
			return e
		}
	}
	t.Fatalf("entry %s not found in %v", path, entryPaths(entries))
	return Entry{}
}

func TestAssembleFixedEntries(t *testing.T) {
	doc := thesis.NewDocument()
	entries, err := Assemble(context.Background(), doc, mapFetcher{}, discardLogger())
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected tex, bib and backup only, got %v", entryPaths(entries))
	}

	tex := findEntry(t, entries, TexPath)
	if !strings.Contains(string(tex.Content), `\documentclass`) {
		t.Errorf("tex entry does not look like LaTeX: %q", tex.Content)
	}

	bib := findEntry(t, entries, BibPath)
	if string(bib.Content) != doc.Bib {
		t.Errorf("bib entry should be the raw bibliography text")
	}

	backup := findEntry(t, entries, BackupPath)
	if !strings.Contains(string(backup.Content), `"version": 1`) {
		t.Errorf("backup entry missing version marker: %q", backup.Content)
	}
}

func TestAssemblePartialImageFailure(t *testing.T) {
	doc := docWithImages(map[string]string{
		"a.png": "file:a.png",
		"b.png": "file:b.png",
		"c.png": "file:c.png",
	})
	fetcher := mapFetcher{payloads: map[string][]byte{
		"file:a.png": []byte("A"),
		"file:c.png": []byte("C"),
		// b.png is unfetchable.
	}}

	entries, err := Assemble(context.Background(), doc, fetcher, discardLogger())
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(entries) != 6 {
		t.Fatalf("expected 3 fixed entries, 2 surviving images and the missing list, got %v", entryPaths(entries))
	}
	findEntry(t, entries, "images/a.png")
	findEntry(t, entries, "images/c.png")
	for _, e := range entries {
		if e.Path == "images/b.png" {
			t.Errorf("unfetchable image must be omitted, not included empty")
		}
	}

	missing := findEntry(t, entries, MissingPath)
	if string(missing.Content) != "b.png\n" {
		t.Errorf("expected missing list to name only b.png, got %q", missing.Content)
	}
}

func TestAssembleNoManifestWhenAllImagesFetch(t *testing.T) {
	doc := docWithImages(map[string]string{"fig.png": "file:fig.png"})
	fetcher := mapFetcher{payloads: map[string][]byte{"file:fig.png": []byte("F")}}

	entries, err := Assemble(context.Background(), doc, fetcher, discardLogger())
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	for _, e := range entries {
		if e.Path == MissingPath {
			t.Errorf("missing list must only appear when a fetch failed")
		}
	}
}

func TestAssembleSkipsBlankImages(t *testing.T) {
	doc := thesis.NewDocument()
	doc = thesis.AppendBlock(doc, doc.Chapters[0].ID, thesis.NewImageBlock("", "", ""))

	entries, err := Assemble(context.Background(), doc, mapFetcher{}, discardLogger())
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected placeholder image to be skipped, got %v", entryPaths(entries))
	}
}

func TestAssembleDeduplicatesFilenames(t *testing.T) {
	doc := thesis.NewDocument()
	doc = thesis.AppendBlock(doc, doc.Chapters[0].ID, thesis.NewImageBlock("file:one", "same.png", ""))
	doc = thesis.AppendBlock(doc, doc.Chapters[0].ID, thesis.NewImageBlock("file:two", "same.png", ""))

	fetcher := mapFetcher{payloads: map[string][]byte{
		"file:one": []byte("1"),
		"file:two": []byte("2"),
	}}
	entries, err := Assemble(context.Background(), doc, fetcher, discardLogger())
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	count := 0
	for _, e := range entries {
		if e.Path == "images/same.png" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected one entry per archive path, got %d", count)
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	entries := []Entry{
		{Path: "b.txt", Content: []byte("bee")},
		{Path: "a.txt", Content: []byte("ay")},
	}

	var buf bytes.Buffer
	if err := Archive(&buf, entries); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("expected 2 files, got %d", len(zr.File))
	}
	// Stable path ordering.
	if zr.File[0].Name != "a.txt" || zr.File[1].Name != "b.txt" {
		t.Errorf("expected sorted paths, got %s then %s", zr.File[0].Name, zr.File[1].Name)
	}

	rc, err := zr.File[1].Open()
	if err != nil {
		t.Fatalf("open entry: %v", err)
	}
	defer rc.Close()
	var got bytes.Buffer
	if _, err := got.ReadFrom(rc); err != nil {
		t.Fatalf("read entry: %v", err)
	}
	if got.String() != "bee" {
		t.Errorf("expected entry content round-trip, got %q", got.String())
	}
}

func TestWriteProducesReadableZip(t *testing.T) {
	doc := docWithImages(map[string]string{"fig.png": "file:fig.png"})
	fetcher := mapFetcher{payloads: map[string][]byte{"file:fig.png": []byte("F")}}

	var buf bytes.Buffer
	if err := Write(context.Background(), &buf, doc, fetcher, discardLogger()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	want := map[string]bool{
		TexPath: true, BibPath: true, BackupPath: true, "images/fig.png": true,
	}
	for _, f := range zr.File {
		delete(want, f.Name)
	}
	if len(want) != 0 {
		t.Errorf("archive missing entries: %v", want)
	}
}
