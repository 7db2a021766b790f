// Package bundle assembles the downloadable export archive: the rendered
// LaTeX source, the bibliography file, a JSON backup of the document, and
// every image payload that can still be fetched.
package bundle

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/scribe-labs/scribe/internal/imagestore"
	"github.com/scribe-labs/scribe/internal/latex"
	"github.com/scribe-labs/scribe/internal/thesis"
)

// Archive entry paths for the fixed files.
const (
	TexPath     = "thesis.tex"
	BibPath     = latex.BibFileStem + ".bib"
	BackupPath  = "thesis_backup.json"
	MissingPath = "MISSING_IMAGES.txt"
	imageDir    = "images/"
)

// Entry is a single file inside the bundle.
type Entry struct {
	Path    string
	Content []byte
}

// Fetcher resolves an image source ref to raw bytes. Satisfied by
// imagestore.Store.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// Assemble renders the bundle entries for a document. Image fetches run
// concurrently; an image that cannot be fetched is logged, omitted, and
// listed in MISSING_IMAGES.txt so one dead ref never sinks the whole
// export. The three rendered files are always present.
func Assemble(ctx context.Context, doc thesis.Document, fetcher Fetcher, logger *slog.Logger) ([]Entry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	backup, err := thesis.ExportBackup(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to render backup: %w", err)
	}

	entries := []Entry{
		{Path: TexPath, Content: []byte(latex.Render(doc))},
		{Path: BibPath, Content: []byte(doc.Bib)},
		{Path: BackupPath, Content: backup},
	}

	images := doc.Images()
	fetched := make([]Entry, len(images))
	missing := make([]string, len(images))

	var wg sync.WaitGroup
	for i, img := range images {
		if img.SourceRef == "" || img.Filename == "" {
			logger.Warn("skipping image with no source", "block", img.ID)
			continue
		}
		wg.Add(1)
		go func(i int, img thesis.Block) {
			defer wg.Done()
			data, err := fetcher.Fetch(ctx, img.SourceRef)
			if err != nil {
				logger.Warn("failed to fetch image, omitting from bundle",
					"filename", img.Filename,
					"error", err)
				missing[i] = img.Filename
				return
			}
			fetched[i] = Entry{Path: imageDir + img.Filename, Content: data}
		}(i, img)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, e := range fetched {
		if e.Content == nil || seen[e.Path] {
			continue
		}
		seen[e.Path] = true
		entries = append(entries, e)
	}
	if m := manifest(missing); m != nil {
		entries = append(entries, Entry{Path: MissingPath, Content: m})
	}
	return entries, nil
}

// manifest lists the filenames that could not be fetched, one per line in
// document order, or nil when nothing is missing.
func manifest(missing []string) []byte {
	var b strings.Builder
	for _, name := range missing {
		if name == "" {
			continue
		}
		b.WriteString(name)
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return nil
	}
	return []byte(b.String())
}

// Archive writes the entries as a zip archive. Entries are written in a
// stable path order so identical inputs produce identical archives.
func Archive(w io.Writer, entries []Entry) error {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	zw := zip.NewWriter(w)
	for _, e := range sorted {
		fw, err := zw.Create(e.Path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", e.Path, err)
		}
		if _, err := fw.Write(e.Content); err != nil {
			return fmt.Errorf("failed to write %s: %w", e.Path, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

// Write assembles and archives in one step.
func Write(ctx context.Context, w io.Writer, doc thesis.Document, fetcher Fetcher, logger *slog.Logger) error {
	entries, err := Assemble(ctx, doc, fetcher, logger)
	if err != nil {
		return err
	}
	return Archive(w, entries)
}

var _ Fetcher = (imagestore.Store)(nil)
