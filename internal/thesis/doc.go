// Package thesis holds the canonical in-memory thesis document model and the
// editing operations over it. This package has no dependencies on other scribe
// packages; everything here is pure data plus validation, so stores, servers
// and exporters can all share one representation.
package thesis

import "github.com/google/uuid"

// BackupVersion is the version stamp written into JSON backups.
const BackupVersion = 1

// Meta holds the title-page metadata. All fields are free text; empty values
// are tolerated everywhere and default at render time, not here.
type Meta struct {
	Title            string `json:"title"`
	Author           string `json:"author"`
	Date             string `json:"date"`
	Dedication       string `json:"dedication,omitempty"`
	Acknowledgements string `json:"acknowledgements,omitempty"`
}

// Chapter is one numbered section of the thesis: a stable id, a title and an
// ordered list of content blocks. Block order is the display and export order;
// there is no other ordering signal.
type Chapter struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Blocks []Block `json:"blocks"`
}

// Document is the root aggregate: metadata, introduction, ordered chapters,
// conclusions and a free-text BibTeX bibliography. The bibliography is an
// opaque append-only string; scribe never parses it back.
type Document struct {
	Meta        Meta      `json:"meta"`
	Intro       string    `json:"intro"`
	Chapters    []Chapter `json:"chapters"`
	Conclusions string    `json:"conclusions"`
	Bib         string    `json:"bib"`
}

// DefaultBib seeds new documents with one example reference, matching what a
// first-time user sees in the editor.
const DefaultBib = `@article{smith2023,
  author = {Smith, Jane},
  title = {A great paper},
  journal = {Example Journal},
  year = {2023}
}`

// NewDocument returns a fresh document: defaulted metadata and a single
// chapter seeded with one empty text block.
func NewDocument() Document {
	return Document{
		Meta: Meta{
			Title:  "My Thesis",
			Author: "Author Name",
			Date:   "Thesis date",
		},
		Chapters: []Chapter{newChapter("Chapter 1")},
		Bib:      DefaultBib,
	}
}

// newChapter creates a chapter with a generated id and one empty text block.
func newChapter(title string) Chapter {
	return Chapter{
		ID:     NewID(),
		Title:  title,
		Blocks: []Block{NewTextBlock("")},
	}
}

// NewID returns a unique identifier for chapters and blocks.
func NewID() string {
	return uuid.NewString()
}

// FindChapter returns the index of the chapter with the given id, or -1.
func (d Document) FindChapter(chapterID string) int {
	for i, ch := range d.Chapters {
		if ch.ID == chapterID {
			return i
		}
	}
	return -1
}

// FindBlock returns the index of the block with the given id, or -1.
func (c Chapter) FindBlock(blockID string) int {
	for i, b := range c.Blocks {
		if b.ID == blockID {
			return i
		}
	}
	return -1
}

// Images returns all image blocks across all chapters, in document order.
func (d Document) Images() []Block {
	var out []Block
	for _, ch := range d.Chapters {
		for _, b := range ch.Blocks {
			if b.Type == BlockImage {
				out = append(out, b)
			}
		}
	}
	return out
}

// clone returns a deep-enough copy for snapshot-replace semantics: the
// chapter slice and each chapter's block slice are fresh, so mutations on the
// copy never show through a previously returned snapshot. Cell maps are
// copied too since patches replace them wholesale.
func (d Document) clone() Document {
	out := d
	out.Chapters = make([]Chapter, len(d.Chapters))
	for i, ch := range d.Chapters {
		out.Chapters[i] = ch.clone()
	}
	return out
}

func (c Chapter) clone() Chapter {
	out := c
	out.Blocks = make([]Block, len(c.Blocks))
	for i, b := range c.Blocks {
		out.Blocks[i] = b.clone()
	}
	return out
}
