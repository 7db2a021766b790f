package thesis

import "fmt"

// Editing operations. Every operation takes a Document by value and returns a
// new Document; the input is never mutated, so concurrent readers holding an
// older snapshot always see a consistent document. Operations index by stable
// id, never by position. Operating on an id that no longer exists is a no-op:
// stale-id edits caused by a concurrent removal are tolerated, not errors.

// EffectKind names a side effect requested by a mutation.
type EffectKind string

// EffectReleaseImage asks the image storage boundary to release an external
// payload. Delivery is fire-and-forget: the storage adapter decides whether
// the ref is releasable and failures are logged, never fed back into the
// document.
const EffectReleaseImage EffectKind = "release_image"

// Effect is a queued side effect returned alongside a mutated document.
// Effects keep the mutations themselves pure: nothing here touches storage.
type Effect struct {
	Kind      EffectKind
	SourceRef string
}

// AddChapter appends a new chapter with a generated id, a default title and
// one empty text block.
func AddChapter(doc Document) Document {
	out := doc.clone()
	title := fmt.Sprintf("Chapter %d", len(out.Chapters)+1)
	out.Chapters = append(out.Chapters, newChapter(title))
	return out
}

// RemoveChapter removes the chapter with the given id. Image blocks inside
// the removed chapter yield release effects, same as removing them one by
// one. No-op if the chapter is not found.
func RemoveChapter(doc Document, chapterID string) (Document, []Effect) {
	idx := doc.FindChapter(chapterID)
	if idx < 0 {
		return doc, nil
	}
	out := doc.clone()
	var effects []Effect
	for _, b := range out.Chapters[idx].Blocks {
		if b.Type == BlockImage && b.SourceRef != "" {
			effects = append(effects, Effect{Kind: EffectReleaseImage, SourceRef: b.SourceRef})
		}
	}
	out.Chapters = append(out.Chapters[:idx], out.Chapters[idx+1:]...)
	return out, effects
}

// RenameChapter sets the chapter title. An empty title falls back to a
// positional default so chapters always render with some heading.
func RenameChapter(doc Document, chapterID, title string) Document {
	idx := doc.FindChapter(chapterID)
	if idx < 0 {
		return doc
	}
	out := doc.clone()
	if title == "" {
		title = fmt.Sprintf("Chapter %d", idx+1)
	}
	out.Chapters[idx].Title = title
	return out
}

// AppendBlock appends a block to the chapter. The block is normalized on the
// way in (id assigned if missing, table dimensions clamped). No-op if the
// chapter is not found.
func AppendBlock(doc Document, chapterID string, block Block) Document {
	idx := doc.FindChapter(chapterID)
	if idx < 0 {
		return doc
	}
	block.normalize()
	out := doc.clone()
	out.Chapters[idx].Blocks = append(out.Chapters[idx].Blocks, block)
	return out
}

// BlockPatch is a partial block update. Nil fields are left unchanged; Cells,
// when present, replaces the whole cell map (cell-level merges are a client
// concern).
type BlockPatch struct {
	Content  *string           `json:"content,omitempty"`
	Filename *string           `json:"filename,omitempty"`
	Caption  *string           `json:"caption,omitempty"`
	Rows     *int              `json:"rows,omitempty"`
	Cols     *int              `json:"cols,omitempty"`
	Cells    map[string]string `json:"cells,omitempty"`
}

// UpdateBlock merges the patch into the addressed block. Concurrent updates
// to the same block overwrite under last-write-wins; there is no merge.
// No-op if the chapter or block is not found.
func UpdateBlock(doc Document, chapterID, blockID string, patch BlockPatch) Document {
	ci := doc.FindChapter(chapterID)
	if ci < 0 {
		return doc
	}
	bi := doc.Chapters[ci].FindBlock(blockID)
	if bi < 0 {
		return doc
	}

	out := doc.clone()
	b := &out.Chapters[ci].Blocks[bi]
	if patch.Content != nil {
		b.Content = *patch.Content
	}
	if patch.Filename != nil {
		b.Filename = *patch.Filename
	}
	if patch.Caption != nil {
		b.Caption = *patch.Caption
	}
	if patch.Rows != nil {
		b.Rows = *patch.Rows
	}
	if patch.Cols != nil {
		b.Cols = *patch.Cols
	}
	if patch.Cells != nil {
		b.Cells = patch.Cells
	}
	b.normalize()
	return out
}

// RemoveBlock removes the addressed block. Removing an image block with a
// source ref additionally returns a release effect so the external payload
// can be cleaned up out of band. No-op if the chapter or block is not found.
func RemoveBlock(doc Document, chapterID, blockID string) (Document, []Effect) {
	ci := doc.FindChapter(chapterID)
	if ci < 0 {
		return doc, nil
	}
	bi := doc.Chapters[ci].FindBlock(blockID)
	if bi < 0 {
		return doc, nil
	}

	out := doc.clone()
	var effects []Effect
	removed := out.Chapters[ci].Blocks[bi]
	if removed.Type == BlockImage && removed.SourceRef != "" {
		effects = append(effects, Effect{Kind: EffectReleaseImage, SourceRef: removed.SourceRef})
	}
	out.Chapters[ci].Blocks = append(out.Chapters[ci].Blocks[:bi], out.Chapters[ci].Blocks[bi+1:]...)
	return out, effects
}

// SetMeta replaces the title-page metadata.
func SetMeta(doc Document, meta Meta) Document {
	out := doc.clone()
	out.Meta = meta
	return out
}

// SectionsPatch is a partial update of the free-text top-level sections.
type SectionsPatch struct {
	Intro       *string `json:"intro,omitempty"`
	Conclusions *string `json:"conclusions,omitempty"`
	Bib         *string `json:"bib,omitempty"`
}

// PatchSections merges the patch into the document's top-level text sections.
func PatchSections(doc Document, patch SectionsPatch) Document {
	out := doc.clone()
	if patch.Intro != nil {
		out.Intro = *patch.Intro
	}
	if patch.Conclusions != nil {
		out.Conclusions = *patch.Conclusions
	}
	if patch.Bib != nil {
		out.Bib = *patch.Bib
	}
	return out
}

// AppendBib appends a bibliography entry to the free-text bibliography,
// separated by a blank line. The bibliography is append-only text; existing
// entries are never parsed or rewritten.
func AppendBib(doc Document, entry string) Document {
	out := doc.clone()
	if out.Bib == "" {
		out.Bib = entry
	} else {
		out.Bib = out.Bib + "\n\n" + entry
	}
	return out
}
