package thesis

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Legacy document support. Before the unified block model, chapters stored a
// single content string plus per-kind arrays of images, tables and equations.
// Stored documents and old backups in that shape are migrated on load into
// the block list. The legacy shape had no cross-kind ordering, so migration
// imposes one deterministically: text first, then images, tables, equations.
// Migration is one-way and idempotent: a chapter that already has blocks
// passes through unchanged.

// LegacyImage is an image record from the per-kind array shape. StoragePath
// points at owned storage; URL at a remote-fetchable location.
type LegacyImage struct {
	ID          any    `json:"id"`
	URL         string `json:"url"`
	StoragePath string `json:"storagePath"`
	Filename    string `json:"filename"`
	Caption     string `json:"caption"`
}

// LegacyTable is a table record from the per-kind array shape. The cell map
// was stored under "data", keyed "r-c" like the unified shape.
type LegacyTable struct {
	ID   any               `json:"id"`
	Rows int               `json:"rows"`
	Cols int               `json:"cols"`
	Data map[string]string `json:"data"`
}

// LegacyEquation is an equation record from the per-kind array shape.
type LegacyEquation struct {
	ID      any    `json:"id"`
	Content string `json:"content"`
}

// LegacyChapter can decode both the unified and the legacy chapter shapes.
// A chapter is legacy when Blocks is empty and any of the legacy fields are
// populated.
type LegacyChapter struct {
	ID        any              `json:"id"`
	Title     string           `json:"title"`
	Blocks    []Block          `json:"blocks"`
	Content   string           `json:"content"`
	Images    []LegacyImage    `json:"images"`
	Tables    []LegacyTable    `json:"tables"`
	Equations []LegacyEquation `json:"equations"`
}

// MigrateChapter converts a stored chapter into the unified block shape.
// pos is the 1-based chapter position, used to default an empty title.
// Already-migrated chapters (non-empty blocks array) are returned as-is,
// which makes repeated migration a fixpoint.
func MigrateChapter(lc LegacyChapter, pos int) Chapter {
	ch := Chapter{
		ID:    legacyID(lc.ID),
		Title: lc.Title,
	}
	if ch.ID == "" {
		ch.ID = NewID()
	}
	if ch.Title == "" {
		ch.Title = fmt.Sprintf("Chapter %d", pos)
	}

	if len(lc.Blocks) > 0 {
		ch.Blocks = make([]Block, len(lc.Blocks))
		for i, b := range lc.Blocks {
			b.normalize()
			ch.Blocks[i] = b
		}
		return ch
	}

	if lc.Content != "" {
		ch.Blocks = append(ch.Blocks, Block{ID: NewID(), Type: BlockText, Content: lc.Content})
	}
	for _, im := range lc.Images {
		ref := im.StoragePath
		if ref == "" {
			ref = im.URL
		}
		ch.Blocks = append(ch.Blocks, Block{
			ID:        legacyOrNewID(im.ID),
			Type:      BlockImage,
			SourceRef: ref,
			Filename:  im.Filename,
			Caption:   im.Caption,
		})
	}
	for _, tb := range lc.Tables {
		b := Block{
			ID:    legacyOrNewID(tb.ID),
			Type:  BlockTable,
			Rows:  tb.Rows,
			Cols:  tb.Cols,
			Cells: tb.Data,
		}
		b.normalize()
		ch.Blocks = append(ch.Blocks, b)
	}
	for _, eq := range lc.Equations {
		ch.Blocks = append(ch.Blocks, Block{
			ID:      legacyOrNewID(eq.ID),
			Type:    BlockEquation,
			Content: eq.Content,
		})
	}
	return ch
}

// storedDocument decodes both unified and legacy document shapes.
type storedDocument struct {
	Meta        Meta            `json:"meta"`
	Intro       string          `json:"intro"`
	Chapters    []LegacyChapter `json:"chapters"`
	Conclusions string          `json:"conclusions"`
	Bib         string          `json:"bib"`
}

// DecodeStored unmarshals a stored document, migrating legacy chapters to the
// unified block shape. This is the single load-boundary entry point; steady
// state operations never see the legacy shape.
func DecodeStored(data []byte) (Document, error) {
	var sd storedDocument
	if err := json.Unmarshal(data, &sd); err != nil {
		return Document{}, fmt.Errorf("failed to decode stored document: %w", err)
	}
	doc := Document{
		Meta:        sd.Meta,
		Intro:       sd.Intro,
		Conclusions: sd.Conclusions,
		Bib:         sd.Bib,
	}
	for i, lc := range sd.Chapters {
		doc.Chapters = append(doc.Chapters, MigrateChapter(lc, i+1))
	}
	return doc, nil
}

// legacyID normalizes a legacy id, which may be a string ("ch1") or a number
// (creation timestamps like 1700000000000), into a string. Returns "" when
// absent.
func legacyID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatInt(int64(id), 10)
	case json.Number:
		return id.String()
	case int64:
		return strconv.FormatInt(id, 10)
	case int:
		return strconv.Itoa(id)
	default:
		return ""
	}
}

func legacyOrNewID(v any) string {
	if id := legacyID(v); id != "" {
		return id
	}
	return NewID()
}
