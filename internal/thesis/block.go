package thesis

import "fmt"

// BlockType discriminates the content block union.
type BlockType string

const (
	// BlockText is a verbatim paragraph of prose.
	BlockText BlockType = "text"
	// BlockImage references an uploaded or remote image by source ref.
	BlockImage BlockType = "image"
	// BlockTable is a rows x cols grid with sparse cell data.
	BlockTable BlockType = "table"
	// BlockEquation is raw display-math markup, passed through unvalidated.
	BlockEquation BlockType = "equation"
)

// Block is one unit of chapter content. It is a tagged union: Type selects
// the variant and only that variant's fields are meaningful. Unknown fields
// for a variant are simply ignored by renderers.
type Block struct {
	ID   string    `json:"id"`
	Type BlockType `json:"type"`

	// Text and equation content.
	Content string `json:"content,omitempty"`

	// Image fields. SourceRef is an opaque reference into the image storage
	// boundary: either an owned payload or a remote-fetchable URL.
	SourceRef string `json:"source_ref,omitempty"`
	Filename  string `json:"filename,omitempty"`

	// Table fields. Cells is sparse, keyed "r-c" with zero-based indices;
	// missing cells read as empty strings.
	Rows  int               `json:"rows,omitempty"`
	Cols  int               `json:"cols,omitempty"`
	Cells map[string]string `json:"cells,omitempty"`

	// Caption applies to images and tables.
	Caption string `json:"caption,omitempty"`
}

// CellKey builds the sparse cell map key for a zero-based row and column.
func CellKey(row, col int) string {
	return fmt.Sprintf("%d-%d", row, col)
}

// Cell reads one table cell, returning "" for cells never written.
func (b Block) Cell(row, col int) string {
	if b.Cells == nil {
		return ""
	}
	return b.Cells[CellKey(row, col)]
}

// NewTextBlock creates a text block with a generated id.
func NewTextBlock(content string) Block {
	return Block{ID: NewID(), Type: BlockText, Content: content}
}

// NewImageBlock creates an image block with a generated id.
func NewImageBlock(sourceRef, filename, caption string) Block {
	return Block{
		ID:        NewID(),
		Type:      BlockImage,
		SourceRef: sourceRef,
		Filename:  filename,
		Caption:   caption,
	}
}

// NewTableBlock creates a table block with a generated id. Dimensions are
// clamped to at least 1x1.
func NewTableBlock(rows, cols int, cells map[string]string, caption string) Block {
	b := Block{
		ID:      NewID(),
		Type:    BlockTable,
		Rows:    rows,
		Cols:    cols,
		Cells:   cells,
		Caption: caption,
	}
	b.normalize()
	return b
}

// NewEquationBlock creates an equation block with a generated id.
func NewEquationBlock(content string) Block {
	return Block{ID: NewID(), Type: BlockEquation, Content: content}
}

// normalize enforces the block invariants: a non-empty id, a known type
// (defaulting to text) and table dimensions of at least 1x1. Called at every
// mutation boundary so stored documents always satisfy the invariants.
func (b *Block) normalize() {
	if b.ID == "" {
		b.ID = NewID()
	}
	switch b.Type {
	case BlockText, BlockImage, BlockEquation:
	case BlockTable:
		if b.Rows < 1 {
			b.Rows = 1
		}
		if b.Cols < 1 {
			b.Cols = 1
		}
	default:
		b.Type = BlockText
	}
}

func (b Block) clone() Block {
	out := b
	if b.Cells != nil {
		out.Cells = make(map[string]string, len(b.Cells))
		for k, v := range b.Cells {
			out.Cells[k] = v
		}
	}
	return out
}
