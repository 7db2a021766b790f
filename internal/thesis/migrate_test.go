package thesis

import (
	"reflect"
	"testing"
)

func TestMigrateChapter(t *testing.T) {
	t.Run("legacy order is text, images, tables, equations", func(t *testing.T) {
		lc := LegacyChapter{
			ID:      "ch1",
			Title:   "Chapter 1",
			Content: "X",
			Images: []LegacyImage{
				{ID: float64(1700000000001), URL: "https://cdn.example/fig.png", Filename: "fig.png", Caption: "a fig"},
			},
			Tables: []LegacyTable{
				{ID: float64(1700000000002), Rows: 2, Cols: 2, Data: map[string]string{"0-0": "a"}},
			},
			Equations: []LegacyEquation{
				{ID: float64(1700000000003), Content: "E=mc^2"},
			},
		}

		ch := MigrateChapter(lc, 1)
		if ch.ID != "ch1" {
			t.Errorf("expected chapter id preserved, got %q", ch.ID)
		}
		if len(ch.Blocks) != 4 {
			t.Fatalf("expected 4 blocks, got %d", len(ch.Blocks))
		}

		wantTypes := []BlockType{BlockText, BlockImage, BlockTable, BlockEquation}
		for i, want := range wantTypes {
			if ch.Blocks[i].Type != want {
				t.Errorf("block %d: expected type %s, got %s", i, want, ch.Blocks[i].Type)
			}
		}

		if ch.Blocks[0].Content != "X" {
			t.Errorf("text content not preserved: %q", ch.Blocks[0].Content)
		}
		img := ch.Blocks[1]
		if img.SourceRef != "https://cdn.example/fig.png" || img.Filename != "fig.png" || img.Caption != "a fig" {
			t.Errorf("image fields not preserved: %+v", img)
		}
		if img.ID != "1700000000001" {
			t.Errorf("numeric legacy id should become a string, got %q", img.ID)
		}
		tbl := ch.Blocks[2]
		if tbl.Rows != 2 || tbl.Cols != 2 || tbl.Cell(0, 0) != "a" {
			t.Errorf("table fields not preserved: %+v", tbl)
		}
		if ch.Blocks[3].Content != "E=mc^2" {
			t.Errorf("equation content not preserved: %q", ch.Blocks[3].Content)
		}
	})

	t.Run("empty content emits no text block", func(t *testing.T) {
		ch := MigrateChapter(LegacyChapter{
			ID:     "ch2",
			Images: []LegacyImage{{Filename: "only.png", URL: "https://x/only.png"}},
		}, 1)
		if len(ch.Blocks) != 1 || ch.Blocks[0].Type != BlockImage {
			t.Errorf("expected a single image block, got %+v", ch.Blocks)
		}
	})

	t.Run("owned storage path wins over url", func(t *testing.T) {
		ch := MigrateChapter(LegacyChapter{
			ID:     "ch3",
			Images: []LegacyImage{{StoragePath: "users/u1/fig.png", URL: "https://x/fig.png", Filename: "fig.png"}},
		}, 1)
		if ch.Blocks[0].SourceRef != "users/u1/fig.png" {
			t.Errorf("expected storage path as source ref, got %q", ch.Blocks[0].SourceRef)
		}
	})

	t.Run("already migrated chapters pass through", func(t *testing.T) {
		lc := LegacyChapter{
			ID:     "ch4",
			Title:  "Done",
			Blocks: []Block{NewTextBlock("already here")},
			// Stale legacy leftovers must be ignored once blocks exist.
			Content: "stale",
			Images:  []LegacyImage{{Filename: "stale.png"}},
		}
		ch := MigrateChapter(lc, 1)
		if len(ch.Blocks) != 1 {
			t.Fatalf("expected 1 block, got %d", len(ch.Blocks))
		}
		if ch.Blocks[0].Content != "already here" {
			t.Errorf("migrated chapter was rewritten: %+v", ch.Blocks[0])
		}

		again := MigrateChapter(LegacyChapter{ID: ch.ID, Title: ch.Title, Blocks: ch.Blocks}, 1)
		if !reflect.DeepEqual(ch, again) {
			t.Error("migration is not idempotent")
		}
	})

	t.Run("empty title gets a positional default", func(t *testing.T) {
		ch := MigrateChapter(LegacyChapter{ID: "ch5", Content: "x"}, 3)
		if ch.Title != "Chapter 3" {
			t.Errorf("expected positional title default, got %q", ch.Title)
		}
	})

	t.Run("missing ids are generated", func(t *testing.T) {
		ch := MigrateChapter(LegacyChapter{Content: "x"}, 1)
		if ch.ID == "" {
			t.Error("expected generated chapter id")
		}
		if ch.Blocks[0].ID == "" {
			t.Error("expected generated block id")
		}
	})
}

func TestDecodeStored(t *testing.T) {
	t.Run("legacy document", func(t *testing.T) {
		data := []byte(`{
			"meta": {"title": "T", "author": "A", "date": "2023"},
			"intro": "hello",
			"chapters": [
				{"id": "ch1", "title": "C1", "content": "body",
				 "images": [], "tables": [], "equations": [{"id": 5, "content": "x^2"}]}
			],
			"conclusions": "bye",
			"bib": "@misc{a,}"
		}`)

		doc, err := DecodeStored(data)
		if err != nil {
			t.Fatalf("DecodeStored() error = %v", err)
		}
		if doc.Meta.Title != "T" || doc.Intro != "hello" || doc.Conclusions != "bye" {
			t.Errorf("top-level fields not decoded: %+v", doc)
		}
		if len(doc.Chapters) != 1 {
			t.Fatalf("expected 1 chapter, got %d", len(doc.Chapters))
		}
		blocks := doc.Chapters[0].Blocks
		if len(blocks) != 2 || blocks[0].Type != BlockText || blocks[1].Type != BlockEquation {
			t.Errorf("unexpected migrated blocks: %+v", blocks)
		}
	})

	t.Run("unified document round trips", func(t *testing.T) {
		doc := NewDocument()
		doc = AppendBlock(doc, doc.Chapters[0].ID, NewEquationBlock("a+b"))

		data, err := ExportBackup(doc)
		if err != nil {
			t.Fatalf("ExportBackup() error = %v", err)
		}
		got, err := DecodeStored(data)
		if err != nil {
			t.Fatalf("DecodeStored() error = %v", err)
		}
		if !reflect.DeepEqual(doc, got) {
			t.Errorf("round trip mismatch:\nwant %+v\ngot  %+v", doc, got)
		}
	})

	t.Run("malformed JSON errors", func(t *testing.T) {
		if _, err := DecodeStored([]byte("{not json")); err == nil {
			t.Error("expected error for malformed JSON")
		}
	})
}
