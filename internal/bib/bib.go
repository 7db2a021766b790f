// Package bib formats BibTeX entries for the append-only bibliography.
// The bibliography itself stays an opaque string on the document; this
// package only ever produces well-formed entries to append to it, it never
// parses existing text back.
package bib

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// EntryType is the BibTeX record type.
type EntryType string

const (
	TypeArticle       EntryType = "article"
	TypeBook          EntryType = "book"
	TypeInProceedings EntryType = "inproceedings"
	TypeMisc          EntryType = "misc"
)

// Entry is one bibliography record to be formatted. Empty fields are
// omitted from the output.
type Entry struct {
	Type      EntryType `json:"type"`
	Key       string    `json:"key"`
	Author    string    `json:"author"`
	Title     string    `json:"title"`
	Year      string    `json:"year"`
	Journal   string    `json:"journal"`
	Publisher string    `json:"publisher"`
}

// Format renders the entry as a BibTeX record. The journal field only
// applies to articles, the publisher field only to books and proceedings.
// Entries without a citation key get a generated one.
func (e Entry) Format() string {
	typ := e.Type
	switch typ {
	case TypeArticle, TypeBook, TypeInProceedings, TypeMisc:
	default:
		typ = TypeMisc
	}

	key := e.Key
	if key == "" {
		key = "ref" + strings.Split(uuid.NewString(), "-")[0]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "@%s{%s,\n", typ, key)
	if e.Author != "" {
		fmt.Fprintf(&b, "  author = {%s},\n", e.Author)
	}
	if e.Title != "" {
		fmt.Fprintf(&b, "  title = {%s},\n", e.Title)
	}
	if e.Year != "" {
		fmt.Fprintf(&b, "  year = {%s},\n", e.Year)
	}
	if typ == TypeArticle && e.Journal != "" {
		fmt.Fprintf(&b, "  journal = {%s},\n", e.Journal)
	}
	if (typ == TypeBook || typ == TypeInProceedings) && e.Publisher != "" {
		fmt.Fprintf(&b, "  publisher = {%s},\n", e.Publisher)
	}
	b.WriteString("}")
	return b.String()
}
