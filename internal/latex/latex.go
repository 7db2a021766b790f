// Package latex renders a thesis document as a LaTeX source file.
//
// Render is a pure, deterministic transform: the same document always
// produces byte-identical output, and no well-formed document makes it fail.
// Content is emitted verbatim, never escaped; the editor trusts its own
// users, and unbalanced markup in a block simply surfaces in the output.
package latex

import (
	"fmt"
	"strings"

	"github.com/scribe-labs/scribe/internal/thesis"
)

// BibFileStem is the bibliography file name (without extension) referenced
// from the generated source. The bundle writes the matching references.bib.
const BibFileStem = "references"

// Render produces the complete LaTeX source for a document.
func Render(doc thesis.Document) string {
	var b strings.Builder

	writePreamble(&b, doc.Meta)

	b.WriteString("\\begin{document}\n\n\\maketitle\n\n")

	if doc.Meta.Dedication != "" {
		fmt.Fprintf(&b, "\\begin{dedication}\n%s\n\\end{dedication}\n\n", doc.Meta.Dedication)
	}
	if doc.Meta.Acknowledgements != "" {
		fmt.Fprintf(&b, "\\section*{Acknowledgements}\n\n%s\n\n", doc.Meta.Acknowledgements)
	}

	fmt.Fprintf(&b, "\\section*{Introduction}\n\n%s\n\n", doc.Intro)

	for _, ch := range doc.Chapters {
		fmt.Fprintf(&b, "\\section{%s}\n\n", ch.Title)
		for _, blk := range ch.Blocks {
			writeBlock(&b, blk)
		}
	}

	fmt.Fprintf(&b, "\\section*{Conclusions}\n\n%s\n\n", doc.Conclusions)

	fmt.Fprintf(&b, "\\bibliographystyle{plain}\n\\bibliography{%s}\n\n", BibFileStem)
	b.WriteString("\\end{document}\n")

	return b.String()
}

func writePreamble(b *strings.Builder, meta thesis.Meta) {
	b.WriteString("\\documentclass[12pt]{report}\n")
	b.WriteString("\\usepackage[utf8]{inputenc}\n")
	b.WriteString("\\usepackage{graphicx}\n")
	b.WriteString("\\usepackage{amsmath}\n\n")
	fmt.Fprintf(b, "\\title{%s}\n", meta.Title)
	fmt.Fprintf(b, "\\author{%s}\n", meta.Author)
	fmt.Fprintf(b, "\\date{%s}\n\n", meta.Date)
}

func writeBlock(b *strings.Builder, blk thesis.Block) {
	switch blk.Type {
	case thesis.BlockText:
		b.WriteString(blk.Content)
		b.WriteString("\n\n")
	case thesis.BlockImage:
		writeFigure(b, blk)
	case thesis.BlockTable:
		writeTable(b, blk)
	case thesis.BlockEquation:
		fmt.Fprintf(b, "\\[\n%s\n\\]\n\n", blk.Content)
	}
}

// writeFigure emits a figure placeholder. The includegraphics directive is
// commented out: embedding only works once the binary sits next to the
// source, which is the bundle assembler's job, not the serializer's.
func writeFigure(b *strings.Builder, blk thesis.Block) {
	caption := blk.Caption
	if caption == "" {
		caption = blk.Filename
	}
	b.WriteString("\\begin{figure}[h]\n")
	b.WriteString("  \\centering\n")
	fmt.Fprintf(b, "  %% \\includegraphics[width=\\linewidth]{images/%s}\n", blk.Filename)
	fmt.Fprintf(b, "  \\caption{%s}\n", caption)
	b.WriteString("\\end{figure}\n\n")
}

// writeTable emits a rows x cols tabular in row-major order. Cells never
// written read as empty strings, so sparse tables render as full grids.
func writeTable(b *strings.Builder, blk thesis.Block) {
	b.WriteString("\\begin{table}[h]\n")
	b.WriteString("  \\centering\n")
	fmt.Fprintf(b, "  \\begin{tabular}{|%s}\n", strings.Repeat("c|", blk.Cols))
	b.WriteString("    \\hline\n")
	for r := 0; r < blk.Rows; r++ {
		cells := make([]string, blk.Cols)
		for c := 0; c < blk.Cols; c++ {
			cells[c] = blk.Cell(r, c)
		}
		fmt.Fprintf(b, "    %s \\\\ \\hline\n", strings.Join(cells, " & "))
	}
	b.WriteString("  \\end{tabular}\n")
	if blk.Caption != "" {
		fmt.Fprintf(b, "  \\caption{%s}\n", blk.Caption)
	}
	b.WriteString("\\end{table}\n\n")
}
