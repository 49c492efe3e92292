package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/Sternrassler/altered-catalogue/pkg/normalize"
	"github.com/mattn/go-runewidth"
)

// markdownColumns are the Columns shown in the preview. Thumbnails are dropped.
var markdownColumns = Columns[1:]

// WriteMarkdown renders rows as a markdown table whose columns line up in a
// terminal, including double-width card names.
func WriteMarkdown(w io.Writer, rows []normalize.Row) error {
	table := make([][]string, 0, len(rows)+1)

	header := make([]string, len(markdownColumns))
	for i, c := range markdownColumns {
		header[i] = c.Header
	}
	table = append(table, header)

	for _, row := range rows {
		values := CellValues(row)[1:]
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = escapeCell(fmt.Sprint(v))
		}
		if row.ImageURL != "" {
			cells[len(cells)-1] = fmt.Sprintf("[%s](%s)", LinkText, escapeCell(row.ImageURL))
		}
		table = append(table, cells)
	}

	widths := make([]int, len(header))
	for _, cells := range table {
		for i, cell := range cells {
			if cw := runewidth.StringWidth(cell); cw > widths[i] {
				widths[i] = cw
			}
		}
	}
	for i := range widths {
		// "---" is the shortest valid delimiter.
		widths[i] = max(widths[i], 3)
	}

	bw := bufio.NewWriter(w)
	writeMarkdownLine(bw, table[0], widths)

	sep := make([]string, len(widths))
	for i, width := range widths {
		sep[i] = strings.Repeat("-", width)
	}
	writeMarkdownLine(bw, sep, widths)

	for _, cells := range table[1:] {
		writeMarkdownLine(bw, cells, widths)
	}

	return bw.Flush()
}

func writeMarkdownLine(w *bufio.Writer, cells []string, widths []int) {
	w.WriteString("|")
	for i, cell := range cells {
		w.WriteString(" ")
		w.WriteString(runewidth.FillRight(cell, widths[i]))
		w.WriteString(" |")
	}
	w.WriteString("\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
