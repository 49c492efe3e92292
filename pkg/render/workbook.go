package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"time"

	"github.com/Sternrassler/altered-catalogue/pkg/normalize"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

const (
	headerFill  = "2F5496"
	altRowFill  = "F2F6FC"
	borderColor = "D9D9D9"
	linkColor   = "0563C1"

	headerRowHeight = 30

	// progressEvery controls how often row progress is logged.
	progressEvery = 50
)

// WorkbookOptions configures workbook rendering.
type WorkbookOptions struct {
	SheetName   string
	ThumbWidth  int
	ThumbHeight int
}

// DefaultWorkbookOptions returns the standard layout.
func DefaultWorkbookOptions() WorkbookOptions {
	return WorkbookOptions{
		SheetName:   "Altered Cards",
		ThumbWidth:  80,
		ThumbHeight: 110,
	}
}

// RowHeight returns the data row height in points for the thumbnail box.
func (o WorkbookOptions) RowHeight() float64 {
	return float64(o.ThumbHeight+4) * 0.75
}

type workbookStyles struct {
	header  int
	cell    int
	altCell int
	link    int
	altLink int
}

// WriteWorkbook renders rows into an .xlsx file at path.
func WriteWorkbook(ctx context.Context, path string, rows []normalize.Row, thumbs ThumbnailSource, opts WorkbookOptions) error {
	f, err := BuildWorkbook(ctx, rows, thumbs, opts)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}

	log.Info().Str("component", "workbook").Str("path", path).Int("rows", len(rows)).Msg("Saved catalogue")
	return nil
}

// BuildWorkbook renders rows into an in-memory workbook.
// thumbs may be nil, in which case no images are embedded.
func BuildWorkbook(ctx context.Context, rows []normalize.Row, thumbs ThumbnailSource, opts WorkbookOptions) (*excelize.File, error) {
	logger := log.With().Str("component", "workbook").Logger()
	start := time.Now()

	f := excelize.NewFile()
	sheet := opts.SheetName
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	styles, err := newWorkbookStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := writeHeader(f, sheet, styles); err != nil {
		f.Close()
		return nil, err
	}

	lastCol, _ := excelize.ColumnNumberToName(len(Columns))

	for idx, row := range rows {
		if err := ctx.Err(); err != nil {
			f.Close()
			return nil, err
		}

		r := idx + 2
		if idx%progressEvery == 0 {
			logger.Info().Int("row", idx+1).Int("total", len(rows)).Msg("Building rows")
		}

		if err := writeDataRow(ctx, f, sheet, r, idx%2 == 1, row, thumbs, styles, opts); err != nil {
			f.Close()
			return nil, fmt.Errorf("row %d (%s): %w", r, row.Reference, err)
		}
	}

	lastRow := len(rows) + 1
	if err := f.AutoFilter(sheet, fmt.Sprintf("A1:%s%d", lastCol, lastRow), nil); err != nil {
		f.Close()
		return nil, fmt.Errorf("auto filter: %w", err)
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	logger.Debug().Int("rows", len(rows)).Dur("duration", time.Since(start)).Msg("Workbook built")
	return f, nil
}

func newWorkbookStyles(f *excelize.File) (workbookStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: borderColor, Style: 1},
		{Type: "right", Color: borderColor, Style: 1},
		{Type: "top", Color: borderColor, Style: 1},
		{Type: "bottom", Color: borderColor, Style: 1},
	}
	cellAlign := &excelize.Alignment{Vertical: "center"}
	altFill := excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{altRowFill}}
	linkFont := &excelize.Font{Color: linkColor, Underline: "single"}

	var styles workbookStyles
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&styles.header, &excelize.Style{
			Border:    border,
			Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
			Font:      &excelize.Font{Bold: true, Family: "Calibri", Size: 11, Color: "FFFFFF"},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		}},
		{&styles.cell, &excelize.Style{Border: border, Alignment: cellAlign}},
		{&styles.altCell, &excelize.Style{Border: border, Alignment: cellAlign, Fill: altFill}},
		{&styles.link, &excelize.Style{Border: border, Alignment: cellAlign, Font: linkFont}},
		{&styles.altLink, &excelize.Style{Border: border, Alignment: cellAlign, Font: linkFont, Fill: altFill}},
	}

	for _, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return workbookStyles{}, fmt.Errorf("create style: %w", err)
		}
		*d.dst = id
	}
	return styles, nil
}

func writeHeader(f *excelize.File, sheet string, styles workbookStyles) error {
	headers := make([]any, len(Columns))
	for i, c := range Columns {
		headers[i] = c.Header

		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, c.Width); err != nil {
			return fmt.Errorf("column width %s: %w", col, err)
		}
	}

	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	lastCol, _ := excelize.ColumnNumberToName(len(Columns))
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", styles.header); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	return f.SetRowHeight(sheet, 1, headerRowHeight)
}

func writeDataRow(ctx context.Context, f *excelize.File, sheet string, r int, alt bool, row normalize.Row, thumbs ThumbnailSource, styles workbookStyles, opts WorkbookOptions) error {
	values := CellValues(row)
	cell := fmt.Sprintf("A%d", r)
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return err
	}

	cellStyle, linkStyle := styles.cell, styles.link
	if alt {
		cellStyle, linkStyle = styles.altCell, styles.altLink
	}

	lastCol, _ := excelize.ColumnNumberToName(len(Columns))
	if err := f.SetCellStyle(sheet, cell, fmt.Sprintf("%s%d", lastCol, r), cellStyle); err != nil {
		return err
	}

	if row.ImageURL != "" {
		link := fmt.Sprintf("%s%d", lastCol, r)
		if err := f.SetCellValue(sheet, link, LinkText); err != nil {
			return err
		}
		if err := f.SetCellHyperLink(sheet, link, row.ImageURL, "External"); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, link, link, linkStyle); err != nil {
			return err
		}
	}

	if err := f.SetRowHeight(sheet, r, opts.RowHeight()); err != nil {
		return err
	}

	if thumbs != nil {
		embedThumbnail(ctx, f, sheet, cell, row, thumbs, opts)
	}
	return nil
}

// embedThumbnail places the row's image in cell, scaled to the thumbnail box.
// Images that cannot be decoded or embedded are skipped.
func embedThumbnail(ctx context.Context, f *excelize.File, sheet, cell string, row normalize.Row, thumbs ThumbnailSource, opts WorkbookOptions) {
	entry, ok := thumbs.Thumbnail(ctx, row)
	if !ok {
		return
	}

	logger := log.With().Str("component", "workbook").Str("reference", row.Reference).Logger()

	ext := entry.Extension()
	if ext == "" {
		thumbnailsSkipped.WithLabelValues("format").Inc()
		logger.Warn().Str("content_type", entry.ContentType).Msg("Thumbnail format not embeddable")
		return
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(entry.Data))
	if err != nil {
		thumbnailsSkipped.WithLabelValues("decode").Inc()
		logger.Warn().Err(err).Msg("Thumbnail not decodable")
		return
	}

	scale := FitScale(cfg.Width, cfg.Height, opts.ThumbWidth, opts.ThumbHeight)
	err = f.AddPictureFromBytes(sheet, cell, &excelize.Picture{
		Extension: ext,
		File:      entry.Data,
		Format: &excelize.GraphicOptions{
			AltText:     row.Name,
			ScaleX:      scale,
			ScaleY:      scale,
			OffsetX:     2,
			OffsetY:     2,
			Positioning: "oneCell",
		},
	})
	if err != nil {
		thumbnailsSkipped.WithLabelValues("embed").Inc()
		logger.Warn().Err(err).Msg("Thumbnail not embedded")
	}
}

// FitScale returns the uniform scale that fits a w x h image inside maxW x maxH.
func FitScale(w, h, maxW, maxH int) float64 {
	if w <= 0 || h <= 0 || maxW <= 0 || maxH <= 0 {
		return 1
	}
	return math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
}
