package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Sternrassler/altered-catalogue/pkg/normalize"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// ErrCredentialsNotFound is returned when the service account file is missing.
var ErrCredentialsNotFound = errors.New("google credentials not found")

// DefaultBatchSize is the number of rows written per values update.
const DefaultBatchSize = 500

const thumbnailRowPixels = 120

// headerColor is #2F5496 as Sheets RGB fractions.
var headerColor = &sheets.Color{Red: 0.184, Green: 0.329, Blue: 0.588}

// SheetsOptions configures the hosted spreadsheet.
type SheetsOptions struct {
	Title          string
	WorksheetTitle string
	BatchSize      int

	// SharePublic grants write access to anyone with the link.
	SharePublic bool
}

// DefaultSheetsOptions returns the standard publisher options.
func DefaultSheetsOptions() SheetsOptions {
	return SheetsOptions{
		Title:          "Altered TCG Card Catalogue",
		WorksheetTitle: "Altered Cards",
		BatchSize:      DefaultBatchSize,
		SharePublic:    true,
	}
}

// SheetsPublisher creates a Google Sheet holding the catalogue.
type SheetsPublisher struct {
	sheets *sheets.Service
	drive  *drive.Service
	opts   SheetsOptions
	logger zerolog.Logger
}

// NewSheetsPublisher authenticates with a service account key file.
func NewSheetsPublisher(ctx context.Context, credentialsFile string, opts SheetsOptions) (*SheetsPublisher, error) {
	if _, err := os.Stat(credentialsFile); err != nil {
		return nil, fmt.Errorf("%w at %s", ErrCredentialsNotFound, credentialsFile)
	}

	auth := []option.ClientOption{
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope, drive.DriveScope),
	}

	sheetsSvc, err := sheets.NewService(ctx, auth...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	driveSvc, err := drive.NewService(ctx, auth...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return NewSheetsPublisherWithServices(sheetsSvc, driveSvc, opts), nil
}

// NewSheetsPublisherWithServices wraps existing API services.
// driveSvc may be nil when SharePublic is false.
func NewSheetsPublisherWithServices(sheetsSvc *sheets.Service, driveSvc *drive.Service, opts SheetsOptions) *SheetsPublisher {
	if opts.BatchSize < 1 {
		opts.BatchSize = DefaultBatchSize
	}
	return &SheetsPublisher{
		sheets: sheetsSvc,
		drive:  driveSvc,
		opts:   opts,
		logger: log.With().Str("component", "gsheet").Logger(),
	}
}

// Publish creates a new spreadsheet, writes rows and formatting, and returns its URL.
func (p *SheetsPublisher) Publish(ctx context.Context, rows []normalize.Row) (string, error) {
	totalRows := int64(len(rows) + 1)
	totalCols := int64(len(Columns))

	p.logger.Info().Str("title", p.opts.Title).Msg("Creating spreadsheet")
	created, err := p.sheets.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: p.opts.Title},
		Sheets: []*sheets.Sheet{{
			Properties: &sheets.SheetProperties{
				Title: p.opts.WorksheetTitle,
				GridProperties: &sheets.GridProperties{
					RowCount:       totalRows,
					ColumnCount:    totalCols,
					FrozenRowCount: 1,
				},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create spreadsheet: %w", err)
	}

	id := created.SpreadsheetId
	var sheetID int64
	if len(created.Sheets) > 0 && created.Sheets[0].Properties != nil {
		sheetID = created.Sheets[0].Properties.SheetId
	}

	header := make([]any, len(Columns))
	for i, h := range Headers() {
		header[i] = h
	}
	if err := p.update(ctx, id, A1Range(p.opts.WorksheetTitle, 1, 1), [][]any{header}, "RAW"); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}

	batches := Batches(len(rows), p.opts.BatchSize)
	p.logger.Info().Int("rows", len(rows)).Int("batches", len(batches)).Msg("Writing card rows")
	for i, b := range batches {
		values := make([][]any, 0, b.End-b.Start)
		for _, row := range rows[b.Start:b.End] {
			values = append(values, SheetRow(row))
		}

		rng := A1Range(p.opts.WorksheetTitle, b.Start+2, b.End+1)
		if err := p.update(ctx, id, rng, values, "USER_ENTERED"); err != nil {
			return "", fmt.Errorf("write batch %d/%d: %w", i+1, len(batches), err)
		}
		p.logger.Info().Int("batch", i+1).Int("batches", len(batches)).Int("written", b.End).Msg("Batch written")
	}

	p.logger.Info().Msg("Applying formatting")
	_, err = p.sheets.Spreadsheets.BatchUpdate(id, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: FormatRequests(sheetID, totalRows),
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("format spreadsheet: %w", err)
	}

	if p.opts.SharePublic && p.drive != nil {
		_, err := p.drive.Permissions.Create(id, &drive.Permission{Type: "anyone", Role: "writer"}).Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("share spreadsheet: %w", err)
		}
	}

	url := created.SpreadsheetUrl
	if url == "" {
		url = "https://docs.google.com/spreadsheets/d/" + id
	}
	p.logger.Info().Str("url", url).Msg("Spreadsheet created")
	return url, nil
}

func (p *SheetsPublisher) update(ctx context.Context, id, rng string, values [][]any, inputOption string) error {
	_, err := p.sheets.Spreadsheets.Values.Update(id, rng, &sheets.ValueRange{Values: values}).
		ValueInputOption(inputOption).
		Context(ctx).
		Do()
	return err
}

// Batch is a half-open row index range [Start, End).
type Batch struct {
	Start int
	End   int
}

// Batches splits total rows into consecutive batches of at most size rows.
func Batches(total, size int) []Batch {
	if size < 1 {
		size = DefaultBatchSize
	}
	var out []Batch
	for start := 0; start < total; start += size {
		out = append(out, Batch{Start: start, End: min(start+size, total)})
	}
	return out
}

// A1Range returns the A1 notation covering all columns of rows first..last (1-based).
func A1Range(sheet string, first, last int) string {
	lastCol := string(rune('A' + len(Columns) - 1))
	return fmt.Sprintf("'%s'!A%d:%s%d", strings.ReplaceAll(sheet, "'", "''"), first, lastCol, last)
}

// SheetRow maps a row to sheet cells with IMAGE and HYPERLINK formulas.
func SheetRow(row normalize.Row) []any {
	values := CellValues(row)
	if row.ImageURL != "" {
		url := strings.ReplaceAll(row.ImageURL, `"`, `""`)
		values[0] = fmt.Sprintf(`=IMAGE("%s", 2)`, url)
		values[len(values)-1] = fmt.Sprintf(`=HYPERLINK("%s", "%s")`, url, LinkText)
	}
	return values
}

// FormatRequests builds the header, dimension, alignment and filter requests.
func FormatRequests(sheetID, totalRows int64) []*sheets.Request {
	totalCols := int64(len(Columns))

	requests := []*sheets.Request{
		{RepeatCell: &sheets.RepeatCellRequest{
			Range: gridRange(sheetID, 0, 1, 0, totalCols),
			Cell: &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{
				BackgroundColor: headerColor,
				TextFormat: &sheets.TextFormat{
					Bold:            true,
					FontSize:        11,
					ForegroundColor: &sheets.Color{Red: 1, Green: 1, Blue: 1},
				},
				HorizontalAlignment: "CENTER",
				VerticalAlignment:   "MIDDLE",
			}},
			Fields: "userEnteredFormat",
		}},
		dimensionRequest(sheetID, "ROWS", 1, totalRows, thumbnailRowPixels),
	}

	for i, c := range Columns {
		requests = append(requests, dimensionRequest(sheetID, "COLUMNS", int64(i), int64(i+1), c.PixelWidth))
	}

	for col := int64(firstNumericColumn); col <= lastNumericColumn; col++ {
		requests = append(requests, &sheets.Request{RepeatCell: &sheets.RepeatCellRequest{
			Range: gridRange(sheetID, 1, totalRows, col, col+1),
			Cell: &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{
				HorizontalAlignment: "CENTER",
				VerticalAlignment:   "MIDDLE",
			}},
			Fields: "userEnteredFormat.horizontalAlignment,userEnteredFormat.verticalAlignment",
		}})
	}

	requests = append(requests, &sheets.Request{SetBasicFilter: &sheets.SetBasicFilterRequest{
		Filter: &sheets.BasicFilter{Range: gridRange(sheetID, 0, totalRows, 0, totalCols)},
	}})

	return requests
}

// gridRange always sends the zero-valued sheet id and start indexes.
func gridRange(sheetID, startRow, endRow, startCol, endCol int64) *sheets.GridRange {
	return &sheets.GridRange{
		SheetId:          sheetID,
		StartRowIndex:    startRow,
		EndRowIndex:      endRow,
		StartColumnIndex: startCol,
		EndColumnIndex:   endCol,
		ForceSendFields:  []string{"SheetId", "StartRowIndex", "StartColumnIndex"},
	}
}

func dimensionRequest(sheetID int64, dimension string, start, end, pixels int64) *sheets.Request {
	return &sheets.Request{UpdateDimensionProperties: &sheets.UpdateDimensionPropertiesRequest{
		Range: &sheets.DimensionRange{
			SheetId:         sheetID,
			Dimension:       dimension,
			StartIndex:      start,
			EndIndex:        end,
			ForceSendFields: []string{"SheetId", "StartIndex"},
		},
		Properties: &sheets.DimensionProperties{PixelSize: pixels},
		Fields:     "pixelSize",
	}}
}
