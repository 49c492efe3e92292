// Package render turns normalized catalogue rows into presentation artifacts:
// an .xlsx workbook, a hosted Google Sheet, and a markdown preview.
package render

import "github.com/Sternrassler/altered-catalogue/pkg/normalize"

// Column describes one output column.
type Column struct {
	Header string

	// Width in Excel character units.
	Width float64

	// PixelWidth for hosted sheets.
	PixelWidth int64
}

// Columns is the fixed output layout, thumbnail first and full-image link last.
var Columns = []Column{
	{Header: "Thumbnail", Width: 14, PixelWidth: 120},
	{Header: "Name", Width: 28, PixelWidth: 220},
	{Header: "Set", Width: 24, PixelWidth: 200},
	{Header: "Faction", Width: 14, PixelWidth: 120},
	{Header: "Rarity", Width: 12, PixelWidth: 100},
	{Header: "Type", Width: 14, PixelWidth: 120},
	{Header: "Cost", Width: 8, PixelWidth: 70},
	{Header: "Recall Cost", Width: 12, PixelWidth: 100},
	{Header: "Mountain", Width: 10, PixelWidth: 85},
	{Header: "Ocean", Width: 10, PixelWidth: 85},
	{Header: "Forest", Width: 10, PixelWidth: 85},
	{Header: "Quantity", Width: 10, PixelWidth: 85},
	{Header: "Full Image", Width: 14, PixelWidth: 110},
}

const (
	// LinkText labels the full-image hyperlink.
	LinkText = "View Full"

	// firstNumericColumn and lastNumericColumn bound Cost..Quantity (0-based).
	firstNumericColumn = 6
	lastNumericColumn  = 11
)

// Headers returns the column headers in order.
func Headers() []string {
	headers := make([]string, len(Columns))
	for i, c := range Columns {
		headers[i] = c.Header
	}
	return headers
}

// CellValues maps a row to one value per column. The thumbnail and
// full-image cells are left empty; each renderer fills them its own way.
// Numeric columns are coerced to int where they parse, Quantity is always 0.
func CellValues(row normalize.Row) []any {
	return []any{
		"",
		row.Name,
		row.CardSet,
		row.Faction,
		row.Rarity,
		row.CardType,
		normalize.Coerce(row.MainCost),
		normalize.Coerce(row.RecallCost),
		normalize.Coerce(row.MountainPower),
		normalize.Coerce(row.OceanPower),
		normalize.Coerce(row.ForestPower),
		0,
		"",
	}
}
