// Package normalize flattens raw catalogue records into fixed-schema rows.
//
// Normalization never fails: any key missing along a field's path, or an
// intermediate value that is not an object, yields an empty string.
package normalize

import (
	"encoding/json"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultLocale is the image locale preferred when none is configured.
const DefaultLocale = "en-us"

var rowsNormalized = promauto.NewCounter(prometheus.CounterOpts{
	Name: "altered_rows_normalized_total",
	Help: "Total number of raw records flattened into rows",
})

// FieldNames lists the row fields in their fixed order.
var FieldNames = []string{
	"reference",
	"name",
	"card_type",
	"card_set",
	"card_set_ref",
	"faction",
	"faction_ref",
	"rarity",
	"main_cost",
	"recall_cost",
	"mountain_power",
	"ocean_power",
	"forest_power",
	"image_url",
}

// Row is one flattened catalogue entry.
type Row struct {
	Reference     string `json:"reference"`
	Name          string `json:"name"`
	CardType      string `json:"card_type"`
	CardSet       string `json:"card_set"`
	CardSetRef    string `json:"card_set_ref"`
	Faction       string `json:"faction"`
	FactionRef    string `json:"faction_ref"`
	Rarity        string `json:"rarity"`
	MainCost      string `json:"main_cost"`
	RecallCost    string `json:"recall_cost"`
	MountainPower string `json:"mountain_power"`
	OceanPower    string `json:"ocean_power"`
	ForestPower   string `json:"forest_power"`
	ImageURL      string `json:"image_url"`
}

// Values returns the row's fields in FieldNames order.
func (r Row) Values() []string {
	return []string{
		r.Reference,
		r.Name,
		r.CardType,
		r.CardSet,
		r.CardSetRef,
		r.Faction,
		r.FactionRef,
		r.Rarity,
		r.MainCost,
		r.RecallCost,
		r.MountainPower,
		r.OceanPower,
		r.ForestPower,
		r.ImageURL,
	}
}

// Normalizer maps raw records to rows. It holds no state between records.
type Normalizer struct {
	locale string
}

// New creates a Normalizer preferring images for locale (DefaultLocale if empty).
func New(locale string) Normalizer {
	if locale == "" {
		locale = DefaultLocale
	}
	return Normalizer{locale: locale}
}

// Normalize flattens one raw record.
func (n Normalizer) Normalize(raw map[string]any) Row {
	rowsNormalized.Inc()

	return Row{
		Reference:     lookupString(raw, "reference"),
		Name:          lookupString(raw, "name"),
		CardType:      lookupString(raw, "cardType", "name"),
		CardSet:       lookupString(raw, "cardSet", "name"),
		CardSetRef:    lookupString(raw, "cardSet", "reference"),
		Faction:       lookupString(raw, "mainFaction", "name"),
		FactionRef:    lookupString(raw, "mainFaction", "reference"),
		Rarity:        lookupString(raw, "rarity", "name"),
		MainCost:      lookupString(raw, "elements", "MAIN_COST"),
		RecallCost:    lookupString(raw, "elements", "RECALL_COST"),
		MountainPower: lookupString(raw, "elements", "MOUNTAIN_POWER"),
		OceanPower:    lookupString(raw, "elements", "OCEAN_POWER"),
		ForestPower:   lookupString(raw, "elements", "FOREST_POWER"),
		ImageURL:      n.imageURL(raw),
	}
}

// NormalizeAll flattens records in order.
func (n Normalizer) NormalizeAll(raws []map[string]any) []Row {
	rows := make([]Row, 0, len(raws))
	for _, raw := range raws {
		rows = append(rows, n.Normalize(raw))
	}
	return rows
}

// imageURL prefers allImagePath[locale], then imagePath.
func (n Normalizer) imageURL(raw map[string]any) string {
	if v, ok := lookup(raw, "allImagePath", n.locale); ok {
		return stringify(v)
	}
	return lookupString(raw, "imagePath")
}

// lookup walks path through nested objects.
func lookup(raw map[string]any, path ...string) (any, bool) {
	var cur any = raw
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func lookupString(raw map[string]any, path ...string) string {
	v, ok := lookup(raw, path...)
	if !ok {
		return ""
	}
	return stringify(v)
}

// stringify renders a scalar leaf. Objects, arrays and null become "".
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
