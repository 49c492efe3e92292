package normalize

import (
	"encoding/json"
	"reflect"
	"testing"
)

const fullRecord = `{
	"reference": "ALT_CORE_B_AX_04_C",
	"name": "Sierra & Oddball",
	"cardType": {"reference": "HERO", "name": "Hero"},
	"cardSet": {"reference": "CORE", "name": "Beyond the Gates"},
	"mainFaction": {"reference": "AX", "name": "Axiom"},
	"rarity": {"reference": "COMMON", "name": "Common"},
	"elements": {
		"MAIN_COST": "3",
		"RECALL_COST": "2",
		"MOUNTAIN_POWER": "1",
		"OCEAN_POWER": "0",
		"FOREST_POWER": "2"
	},
	"imagePath": "https://cdn.example/generic.jpg",
	"allImagePath": {
		"en-us": "https://cdn.example/en-us.jpg",
		"fr-fr": "https://cdn.example/fr-fr.jpg"
	}
}`

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var raw map[string]any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return raw
}

func TestNormalize_FullRecord(t *testing.T) {
	row := New("").Normalize(decode(t, fullRecord))

	expected := Row{
		Reference:     "ALT_CORE_B_AX_04_C",
		Name:          "Sierra & Oddball",
		CardType:      "Hero",
		CardSet:       "Beyond the Gates",
		CardSetRef:    "CORE",
		Faction:       "Axiom",
		FactionRef:    "AX",
		Rarity:        "Common",
		MainCost:      "3",
		RecallCost:    "2",
		MountainPower: "1",
		OceanPower:    "0",
		ForestPower:   "2",
		ImageURL:      "https://cdn.example/en-us.jpg",
	}

	if row != expected {
		t.Errorf("Normalize() =\n%+v\nwant\n%+v", row, expected)
	}
}

func TestNormalize_EmptyRecord(t *testing.T) {
	row := New("en-us").Normalize(map[string]any{})

	for i, v := range row.Values() {
		if v != "" {
			t.Errorf("field %s = %q, want empty", FieldNames[i], v)
		}
	}
}

func TestNormalize_NilRecord(t *testing.T) {
	row := New("en-us").Normalize(nil)
	if row != (Row{}) {
		t.Errorf("Normalize(nil) = %+v, want zero row", row)
	}
}

func TestNormalize_ImageFallback(t *testing.T) {
	tests := []struct {
		name     string
		locale   string
		record   string
		expected string
	}{
		{
			name:     "locale path preferred",
			locale:   "en-us",
			record:   `{"imagePath": "generic", "allImagePath": {"en-us": "english"}}`,
			expected: "english",
		},
		{
			name:     "other locale",
			locale:   "fr-fr",
			record:   `{"imagePath": "generic", "allImagePath": {"en-us": "english", "fr-fr": "french"}}`,
			expected: "french",
		},
		{
			name:     "locale missing falls back",
			locale:   "en-us",
			record:   `{"imagePath": "generic", "allImagePath": {"fr-fr": "french"}}`,
			expected: "generic",
		},
		{
			name:     "mapping missing falls back",
			locale:   "en-us",
			record:   `{"imagePath": "generic"}`,
			expected: "generic",
		},
		{
			name:     "mapping not an object falls back",
			locale:   "en-us",
			record:   `{"imagePath": "generic", "allImagePath": "oops"}`,
			expected: "generic",
		},
		{
			name:     "both missing",
			locale:   "en-us",
			record:   `{}`,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := New(tt.locale).Normalize(decode(t, tt.record))
			if row.ImageURL != tt.expected {
				t.Errorf("ImageURL = %q, want %q", row.ImageURL, tt.expected)
			}
		})
	}
}

func TestNormalize_HeterogeneousShapes(t *testing.T) {
	record := `{
		"reference": 42,
		"name": null,
		"cardType": "Hero",
		"cardSet": {"name": {"en": "nested"}},
		"mainFaction": [],
		"rarity": {"name": true},
		"elements": {"MAIN_COST": 3, "RECALL_COST": 2.5, "OCEAN_POWER": null}
	}`

	row := New("en-us").Normalize(decode(t, record))

	checks := map[string]string{
		"reference":   row.Reference,
		"name":        row.Name,
		"card_type":   row.CardType,
		"card_set":    row.CardSet,
		"faction":     row.Faction,
		"rarity":      row.Rarity,
		"main_cost":   row.MainCost,
		"recall_cost": row.RecallCost,
		"ocean_power": row.OceanPower,
	}
	expected := map[string]string{
		"reference":   "42",
		"name":        "",
		"card_type":   "",
		"card_set":    "",
		"faction":     "",
		"rarity":      "true",
		"main_cost":   "3",
		"recall_cost": "2.5",
		"ocean_power": "",
	}

	if !reflect.DeepEqual(checks, expected) {
		t.Errorf("got %v, want %v", checks, expected)
	}
}

func TestNormalizeAll_PreservesOrder(t *testing.T) {
	raws := []map[string]any{
		{"reference": "a"},
		{"reference": "b"},
		{"reference": "c"},
	}

	rows := New("").NormalizeAll(raws)
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}
	for i, want := range []string{"a", "b", "c"} {
		if rows[i].Reference != want {
			t.Errorf("rows[%d].Reference = %q, want %q", i, rows[i].Reference, want)
		}
	}
}

func TestRow_ValuesOrder(t *testing.T) {
	if len(FieldNames) != 14 {
		t.Fatalf("len(FieldNames) = %d, want 14", len(FieldNames))
	}

	row := Row{Reference: "r", ImageURL: "i", Faction: "f"}
	values := row.Values()
	if len(values) != len(FieldNames) {
		t.Fatalf("len(Values()) = %d, want %d", len(values), len(FieldNames))
	}
	if values[0] != "r" || values[5] != "f" || values[13] != "i" {
		t.Errorf("Values() = %v", values)
	}

	// JSON tags follow FieldNames.
	data, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var asMap map[string]string
	if err := json.Unmarshal(data, &asMap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, name := range FieldNames {
		if _, ok := asMap[name]; !ok {
			t.Errorf("JSON missing field %q", name)
		}
	}
}
