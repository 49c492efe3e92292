package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/altered-catalogue/internal/testutil"
	"github.com/Sternrassler/altered-catalogue/pkg/client"
	"github.com/xuri/excelize/v2"
)

func TestResolveTargets(t *testing.T) {
	tests := []struct {
		name     string
		excel    bool
		gsheet   bool
		markdown string
		expected targets
	}{
		{name: "no flags runs both", expected: targets{Excel: true, GSheet: true}},
		{name: "excel only", excel: true, expected: targets{Excel: true}},
		{name: "gsheet only", gsheet: true, expected: targets{GSheet: true}},
		{name: "both", excel: true, gsheet: true, expected: targets{Excel: true, GSheet: true}},
		{name: "markdown only", markdown: "-", expected: targets{Markdown: true}},
		{name: "excel and markdown", excel: true, markdown: "out.md", expected: targets{Excel: true, Markdown: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveTargets(tt.excel, tt.gsheet, tt.markdown); got != tt.expected {
				t.Errorf("resolveTargets() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestRootCmd_Flags(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"config", "excel", "gsheet", "markdown", "timeout"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("missing flag --%s", name)
		}
	}
}

// cardsWithoutImages keeps the run offline.
func cardsWithoutImages(faction string, n int) []map[string]any {
	cards := testutil.Cards(faction, n)
	for _, c := range cards {
		delete(c, "imagePath")
		delete(c, "allImagePath")
	}
	return cards
}

func writeConfig(t *testing.T, dir, baseURL string) string {
	t.Helper()

	content := fmt.Sprintf(`
source:
  base_url: %q
  factions: ["AX", "BR"]
  items_per_page: 36
retry:
  max_attempts: 2
  backoff_unit_ms: 0
output:
  excel_path: %q
thumbnails:
  cache_dir: %q
logging:
  level: "error"
  pretty: false
metrics:
  textfile: %q
`, baseURL, filepath.Join(dir, "catalogue.xlsx"), filepath.Join(dir, "temp"), filepath.Join(dir, "altered.prom"))

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRun_ExcelAndMarkdown(t *testing.T) {
	mock := testutil.NewMockCatalogue()
	defer mock.Close()
	mock.SetFaction("AX", cardsWithoutImages("AX", 36))
	mock.SetFaction("BR", cardsWithoutImages("BR", 40))

	dir := t.TempDir()
	opts := &options{
		configPath: writeConfig(t, dir, mock.URL()),
		excel:      true,
		markdown:   filepath.Join(dir, "preview.md"),
	}

	var out bytes.Buffer
	if err := run(context.Background(), opts, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	if !strings.Contains(out.String(), "Done!") {
		t.Errorf("stdout = %q", out.String())
	}

	f, err := excelize.OpenFile(filepath.Join(dir, "catalogue.xlsx"))
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Altered Cards")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 77 {
		t.Errorf("sheet rows = %d, want 77 (header + 76 cards)", len(rows))
	}
	if rows[1][1] != "Card ALT_CORE_B_AX_001_C" || rows[37][1] != "Card ALT_CORE_B_BR_001_C" {
		t.Errorf("unexpected ordering: %q, %q", rows[1][1], rows[37][1])
	}

	md, err := os.ReadFile(filepath.Join(dir, "preview.md"))
	if err != nil {
		t.Fatalf("read preview: %v", err)
	}
	if got := strings.Count(string(md), "\n"); got != 78 {
		t.Errorf("preview lines = %d, want 78", got)
	}

	if _, err := os.Stat(filepath.Join(dir, "altered.prom")); err != nil {
		t.Errorf("metrics textfile not written: %v", err)
	}
}

func TestRun_NoCards(t *testing.T) {
	mock := testutil.NewMockCatalogue()
	defer mock.Close()

	dir := t.TempDir()
	opts := &options{configPath: writeConfig(t, dir, mock.URL()), excel: true}

	var out bytes.Buffer
	if err := run(context.Background(), opts, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	if !strings.Contains(out.String(), "No cards fetched. Exiting.") {
		t.Errorf("stdout = %q", out.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "catalogue.xlsx")); !os.IsNotExist(err) {
		t.Error("no workbook should be written for an empty catalogue")
	}
	if got := mock.GetRequestCount(); got != 2 {
		t.Errorf("requests = %d, want one per faction", got)
	}
}

func TestRun_FetchFailureWritesNothing(t *testing.T) {
	mock := testutil.NewMockCatalogue()
	defer mock.Close()
	mock.SetFaction("AX", cardsWithoutImages("AX", 3))
	mock.SetFaction("BR", cardsWithoutImages("BR", 3))
	mock.FailPage("BR", 1, 5, testutil.NewServerErrorResponse())

	dir := t.TempDir()
	opts := &options{configPath: writeConfig(t, dir, mock.URL()), excel: true}

	var out bytes.Buffer
	err := run(context.Background(), opts, &out)
	if !errors.Is(err, client.ErrRetryExhausted) {
		t.Fatalf("Expected ErrRetryExhausted, got %v", err)
	}

	var fetchErr *client.FetchError
	if !errors.As(err, &fetchErr) || fetchErr.Partition != "BR" || fetchErr.Page != 1 || fetchErr.Attempts != 2 {
		t.Errorf("FetchError = %+v", fetchErr)
	}

	if _, err := os.Stat(filepath.Join(dir, "catalogue.xlsx")); !os.IsNotExist(err) {
		t.Error("no workbook should be written after a fatal fetch error")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("retry:\n  max_attempts: 0\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if err := run(context.Background(), &options{configPath: path}, &bytes.Buffer{}); err == nil {
		t.Error("Expected configuration error")
	}
}
