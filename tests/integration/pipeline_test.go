package integration

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/altered-catalogue/internal/testutil"
	"github.com/Sternrassler/altered-catalogue/pkg/cache"
	"github.com/Sternrassler/altered-catalogue/pkg/catalogue"
	"github.com/Sternrassler/altered-catalogue/pkg/client"
	"github.com/Sternrassler/altered-catalogue/pkg/normalize"
	"github.com/Sternrassler/altered-catalogue/pkg/pagination"
	"github.com/Sternrassler/altered-catalogue/pkg/render"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// newPipeline wires the real client, fetcher and normalizer against baseURL.
func newPipeline(t *testing.T, baseURL string, factions []string, maxAttempts int) *catalogue.Pipeline {
	t.Helper()

	cfg := client.DefaultConfig("altered-catalogue-integration/1.0")
	cfg.BaseURL = baseURL
	cfg.MaxAttempts = maxAttempts
	cfg.BackoffUnit = time.Millisecond

	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	fetcher, err := pagination.NewFetcher(c, pagination.Config{
		Partitions: factions,
		PageSize:   c.ItemsPerPage(),
	})
	if err != nil {
		t.Fatalf("Failed to create fetcher: %v", err)
	}

	return catalogue.NewPipeline(fetcher, normalize.New("en-us"))
}

// TestFullFetchFlow tests the complete flow: paged requests → concatenation → normalization.
func TestFullFetchFlow(t *testing.T) {
	mock := testutil.NewMockCatalogue()
	defer mock.Close()

	mock.SetFaction("AX", testutil.Cards("AX", 36))
	mock.SetFaction("BR", testutil.Cards("BR", 40))

	rows, err := newPipeline(t, mock.URL(), []string{"AX", "BR"}, 5).Rows(context.Background())
	if err != nil {
		t.Fatalf("Rows() failed: %v", err)
	}

	expected := []testutil.PageRequest{{Faction: "AX", Page: 1}, {Faction: "BR", Page: 1}, {Faction: "BR", Page: 2}}
	if got := mock.Requests(); !reflect.DeepEqual(got, expected) {
		t.Errorf("requests = %v, want %v", got, expected)
	}

	if len(rows) != 76 {
		t.Fatalf("rows = %d, want 76", len(rows))
	}

	first := rows[0]
	if first.Reference != "ALT_CORE_B_AX_001_C" || first.Faction != "Axiom" || first.FactionRef != "AX" {
		t.Errorf("rows[0] = %+v", first)
	}
	if first.CardType != "Character" || first.CardSet != "Beyond the Gates" || first.Rarity != "Common" {
		t.Errorf("rows[0] nested fields = %+v", first)
	}
	if first.ImageURL != "https://cdn.example/en-us/ALT_CORE_B_AX_001_C.jpg" {
		t.Errorf("rows[0].ImageURL = %q", first.ImageURL)
	}
	if rows[36].Reference != "ALT_CORE_B_BR_001_C" || rows[75].Reference != "ALT_CORE_B_BR_040_C" {
		t.Errorf("BR ordering: %q .. %q", rows[36].Reference, rows[75].Reference)
	}

	if got := mock.LastRequestHeader.Get("Accept-Language"); got != "en-us" {
		t.Errorf("Accept-Language = %q", got)
	}
	if got := mock.LastQuery["rarity[]"]; !reflect.DeepEqual(got, []string{"COMMON", "RARE", "EXALTED"}) {
		t.Errorf("rarity[] = %v", got)
	}
	if got := mock.LastQuery["itemsPerPage"]; !reflect.DeepEqual(got, []string{"36"}) {
		t.Errorf("itemsPerPage = %v", got)
	}
}

// TestEmptyFaction tests that an empty faction costs exactly one request.
func TestEmptyFaction(t *testing.T) {
	mock := testutil.NewMockCatalogue()
	defer mock.Close()

	mock.SetFaction("AX", testutil.Cards("AX", 2))

	rows, err := newPipeline(t, mock.URL(), []string{"NE", "AX"}, 5).Rows(context.Background())
	if err != nil {
		t.Fatalf("Rows() failed: %v", err)
	}

	if len(rows) != 2 {
		t.Errorf("rows = %d, want 2", len(rows))
	}
	if got := mock.GetRequestCount(); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
}

// TestUnderDelivery tests that rows follow what the source returned, not its declared total.
func TestUnderDelivery(t *testing.T) {
	mock := testutil.NewMockCatalogue()
	defer mock.Close()

	mock.SetFaction("LY", testutil.Cards("LY", 50))
	mock.SetDeclaredTotal("LY", 100)

	rows, err := newPipeline(t, mock.URL(), []string{"LY"}, 5).Rows(context.Background())
	if err != nil {
		t.Fatalf("Rows() failed: %v", err)
	}

	if got := mock.GetRequestCount(); got != 3 {
		t.Errorf("requests = %d, want ceil(100/36) = 3", got)
	}
	if len(rows) != 50 {
		t.Errorf("rows = %d, want 50", len(rows))
	}
}

// TestTransientFailuresRecovered tests retry of rate limits and malformed pages.
func TestTransientFailuresRecovered(t *testing.T) {
	mock := testutil.NewMockCatalogue()
	defer mock.Close()

	mock.SetFaction("MU", testutil.Cards("MU", 40))
	mock.FailPage("MU", 1, 2, testutil.NewRateLimitResponse())
	mock.FailPage("MU", 2, 1, testutil.NewMalformedResponse())

	rows, err := newPipeline(t, mock.URL(), []string{"MU"}, 5).Rows(context.Background())
	if err != nil {
		t.Fatalf("Rows() failed: %v", err)
	}

	if len(rows) != 40 {
		t.Errorf("rows = %d, want 40", len(rows))
	}

	expected := []testutil.PageRequest{
		{Faction: "MU", Page: 1}, {Faction: "MU", Page: 1}, {Faction: "MU", Page: 1},
		{Faction: "MU", Page: 2}, {Faction: "MU", Page: 2},
	}
	if got := mock.Requests(); !reflect.DeepEqual(got, expected) {
		t.Errorf("requests = %v, want %v", got, expected)
	}
}

// TestRetriesExhaustedAbortsRun tests the all-or-nothing contract.
func TestRetriesExhaustedAbortsRun(t *testing.T) {
	mock := testutil.NewMockCatalogue()
	defer mock.Close()

	mock.SetFaction("AX", testutil.Cards("AX", 10))
	mock.SetFaction("BR", testutil.Cards("BR", 40))
	mock.SetFaction("LY", testutil.Cards("LY", 10))
	mock.FailPage("BR", 2, 5, testutil.NewServerErrorResponse())

	rows, err := newPipeline(t, mock.URL(), []string{"AX", "BR", "LY"}, 5).Rows(context.Background())
	if rows != nil {
		t.Errorf("Expected no rows, got %d", len(rows))
	}

	var fetchErr *client.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Expected *client.FetchError, got %v", err)
	}
	if fetchErr.Partition != "BR" || fetchErr.Page != 2 || fetchErr.Attempts != 5 {
		t.Errorf("FetchError = %+v", fetchErr)
	}

	for _, req := range mock.Requests() {
		if req.Faction == "LY" {
			t.Fatal("faction after the failure must not be requested")
		}
	}
	if got := mock.GetRequestCount(); got != 1+1+5 {
		t.Errorf("requests = %d, want 7", got)
	}
}

// TestThumbnailCache_Redis tests that a second export is served from Redis.
func TestThumbnailCache_Redis(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 160, 220))); err != nil {
		t.Fatalf("png.Encode() failed: %v", err)
	}
	body := buf.Bytes()

	var hits atomic.Int32
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	defer images.Close()

	rows := []normalize.Row{
		{Reference: "ALT_1", Name: "One", ImageURL: images.URL + "/1.png"},
		{Reference: "ALT_2", Name: "Two", ImageURL: images.URL + "/2.png"},
	}

	store := cache.NewRedisStore(redisClient, time.Hour)
	thumbs := render.NewThumbnailer(store, 5*time.Second, "en-us")
	ctx := context.Background()

	for run := 0; run < 2; run++ {
		f, err := render.BuildWorkbook(ctx, rows, thumbs, render.DefaultWorkbookOptions())
		if err != nil {
			t.Fatalf("run %d: BuildWorkbook() failed: %v", run, err)
		}

		pics, err := f.GetPictures("Altered Cards", "A2")
		if err != nil || len(pics) != 1 {
			t.Errorf("run %d: A2 pictures = %d (%v), want 1", run, len(pics), err)
		}
		f.Close()
	}

	if got := hits.Load(); got != 2 {
		t.Errorf("image downloads = %d, want 2 (one per card)", got)
	}

	keys, err := redisClient.Keys(ctx, "altered:thumb:en-us:*").Result()
	if err != nil {
		t.Fatalf("Keys() failed: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("cached keys = %v, want 2", keys)
	}
}
