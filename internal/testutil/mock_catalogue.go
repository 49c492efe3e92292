// Package testutil provides testing utilities for the catalogue exporter.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines a canned failure for one page request.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// PageRequest identifies one request received by the mock.
type PageRequest struct {
	Faction string
	Page    int
}

type pageKey struct {
	faction string
	page    int
}

type failure struct {
	remaining int
	resp      MockResponse
}

// MockCatalogue is a configurable mock of the paged card endpoint.
// Each faction serves its records in pages of itemsPerPage.
type MockCatalogue struct {
	server *httptest.Server
	mu     sync.RWMutex

	records  map[string][]map[string]any
	declared map[string]int
	failures map[pageKey]*failure

	// Tracking
	requests          []PageRequest
	LastRequestHeader http.Header
	LastQuery         map[string][]string
}

// NewMockCatalogue creates a new mock catalogue server.
func NewMockCatalogue() *MockCatalogue {
	mock := &MockCatalogue{
		records:  make(map[string][]map[string]any),
		declared: make(map[string]int),
		failures: make(map[pageKey]*failure),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/cards", mock.handleCards)
	mock.server = httptest.NewServer(mux)

	return mock
}

// URL returns the mock server URL.
func (m *MockCatalogue) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCatalogue) Close() {
	m.server.Close()
}

// Reset clears request tracking and pending failures.
func (m *MockCatalogue) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.failures = make(map[pageKey]*failure)
	m.LastRequestHeader = nil
	m.LastQuery = nil
}

// SetFaction configures the records served for faction.
// The declared total defaults to len(records).
func (m *MockCatalogue) SetFaction(faction string, records []map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[faction] = records
}

// SetDeclaredTotal overrides hydra:totalItems for faction, simulating a
// source that under- or over-delivers.
func (m *MockCatalogue) SetDeclaredTotal(faction string, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.declared[faction] = total
}

// FailPage makes the next n requests for (faction, page) answer with resp.
func (m *MockCatalogue) FailPage(faction string, page, n int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[pageKey{faction, page}] = &failure{remaining: n, resp: resp}
}

// Requests returns every page request received, in order.
func (m *MockCatalogue) Requests() []PageRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]PageRequest(nil), m.requests...)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockCatalogue) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

func (m *MockCatalogue) handleCards(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	faction := query.Get("factions[]")
	page, err := strconv.Atoi(query.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(query.Get("itemsPerPage"))
	if err != nil || size < 1 {
		size = 36
	}

	m.mu.Lock()
	m.requests = append(m.requests, PageRequest{Faction: faction, Page: page})
	m.LastRequestHeader = r.Header.Clone()
	m.LastQuery = query

	var injected *MockResponse
	if f, ok := m.failures[pageKey{faction, page}]; ok && f.remaining > 0 {
		f.remaining--
		resp := f.resp
		injected = &resp
	}

	records := m.records[faction]
	total, ok := m.declared[faction]
	if !ok {
		total = len(records)
	}
	m.mu.Unlock()

	if injected != nil {
		writeMockResponse(w, *injected)
		return
	}

	start := min((page-1)*size, len(records))
	end := min(start+size, len(records))
	members := records[start:end]
	if members == nil {
		members = []map[string]any{}
	}

	w.Header().Set("Content-Type", "application/ld+json; charset=utf-8")
	json.NewEncoder(w).Encode(map[string]any{
		"@context":         "/contexts/Card",
		"@type":            "hydra:Collection",
		"hydra:member":     members,
		"hydra:totalItems": total,
	})
}

func writeMockResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewServerErrorResponse creates a 503 Service Unavailable response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       `{"hydra:description": "Service unavailable"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"hydra:description": "Rate limit exceeded"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
			"Retry-After":  "1",
		},
	}
}

// NewMalformedResponse creates a 200 response without hydra:totalItems.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"hydra:member": []}`,
		Headers:    map[string]string{"Content-Type": "application/ld+json"},
	}
}

// factionNames maps faction codes to display names.
var factionNames = map[string]string{
	"AX": "Axiom",
	"BR": "Bravos",
	"LY": "Lyra",
	"MU": "Muna",
	"OR": "Ordis",
	"YZ": "Yzmir",
	"NE": "Neutral",
}

// NewCard builds a realistic nested card record.
func NewCard(reference, faction string, cost int) map[string]any {
	return map[string]any{
		"@id":       "/cards/" + reference,
		"reference": reference,
		"name":      "Card " + reference,
		"cardType":  map[string]any{"reference": "CHARACTER", "name": "Character"},
		"cardSet":   map[string]any{"reference": "CORE", "name": "Beyond the Gates"},
		"mainFaction": map[string]any{
			"reference": faction,
			"name":      factionNames[faction],
		},
		"rarity": map[string]any{"reference": "COMMON", "name": "Common"},
		"elements": map[string]any{
			"MAIN_COST":      strconv.Itoa(cost),
			"RECALL_COST":    strconv.Itoa(cost + 1),
			"MOUNTAIN_POWER": "1",
			"OCEAN_POWER":    "2",
			"FOREST_POWER":   "0",
		},
		"imagePath": "https://cdn.example/default/" + reference + ".jpg",
		"allImagePath": map[string]any{
			"en-us": "https://cdn.example/en-us/" + reference + ".jpg",
			"fr-fr": "https://cdn.example/fr-fr/" + reference + ".jpg",
		},
	}
}

// Cards builds n cards for faction with sequential references.
func Cards(faction string, n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = NewCard(fmt.Sprintf("ALT_CORE_B_%s_%03d_C", faction, i+1), faction, i%7)
	}
	return out
}
