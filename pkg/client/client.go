// Package client provides the HTTP client for the Altered catalogue API with
// per-page retry, exponential backoff, and response validation.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/altered-catalogue/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for catalogue client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "altered_requests_total",
		Help: "Total catalogue page requests by faction and status",
	}, []string{"faction", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "altered_request_duration_seconds",
		Help:    "Catalogue page request duration in seconds by faction",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"faction"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "altered_errors_total",
		Help: "Total failed catalogue page attempts by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of failed page attempts.
// Every class is retried; the class only feeds logs and metrics.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport errors and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassMalformed represents bodies that are not a valid page.
	ErrorClassMalformed ErrorClass = "malformed"

	// ErrorClassUnexpected represents any other non-2xx status.
	ErrorClassUnexpected ErrorClass = "unexpected"
)

// Query parameter names understood by the catalogue API.
const (
	paramRarity       = "rarity[]"
	paramFaction      = "factions[]"
	paramItemsPerPage = "itemsPerPage"
	paramPage         = "page"
)

// Hydra collection fields carrying page members and the partition total.
const (
	fieldMembers    = "hydra:member"
	fieldTotalItems = "hydra:totalItems"
)

// Client fetches single catalogue pages.
type Client struct {
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	config     Config
	logger     zerolog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the catalogue API, e.g. "https://api.altered.gg".
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Locale sent as Accept-Language.
	Locale string

	// Rarities is the rarity allow-list applied to every page request.
	Rarities []string

	// ItemsPerPage is the page size requested from the API.
	ItemsPerPage int

	// Timeout per HTTP attempt.
	Timeout time.Duration

	// RequestsPerSecond caps the request rate (0 = unlimited).
	RequestsPerSecond float64

	// Retry
	MaxAttempts int
	BackoffUnit time.Duration
}

// DefaultConfig returns the configuration used against the public Altered API.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:      "https://api.altered.gg",
		UserAgent:    userAgent,
		Locale:       "en-us",
		Rarities:     []string{"COMMON", "RARE", "EXALTED"},
		ItemsPerPage: 36,
		Timeout:      30 * time.Second,
		MaxAttempts:  5,
		BackoffUnit:  1 * time.Second,
	}
}

// New creates a new catalogue client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if len(cfg.Rarities) == 0 {
		return nil, fmt.Errorf("at least one rarity is required")
	}

	if cfg.ItemsPerPage < 1 {
		return nil, fmt.Errorf("items_per_page must be >= 1 (got %d)", cfg.ItemsPerPage)
	}

	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("max_attempts must be >= 1 (got %d)", cfg.MaxAttempts)
	}

	if cfg.BackoffUnit < 0 {
		return nil, fmt.Errorf("backoff_unit must be >= 0 (got %v)", cfg.BackoffUnit)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "catalogue-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: ratelimit.NewLimiter(cfg.RequestsPerSecond, logger),
		config:  cfg,
		logger:  logger,
		sleep:   sleepContext,
	}, nil
}

// PageURL builds the request URL for one page of one faction.
func (c *Client) PageURL(faction string, page int) string {
	q := url.Values{}
	for _, r := range c.config.Rarities {
		q.Add(paramRarity, r)
	}
	q.Set(paramFaction, faction)
	q.Set(paramItemsPerPage, strconv.Itoa(c.config.ItemsPerPage))
	q.Set(paramPage, strconv.Itoa(page))

	return strings.TrimRight(c.config.BaseURL, "/") + "/cards?" + q.Encode()
}

// FetchPage fetches one page of a faction, retrying transient failures.
// It returns the page's member records and the faction's declared total item count.
// When every attempt fails the error is a *FetchError.
func (c *Client) FetchPage(ctx context.Context, faction string, page int) ([]map[string]any, int, error) {
	pageURL := c.PageURL(faction, page)

	var members []map[string]any
	var total int

	err := c.retryWithBackoff(ctx, faction, page, pageURL, func() (ErrorClass, error) {
		var (
			class ErrorClass
			err   error
		)
		members, total, class, err = c.fetchOnce(ctx, faction, pageURL)
		return class, err
	})
	if err != nil {
		return nil, 0, err
	}

	return members, total, nil
}

// fetchOnce performs a single attempt and validates the page body.
func (c *Client) fetchOnce(ctx context.Context, faction, pageURL string) ([]map[string]any, int, ErrorClass, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, ErrorClassNetwork, fmt.Errorf("%w: %v", ErrContextCancelled, err)
	}

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(faction).Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, 0, ErrorClassNetwork, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/ld+json, application/json")
	if c.config.Locale != "" {
		req.Header.Set("Accept-Language", c.config.Locale)
	}

	c.logger.Debug().
		Str("faction", faction).
		Str("url", pageURL).
		Msg("Executing catalogue request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(faction, "network_error").Inc()
		return nil, 0, ErrorClassNetwork, &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(faction, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		class := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(class)).Inc()
		// Drain so the connection can be reused by the next attempt.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, 0, class, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    resp.Status,
		}
	}

	members, total, err := decodePage(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassMalformed)).Inc()
		return nil, 0, ErrorClassMalformed, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassMalformed,
			Message:    "invalid page body",
			Err:        err,
		}
	}

	return members, total, "", nil
}

// decodePage reads a hydra collection body. Both the member list and the
// total item count must be present.
func decodePage(r io.Reader) ([]map[string]any, int, error) {
	var body struct {
		Members    *[]map[string]any `json:"hydra:member"`
		TotalItems *int              `json:"hydra:totalItems"`
	}

	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, 0, fmt.Errorf("%w: decode: %v", ErrMalformedResponse, err)
	}
	if body.Members == nil {
		return nil, 0, fmt.Errorf("%w: missing %s", ErrMalformedResponse, fieldMembers)
	}
	if body.TotalItems == nil {
		return nil, 0, fmt.Errorf("%w: missing %s", ErrMalformedResponse, fieldTotalItems)
	}
	if *body.TotalItems < 0 {
		return nil, 0, fmt.Errorf("%w: negative %s", ErrMalformedResponse, fieldTotalItems)
	}

	return *body.Members, *body.TotalItems, nil
}

// ItemsPerPage returns the configured page size.
func (c *Client) ItemsPerPage() int {
	return c.config.ItemsPerPage
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetSleeper replaces the backoff sleep (for testing).
func (c *Client) SetSleeper(sleep func(ctx context.Context, d time.Duration) error) {
	c.sleep = sleep
}
