package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "altered_pages_fetched_total",
		Help: "Total catalogue pages fetched by faction",
	}, []string{"faction"})

	recordsFetched = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "altered_records_fetched",
		Help: "Records fetched for each faction in the last completed walk",
	}, []string{"faction"})
)

// PageSource fetches a single page of one partition.
// It returns the page's records and the partition's declared total item count.
type PageSource interface {
	FetchPage(ctx context.Context, partition string, page int) (records []map[string]any, totalItems int, err error)
}

// Config holds fetcher configuration.
type Config struct {
	// Partitions are walked in this order.
	Partitions []string

	// PageSize must match the page size the source requests.
	PageSize int
}

// Fetcher walks all partitions sequentially.
type Fetcher struct {
	source PageSource
	config Config
	logger zerolog.Logger
}

// NewFetcher creates a new partitioned fetcher.
func NewFetcher(source PageSource, config Config) (*Fetcher, error) {
	if source == nil {
		return nil, fmt.Errorf("page source is required")
	}
	if len(config.Partitions) == 0 {
		return nil, fmt.Errorf("at least one partition is required")
	}
	if config.PageSize < 1 {
		return nil, fmt.Errorf("page size must be >= 1 (got %d)", config.PageSize)
	}

	return &Fetcher{
		source: source,
		config: config,
		logger: log.With().Str("component", "pagination").Logger(),
	}, nil
}

// TotalPages returns ceil(totalItems/pageSize), and 1 for an empty partition.
func TotalPages(totalItems, pageSize int) int {
	if totalItems <= 0 || pageSize <= 0 {
		return 1
	}
	pages := totalItems / pageSize
	if totalItems%pageSize != 0 {
		pages++
	}
	return pages
}

// Walk fetches each partition in order and hands its complete record list to fn.
// fn is called only after every page of that partition succeeded. The first
// error, from the source or from fn, stops the walk.
func (f *Fetcher) Walk(ctx context.Context, fn func(partition string, records []map[string]any) error) error {
	for _, partition := range f.config.Partitions {
		records, err := f.FetchPartition(ctx, partition)
		if err != nil {
			return err
		}
		if err := fn(partition, records); err != nil {
			return err
		}
	}
	return nil
}

// FetchAll returns the records of every partition, concatenated in partition
// order, then page order, then source order within a page.
func (f *Fetcher) FetchAll(ctx context.Context) ([]map[string]any, error) {
	start := time.Now()

	var all []map[string]any
	err := f.Walk(ctx, func(_ string, records []map[string]any) error {
		all = append(all, records...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	f.logger.Info().
		Int("partitions", len(f.config.Partitions)).
		Int("records", len(all)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return all, nil
}

// FetchPartition fetches every page of one partition.
// The page count is derived once from page 1 and not revalidated afterwards.
func (f *Fetcher) FetchPartition(ctx context.Context, partition string) ([]map[string]any, error) {
	f.logger.Info().Str("faction", partition).Msg("Fetching faction")

	first, total, err := f.source.FetchPage(ctx, partition, 1)
	if err != nil {
		return nil, err
	}
	pagesFetchedTotal.WithLabelValues(partition).Inc()

	totalPages := TotalPages(total, f.config.PageSize)
	f.logger.Info().
		Str("faction", partition).
		Int("total_items", total).
		Int("total_pages", totalPages).
		Msg("Faction size")

	records := append([]map[string]any(nil), first...)

	for page := 2; page <= totalPages; page++ {
		members, _, err := f.source.FetchPage(ctx, partition, page)
		if err != nil {
			return nil, err
		}
		pagesFetchedTotal.WithLabelValues(partition).Inc()
		records = append(records, members...)

		f.logger.Info().
			Str("faction", partition).
			Int("page", page).
			Int("total_pages", totalPages).
			Msg("Fetched page")
	}

	recordsFetched.WithLabelValues(partition).Set(float64(len(records)))
	return records, nil
}
