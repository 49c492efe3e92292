// Package catalogue wires the partitioned fetcher to the record normalizer
// and yields the complete row set for one export run.
package catalogue

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/altered-catalogue/pkg/normalize"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Walker walks partitions and delivers each complete partition's records.
type Walker interface {
	Walk(ctx context.Context, fn func(partition string, records []map[string]any) error) error
}

// Pipeline turns catalogue pages into flat rows.
type Pipeline struct {
	walker     Walker
	normalizer normalize.Normalizer
	logger     zerolog.Logger
}

// NewPipeline creates a pipeline over walker.
func NewPipeline(walker Walker, normalizer normalize.Normalizer) *Pipeline {
	return &Pipeline{
		walker:     walker,
		normalizer: normalizer,
		logger:     log.With().Str("component", "pipeline").Logger(),
	}
}

// Rows fetches and normalizes the whole catalogue. Rows are returned only if
// every page of every partition succeeded; on error the result is nil.
func (p *Pipeline) Rows(ctx context.Context) ([]normalize.Row, error) {
	start := time.Now()

	var rows []normalize.Row
	err := p.walker.Walk(ctx, func(partition string, records []map[string]any) error {
		for _, rec := range records {
			rows = append(rows, p.normalizer.Normalize(rec))
		}
		p.logger.Debug().
			Str("faction", partition).
			Int("rows", len(records)).
			Msg("Faction normalized")
		return nil
	})
	if err != nil {
		p.logger.Error().Err(err).Int("rows_discarded", len(rows)).Msg("Catalogue fetch failed")
		return nil, fmt.Errorf("fetch catalogue: %w", err)
	}

	p.logger.Info().
		Int("rows", len(rows)).
		Dur("duration", time.Since(start)).
		Msg("Total cards fetched")

	return rows, nil
}
