// Package pagination walks every page of every partition of the catalogue.
//
// The catalogue is split into partitions (one per faction). For each
// partition, in configuration order, the fetcher requests page 1, derives the
// number of pages from the declared total item count, then requests the
// remaining pages one after the other:
//
//	fetcher, err := pagination.NewFetcher(catalogueClient, pagination.Config{
//		Partitions: []string{"AX", "BR", "LY"},
//		PageSize:   36,
//	})
//	records, err := fetcher.FetchAll(ctx)
//
// Requests are never issued concurrently. A page that fails on every attempt
// aborts the walk; no records are returned in that case.
package pagination
