package pipeline

import (
	"context"
	"sync"

	"github.com/floodhapi/rofsw-extract/internal/domain"
	"github.com/floodhapi/rofsw-extract/internal/geometry"
)

// fetchOutcome carries one source fetch across the worker pool.
type fetchOutcome struct {
	source string
	cells  domain.FeatureCollection
	err    error
}

// fetchAll retrieves every distinct source layer concurrently, bounded by the
// configured worker count. A failed source contributes one job error and is
// absent from the returned map; layers fed by it degrade downstream instead
// of aborting the job.
func (p *Pipeline) fetchAll(ctx context.Context, region *geometry.SearchRegion, result *domain.JobResult) map[string]domain.FeatureCollection {
	sources := domain.DistinctSources()

	workers := p.concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(sources) {
		workers = len(sources)
	}

	jobs := make(chan string)
	outcomes := make(chan fetchOutcome)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for source := range jobs {
				cells, err := p.fetcher.FetchLayer(ctx, source, region)
				outcomes <- fetchOutcome{source: source, cells: cells, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, source := range sources {
			select {
			case jobs <- source:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	fetched := make(map[string]domain.FeatureCollection, len(sources))
	for outcome := range outcomes {
		if outcome.err != nil {
			p.logger.Error("source fetch failed", "source", outcome.source, "error", outcome.err)
			result.AddError(outcome.source, outcome.err)
			continue
		}
		fetched[outcome.source] = outcome.cells
	}
	return fetched
}
