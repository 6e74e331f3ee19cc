// Package pipeline drives a catalog run: it fetches pages in order, stops at
// the first empty page and reduces everything collected into a Dataset.
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pricespy/internal/catalog"
	"github.com/sells-group/pricespy/internal/dataset"
	"github.com/sells-group/pricespy/internal/model"
)

// Page count bounds accepted by a run.
const (
	MinPages = 1
	MaxPages = 50
)

var (
	// ErrNoData is returned when a run extracted zero records.
	ErrNoData = eris.New("pipeline: no data extracted")
	// ErrInvalidPageCount is returned when the page count is out of range.
	ErrInvalidPageCount = eris.New("pipeline: page count out of range")
	// ErrRunInProgress is returned when a run is started while another is
	// still in flight.
	ErrRunInProgress = eris.New("pipeline: a run is already in progress")
)

// PageFetcher fetches one 1-based page and returns its records. An empty
// result means either the end of the catalog or a page that could not be
// fetched; callers cannot tell these apart.
type PageFetcher interface {
	FetchPage(ctx context.Context, page int) []model.RawRecord
}

// Options are the caller-supplied run parameters.
type Options struct {
	PageCount  int
	RateLimit  time.Duration
	MaxRetries int
	Site       catalog.Site

	// Client and Sleep are passed through to the catalog fetcher.
	Client *http.Client
	Sleep  func(ctx context.Context, d time.Duration) error
}

// Validate checks the run parameters.
func (o Options) Validate() error {
	if o.PageCount < MinPages || o.PageCount > MaxPages {
		return eris.Wrapf(ErrInvalidPageCount, "got %d, want %d..%d", o.PageCount, MinPages, MaxPages)
	}
	if o.MaxRetries < 1 {
		return eris.Errorf("pipeline: max retries must be >= 1, got %d", o.MaxRetries)
	}
	if o.RateLimit < 0 {
		return eris.Errorf("pipeline: rate limit must be >= 0, got %s", o.RateLimit)
	}
	return nil
}

// Result is a finished run's output.
type Result struct {
	Dataset model.Dataset      `json:"records"`
	Stats   model.SummaryStats `json:"stats"`
}

// Pipeline runs the fetch, extract and reduce stages over a PageFetcher.
type Pipeline struct {
	fetcher PageFetcher
}

// New creates a Pipeline over fetcher.
func New(fetcher PageFetcher) *Pipeline {
	return &Pipeline{fetcher: fetcher}
}

// FromOptions builds a Pipeline backed by a catalog fetcher.
func FromOptions(opts Options) (*Pipeline, error) {
	f, err := catalog.NewFetcher(opts.Site, catalog.Options{
		RateLimit:  opts.RateLimit,
		MaxRetries: opts.MaxRetries,
		Client:     opts.Client,
		Sleep:      opts.Sleep,
	})
	if err != nil {
		return nil, err
	}
	return New(f), nil
}

// Collect fetches pages 1..totalPages one at a time and returns their
// records in page order. It stops at the first page that yields nothing.
// progress, if set, receives one event per page before the page is fetched.
func (p *Pipeline) Collect(ctx context.Context, totalPages int, progress func(model.ProgressEvent)) []model.RawRecord {
	var all []model.RawRecord
	for page := 1; page <= totalPages; page++ {
		ev := model.ProgressEvent{
			Current: page,
			Total:   totalPages,
			Message: fmt.Sprintf("Scraping page %d/%d...", page, totalPages),
		}
		if progress != nil {
			progress(ev)
		}

		records := p.fetcher.FetchPage(ctx, page)
		if len(records) == 0 {
			zap.L().Info("pipeline: empty page, stopping",
				zap.Int("page", page),
				zap.Int("total_pages", totalPages),
				zap.Int("records", len(all)),
			)
			break
		}
		all = append(all, records...)
	}
	return all
}

// Run collects up to totalPages pages and reduces the records. It returns
// ErrNoData when nothing was extracted, and the context error when ctx ended
// before collection finished.
func (p *Pipeline) Run(ctx context.Context, totalPages int, progress func(model.ProgressEvent)) (*Result, error) {
	if totalPages < MinPages || totalPages > MaxPages {
		return nil, eris.Wrapf(ErrInvalidPageCount, "got %d", totalPages)
	}

	start := time.Now()
	raw := p.Collect(ctx, totalPages, progress)
	// A cancelled fetch looks like an empty page, so the records are partial.
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrapf(err, "pipeline: run interrupted after %d records", len(raw))
	}
	if len(raw) == 0 {
		return nil, ErrNoData
	}

	ds, stats := dataset.Reduce(raw)
	zap.L().Info("pipeline: run complete",
		zap.Int("raw_records", len(raw)),
		zap.Int("records", ds.Len()),
		zap.Int("unparsed_prices", dataset.UnparsedPrices(ds)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &Result{Dataset: ds, Stats: stats}, nil
}

// RunPipeline runs a catalog pipeline synchronously. onProgress is called
// once per page, before the page is fetched.
func RunPipeline(ctx context.Context, opts Options, onProgress func(current, total int, message string)) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	p, err := FromOptions(opts)
	if err != nil {
		return nil, err
	}

	var progress func(model.ProgressEvent)
	if onProgress != nil {
		progress = func(ev model.ProgressEvent) {
			onProgress(ev.Current, ev.Total, ev.Message)
		}
	}
	return p.Run(ctx, opts.PageCount, progress)
}
