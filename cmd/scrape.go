package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pricespy/internal/config"
	"github.com/sells-group/pricespy/internal/dataset"
	"github.com/sells-group/pricespy/internal/export"
	"github.com/sells-group/pricespy/internal/model"
	"github.com/sells-group/pricespy/internal/pipeline"
	"github.com/sells-group/pricespy/internal/store"
)

// scrapeParams are the per-invocation overrides of the scrape section.
// Zero values (or a negative rate limit) fall back to config.
type scrapeParams struct {
	Pages      int
	Format     string
	RateLimit  float64
	MaxRetries int
	Output     string
}

var scrapeFlags scrapeParams

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape catalog pages and export the results",
	Long:  "Fetches up to --pages listing pages, stopping at the first empty page, then deduplicates, normalizes and exports the products.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		runCfg := applyScrapeParams(*cfg, scrapeFlags)
		if err := runCfg.Validate("scrape"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			zap.L().Warn("scrape: run history disabled", zap.Error(err))
			st = nil
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		return runScrape(ctx, &runCfg, scrapeFlags.Output, st, os.Stdout)
	},
}

func init() {
	f := scrapeCmd.Flags()
	f.IntVar(&scrapeFlags.Pages, "pages", 0, "number of pages to scrape, 1-50 (default from config)")
	f.StringVar(&scrapeFlags.Format, "format", "", "output format: csv, xlsx or excel (default from config)")
	f.Float64Var(&scrapeFlags.RateLimit, "rate-limit", -1, "seconds to wait before each page (default from config)")
	f.IntVar(&scrapeFlags.MaxRetries, "max-retries", 0, "attempts per page (default from config)")
	f.StringVar(&scrapeFlags.Output, "output", "", "output file path (default: timestamped file in export.dir)")
	rootCmd.AddCommand(scrapeCmd)
}

// applyScrapeParams returns a copy of c with the flag overrides applied.
func applyScrapeParams(c config.Config, p scrapeParams) config.Config {
	if p.Pages > 0 {
		c.Scrape.Pages = p.Pages
	}
	if p.Format != "" {
		c.Export.Format = p.Format
	}
	if p.RateLimit >= 0 {
		c.Scrape.RateLimitSecs = p.RateLimit
	}
	if p.MaxRetries > 0 {
		c.Scrape.MaxRetries = p.MaxRetries
	}
	return c
}

// runScrape performs one synchronous run: fetch, reduce, export and record.
// Progress lines and the final summary go to out. An empty run is reported
// to the user but is not an error.
func runScrape(ctx context.Context, c *config.Config, output string, st store.Store, out io.Writer) error {
	format, err := export.ParseFormat(c.Export.Format)
	if err != nil {
		return err
	}
	opts := runOptions(c, c.Scrape.Pages)
	if err := opts.Validate(); err != nil {
		return err
	}

	path := output
	if path == "" {
		path = filepath.Join(c.Export.Dir, export.ResultFileName(format, time.Now()))
	}

	runID := uuid.New().String()
	rec := runRecorder{st: st}
	// History outlives an interrupted run so the failure is recorded.
	recCtx := context.WithoutCancel(ctx)
	rec.start(recCtx, runID, opts.PageCount, string(format))

	zap.L().Info("scrape: starting run",
		zap.String("run_id", runID),
		zap.Int("pages", opts.PageCount),
		zap.Duration("rate_limit", opts.RateLimit),
		zap.Int("max_retries", opts.MaxRetries),
	)

	res, err := pipeline.RunPipeline(ctx, opts, func(current, total int, message string) {
		_, _ = fmt.Fprintln(out, message)
	})
	if err != nil {
		rec.finish(recCtx, runID, nil, "", err)
		if errors.Is(err, pipeline.ErrNoData) {
			_, _ = fmt.Fprintln(out, "No products found. Please try again.")
			return nil
		}
		return eris.Wrap(err, "scrape")
	}

	outcome := export.Write(path, format, res.Dataset)
	if !outcome.OK {
		rec.finish(recCtx, runID, res, "", outcome.Err)
		printSummary(out, res.Stats, "")
		return eris.Wrap(outcome.Err, "scrape: export")
	}

	rec.finish(recCtx, runID, res, outcome.Path, nil)
	printSummary(out, res.Stats, outcome.Path)
	return nil
}

// printSummary writes the rounded run statistics to out.
func printSummary(out io.Writer, stats model.SummaryStats, path string) {
	s := dataset.Rounded(stats)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total products:\t%d\n", s.Count)
	if s.Count > 0 {
		_, _ = fmt.Fprintf(w, "Average price:\t£%.2f\n", s.AvgPrice)
		_, _ = fmt.Fprintf(w, "Price range:\t£%.2f - £%.2f\n", s.MinPrice, s.MaxPrice)
	}
	if s.RatedCount > 0 {
		_, _ = fmt.Fprintf(w, "Average rating:\t%.1f/5 (%d rated)\n", s.AvgRating, s.RatedCount)
	}
	if path != "" {
		_, _ = fmt.Fprintf(w, "Results saved to:\t%s\n", path)
	}
	_ = w.Flush()
}
