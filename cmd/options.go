package main

import (
	"errors"

	"github.com/sells-group/pricespy/internal/catalog"
	"github.com/sells-group/pricespy/internal/config"
	"github.com/sells-group/pricespy/internal/model"
	"github.com/sells-group/pricespy/internal/pipeline"
)

// siteFromConfig maps the catalog section onto a catalog.Site.
func siteFromConfig(c *config.Config) catalog.Site {
	return catalog.Site{
		EntryURL:  c.Catalog.EntryURL,
		PageURL:   c.Catalog.PageURL,
		BaseURL:   c.Catalog.BaseURL,
		UserAgent: c.Catalog.UserAgent,
	}
}

// runOptions builds pipeline options for a run of the given page count
// using the configured rate limit and retry budget.
func runOptions(c *config.Config, pages int) pipeline.Options {
	return pipeline.Options{
		PageCount:  pages,
		RateLimit:  c.Scrape.RateLimit(),
		MaxRetries: c.Scrape.MaxRetries,
		Site:       siteFromConfig(c),
	}
}

// statusFor maps a run outcome onto the persisted run status.
func statusFor(err error) model.RunStatus {
	switch {
	case err == nil:
		return model.RunStatusComplete
	case errors.Is(err, pipeline.ErrNoData):
		return model.RunStatusEmpty
	default:
		return model.RunStatusFailed
	}
}
