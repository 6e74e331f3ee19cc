// Package catalog fetches listing pages from the product catalog site and
// extracts raw product records from their markup.
package catalog

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// Default site coordinates.
const (
	DefaultEntryURL  = "https://books.toscrape.com/index.html"
	DefaultPageURL   = "https://books.toscrape.com/catalogue/page-%d.html"
	DefaultBaseURL   = "https://books.toscrape.com/"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// traversalPrefix appears on hrefs of catalogue pages, which sit one level
// deeper than the entry page.
const traversalPrefix = "../../../"

// Site describes where catalog pages live and how product links resolve.
type Site struct {
	// EntryURL is the canonical URL of page 1.
	EntryURL string
	// PageURL is a fmt template with one %d verb for pages 2 and up.
	PageURL string
	// BaseURL is the root product hrefs are resolved against.
	BaseURL   string
	UserAgent string

	base *url.URL
}

// DefaultSite returns the production catalog coordinates.
func DefaultSite() Site {
	return Site{
		EntryURL:  DefaultEntryURL,
		PageURL:   DefaultPageURL,
		BaseURL:   DefaultBaseURL,
		UserAgent: DefaultUserAgent,
	}
}

// Validate fills blanks with defaults and parses the base URL.
func (s *Site) Validate() error {
	def := DefaultSite()
	if s.EntryURL == "" {
		s.EntryURL = def.EntryURL
	}
	if s.PageURL == "" {
		s.PageURL = def.PageURL
	}
	if s.BaseURL == "" {
		s.BaseURL = def.BaseURL
	}
	if s.UserAgent == "" {
		s.UserAgent = def.UserAgent
	}
	if !strings.Contains(s.PageURL, "%d") {
		return eris.Errorf("catalog: page url template %q has no %%d verb", s.PageURL)
	}
	base, err := url.Parse(s.BaseURL)
	if err != nil {
		return eris.Wrap(err, "catalog: parse base url")
	}
	if !base.IsAbs() {
		return eris.Errorf("catalog: base url %q is not absolute", s.BaseURL)
	}
	s.base = base
	return nil
}

// URLFor returns the URL of the 1-based page index. Page 1 uses the entry
// URL; later pages use the indexed template.
func (s Site) URLFor(page int) string {
	if page <= 1 {
		return s.EntryURL
	}
	return fmt.Sprintf(s.PageURL, page)
}

// ResolveProductURL turns an anchor href into an absolute product URL.
// A leading "../../../" is rewritten to "catalogue/" before resolution.
// Returns "" when href is empty or unparseable.
func (s Site) ResolveProductURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if rest, ok := strings.CutPrefix(href, traversalPrefix); ok {
		href = "catalogue/" + rest
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	base := s.base
	if base == nil {
		if base, err = url.Parse(s.BaseURL); err != nil {
			return ""
		}
	}
	return base.ResolveReference(ref).String()
}
