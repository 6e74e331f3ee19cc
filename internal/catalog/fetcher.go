package catalog

import (
	"context"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/pricespy/internal/model"
	"github.com/sells-group/pricespy/internal/resilience"
)

// AttemptTimeout bounds every single request attempt.
const AttemptTimeout = 10 * time.Second

const maxBodyBytes = 10 << 20

// Options configures a Fetcher.
type Options struct {
	// RateLimit is waited once before each page and is the backoff unit
	// between attempts.
	RateLimit time.Duration
	// MaxRetries is the total number of attempts per page (>= 1).
	MaxRetries int
	// Client overrides the HTTP client. Its timeout should stay at
	// AttemptTimeout.
	Client *http.Client
	// Sleep overrides how waits are performed.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Fetcher downloads catalog pages and extracts their records.
type Fetcher struct {
	site   Site
	opts   Options
	client *http.Client
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewFetcher validates site and opts and returns a Fetcher.
func NewFetcher(site Site, opts Options) (*Fetcher, error) {
	if err := site.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxRetries < 1 {
		return nil, eris.Errorf("catalog: max retries must be >= 1, got %d", opts.MaxRetries)
	}
	if opts.RateLimit < 0 {
		return nil, eris.Errorf("catalog: rate limit must be >= 0, got %s", opts.RateLimit)
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout: AttemptTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: AttemptTimeout,
				}).DialContext,
				TLSHandshakeTimeout: AttemptTimeout,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = resilience.SleepContext
	}

	return &Fetcher{site: site, opts: opts, client: client, sleep: sleep}, nil
}

// Site returns the fetcher's site coordinates.
func (f *Fetcher) Site() Site { return f.site }

// FetchPage waits the rate limit, then fetches and extracts the given page
// with up to MaxRetries attempts. After attempt n (zero-based) fails it waits
// 2^n * RateLimit. A page that never succeeds yields no records; the failure
// is logged and never returned.
func (f *Fetcher) FetchPage(ctx context.Context, page int) []model.RawRecord {
	pageURL := f.site.URLFor(page)

	if err := f.sleep(ctx, f.opts.RateLimit); err != nil {
		return nil
	}

	cfg := resilience.RetryConfig{
		MaxAttempts:    f.opts.MaxRetries,
		InitialBackoff: f.opts.RateLimit,
		Multiplier:     2.0,
		ShouldRetry:    resilience.AlwaysRetry,
		OnRetry:        resilience.RetryLogger("catalog", "fetch_page"),
		Sleep:          f.sleep,
	}
	records, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]model.RawRecord, error) {
		return f.fetchOnce(ctx, pageURL)
	})
	if err != nil {
		zap.L().Warn("catalog: page fetch exhausted retries",
			zap.Int("page", page),
			zap.String("url", pageURL),
			zap.Int("attempts", f.opts.MaxRetries),
			zap.Error(err),
		)
		return nil
	}

	zap.L().Debug("catalog: page extracted",
		zap.Int("page", page),
		zap.Int("records", len(records)),
	)
	return records
}

func (f *Fetcher) fetchOnce(ctx context.Context, pageURL string) ([]model.RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: create request")
	}
	req.Header.Set("User-Agent", f.site.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if err := resilience.CheckStatus(pageURL, resp.StatusCode); err != nil {
		return nil, err
	}

	return f.site.Extract(bodyReader(resp))
}

// bodyReader caps the body and transcodes it to UTF-8 when the response
// declares another charset.
func bodyReader(resp *http.Response) io.Reader {
	r := io.LimitReader(resp.Body, maxBodyBytes)

	_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return r
	}
	charset := params["charset"]
	if charset == "" || strings.EqualFold(charset, "utf-8") {
		return r
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		zap.L().Debug("catalog: unknown charset, reading as utf-8", zap.String("charset", charset))
		return r
	}
	return enc.NewDecoder().Reader(r)
}
