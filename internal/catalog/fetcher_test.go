package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) total() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum time.Duration
	for _, w := range r.waits {
		sum += w
	}
	return sum
}

func testSite(srv *httptest.Server) Site {
	return Site{
		EntryURL: srv.URL + "/index.html",
		PageURL:  srv.URL + "/catalogue/page-%d.html",
		BaseURL:  srv.URL + "/",
	}
}

func fixtureBody(t *testing.T) []byte {
	t.Helper()
	b, err := os.ReadFile("testdata/index.html")
	require.NoError(t, err)
	return b
}

func TestNewFetcher_Validation(t *testing.T) {
	_, err := NewFetcher(DefaultSite(), Options{MaxRetries: 0})
	assert.Error(t, err)

	_, err = NewFetcher(DefaultSite(), Options{MaxRetries: 1, RateLimit: -time.Second})
	assert.Error(t, err)

	f, err := NewFetcher(DefaultSite(), Options{MaxRetries: 3})
	require.NoError(t, err)
	assert.Equal(t, DefaultEntryURL, f.Site().EntryURL)
}

func TestFetchPage_Success(t *testing.T) {
	body := fixtureBody(t)
	var gotUA, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	f, err := NewFetcher(testSite(srv), Options{RateLimit: 500 * time.Millisecond, MaxRetries: 3, Sleep: rec.sleep})
	require.NoError(t, err)

	records := f.FetchPage(context.Background(), 1)
	require.Len(t, records, 3)
	assert.Equal(t, "/index.html", gotPath)
	assert.Equal(t, DefaultUserAgent, gotUA)
	assert.Equal(t, srv.URL+"/catalogue/a-light-in-the-attic_1000/index.html", records[0].URL)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, rec.waits, "rate limit waited once")
}

func TestFetchPage_IndexedTemplate(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	f, err := NewFetcher(testSite(srv), Options{MaxRetries: 1, Sleep: rec.sleep})
	require.NoError(t, err)

	assert.Empty(t, f.FetchPage(context.Background(), 4))
	assert.Equal(t, "/catalogue/page-4.html", gotPath)
}

func TestFetchPage_RetryBackoff(t *testing.T) {
	body := fixtureBody(t)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	rate := 200 * time.Millisecond
	rec := &sleepRecorder{}
	f, err := NewFetcher(testSite(srv), Options{RateLimit: rate, MaxRetries: 3, Sleep: rec.sleep})
	require.NoError(t, err)

	records := f.FetchPage(context.Background(), 1)
	assert.Len(t, records, 3)
	assert.Equal(t, int32(3), calls.Load())

	// One rate-limit wait, then backoff of rate*2^0 and rate*2^1.
	assert.Equal(t, []time.Duration{rate, rate, 2 * rate}, rec.waits)
	assert.Equal(t, rate*(1+2), rec.total()-rate)
}

func TestFetchPage_ExhaustedRetriesYieldsEmpty(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	f, err := NewFetcher(testSite(srv), Options{RateLimit: time.Second, MaxRetries: 3, Sleep: rec.sleep})
	require.NoError(t, err)

	records := f.FetchPage(context.Background(), 2)
	assert.Empty(t, records)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, time.Second, 2 * time.Second}, rec.waits, "no wait after the final attempt")
}

func TestFetchPage_ConnectionErrorYieldsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	site := testSite(srv)
	srv.Close()

	rec := &sleepRecorder{}
	f, err := NewFetcher(site, Options{MaxRetries: 2, Sleep: rec.sleep})
	require.NoError(t, err)

	assert.Empty(t, f.FetchPage(context.Background(), 1))
	assert.Len(t, rec.waits, 2)
}

func TestFetchPage_DecodesDeclaredCharset(t *testing.T) {
	// 0xA3 is the pound sign in windows-1252.
	body := []byte("<article class=\"product_pod\"><h3><a title=\"Latin\" href=\"catalogue/latin_1/index.html\">Latin</a></h3><p class=\"price_color\">\xa351.77</p></article>")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	f, err := NewFetcher(testSite(srv), Options{MaxRetries: 1, Sleep: rec.sleep})
	require.NoError(t, err)

	records := f.FetchPage(context.Background(), 1)
	require.Len(t, records, 1)
	assert.Equal(t, "£51.77", records[0].Price)
}

func TestFetchPage_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &sleepRecorder{}
	f, err := NewFetcher(testSite(srv), Options{RateLimit: time.Second, MaxRetries: 3, Sleep: rec.sleep})
	require.NoError(t, err)
	assert.Empty(t, f.FetchPage(ctx, 1))
}
