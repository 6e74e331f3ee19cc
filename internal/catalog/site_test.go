package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSiteURLFor(t *testing.T) {
	s := DefaultSite()
	require.NoError(t, s.Validate())

	assert.Equal(t, "https://books.toscrape.com/index.html", s.URLFor(1))
	assert.Equal(t, "https://books.toscrape.com/catalogue/page-2.html", s.URLFor(2))
	assert.Equal(t, "https://books.toscrape.com/catalogue/page-50.html", s.URLFor(50))
}

func TestSiteValidate_FillsDefaults(t *testing.T) {
	var s Site
	require.NoError(t, s.Validate())
	assert.Equal(t, DefaultEntryURL, s.EntryURL)
	assert.Equal(t, DefaultPageURL, s.PageURL)
	assert.Equal(t, DefaultBaseURL, s.BaseURL)
	assert.Equal(t, DefaultUserAgent, s.UserAgent)
}

func TestSiteValidate_Rejects(t *testing.T) {
	s := Site{PageURL: "https://example.com/page.html"}
	assert.Error(t, s.Validate())

	s = Site{BaseURL: "relative/path"}
	assert.Error(t, s.Validate())
}

func TestResolveProductURL(t *testing.T) {
	s := DefaultSite()
	require.NoError(t, s.Validate())

	tests := []struct {
		name string
		href string
		want string
	}{
		{"entry page href", "catalogue/a-light-in-the-attic_1000/index.html", "https://books.toscrape.com/catalogue/a-light-in-the-attic_1000/index.html"},
		{"traversal prefix", "../../../tipping-the-velvet_999/index.html", "https://books.toscrape.com/catalogue/tipping-the-velvet_999/index.html"},
		{"absolute", "https://other.example/x", "https://other.example/x"},
		{"root relative", "/catalogue/x/index.html", "https://books.toscrape.com/catalogue/x/index.html"},
		{"empty", "", ""},
		{"whitespace", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.ResolveProductURL(tt.href))
		})
	}
}

func TestResolveProductURL_WithoutValidate(t *testing.T) {
	s := Site{BaseURL: "https://books.toscrape.com/"}
	assert.Equal(t, "https://books.toscrape.com/catalogue/x.html", s.ResolveProductURL("../../../x.html"))
}
