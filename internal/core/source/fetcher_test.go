package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"recipe-autofind/internal/infrastructure/metrics"
	"recipe-autofind/internal/pkg/common"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const britannicaPage = `<html><head><title>Biryani | Britannica</title>
<meta name="description" content="Biryani, a layered rice dish.">
</head><body><nav><p>Menu</p></nav><h1>Chicken biryani</h1>
<article><p>Biryani is cooked with <b>basmati rice</b>.</p><script>track()</script>
<p>It spread through the Mughal courts.</p></article></body></html>`

const wikibooksPage = `<html><head><title>Cookbook:Cuisine of Morocco</title></head><body>
<h1>Cookbook:Cuisine of Morocco</h1><div id="mw-content-text"><div class="mw-parser-output">
<p>Moroccan cuisine uses lamb, couscous and preserved lemons.</p>
<table><tr><td>nav</td></tr></table></div></div></body></html>`

type fakeSites struct {
	*httptest.Server
	mu       sync.Mutex
	searched []string
}

func newFakeSites(t *testing.T) *fakeSites {
	f := &fakeSites{}
	mux := http.NewServeMux()

	mux.HandleFunc("/w/api.php", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.searched = append(f.searched, r.URL.Query().Get("srsearch"))
		f.mu.Unlock()
		fmt.Fprint(w, `{"query":{"search":[{"title":"Tagine"},{"title":"Tagine (disambiguation)"},{"title":"Missing Page"}]}}`)
	})
	mux.HandleFunc("/api/rest_v1/page/summary/", func(w http.ResponseWriter, r *http.Request) {
		title := strings.TrimPrefix(r.URL.Path, "/api/rest_v1/page/summary/")
		switch title {
		case "chicken_biryani":
			fmt.Fprintf(w, `{"type":"standard","title":"Biryani","extract":"Biryani is a mixed rice dish.","content_urls":{"desktop":{"page":"%s/wiki/Biryani"}}}`, f.URL)
		case "Tagine":
			fmt.Fprint(w, `{"type":"standard","title":"Tagine","extract":"Tagine is a Maghrebi dish."}`)
		case "Tagine_(disambiguation)":
			fmt.Fprint(w, `{"type":"disambiguation","title":"Tagine","extract":"Tagine may refer to:"}`)
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/topic/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/topic/chicken-biryani":
			fmt.Fprint(w, britannicaPage)
		case "/topic/redirected":
			http.Redirect(w, r, "http://untrusted.example.com/page", http.StatusFound)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	})
	mux.HandleFunc("/wiki/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/wiki/Cookbook:Cuisine_of_Morocco" {
			fmt.Fprint(w, wikibooksPage)
			return
		}
		http.NotFound(w, r)
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func newTestFetcher(t *testing.T, baseURL string, enabled ...string) *Fetcher {
	cfg := DefaultConfig()
	cfg.Timeout = 2 * time.Second
	cfg.MaxRetries = 0
	cfg.RatePerSecond = 0
	if len(enabled) > 0 {
		cfg.Enabled = enabled
	}
	cfg.BaseURLs = map[string]string{
		wikipediaName:  baseURL,
		britannicaName: baseURL,
		wikibooksName:  baseURL,
	}
	f, err := NewFetcher(cfg, metrics.New(prometheus.NewRegistry()))
	require.NoError(t, err)
	return f
}

func TestFetchKnownRecipeSortedByTrust(t *testing.T) {
	srv := newFakeSites(t)
	f := newTestFetcher(t, srv.URL)

	sq := common.StructuredQuery{DishName: "chicken biryani", Ingredients: []string{"chicken"}}
	sources := f.FetchTrustedSources(context.Background(), sq, common.ClassKnownRecipe)

	require.Len(t, sources, 2)
	assert.Equal(t, britannicaTrust, sources[0].TrustScore)
	assert.Equal(t, wikipediaTrust, sources[1].TrustScore)

	brit := sources[0]
	assert.Equal(t, srv.URL+"/topic/chicken-biryani", brit.URL)
	assert.Equal(t, "Chicken biryani", brit.Title)
	assert.Equal(t, strings.TrimPrefix(srv.URL, "http://"), brit.Domain)
	assert.True(t, strings.HasPrefix(brit.ExcerptText, "Biryani, a layered rice dish."))
	assert.Contains(t, brit.ExcerptText, "Biryani is cooked with basmati rice.")
	assert.NotContains(t, brit.ExcerptText, "Menu")
	assert.Contains(t, brit.SnapshotText, "**basmati rice**")
	assert.NotContains(t, brit.SnapshotText, "track()")

	wiki := sources[1]
	assert.Equal(t, srv.URL+"/wiki/Biryani", wiki.URL)
	assert.Equal(t, "Biryani is a mixed rice dish.", wiki.ExcerptText)
	assert.Empty(t, srv.searched, "direct summary hit skips the search API")
}

func TestFetchVagueDescriptionSearchesBroadly(t *testing.T) {
	srv := newFakeSites(t)
	f := newTestFetcher(t, srv.URL)

	sq := common.StructuredQuery{
		DishName:    "something with lamb from morocco",
		Country:     "morocco",
		Ingredients: []string{"lamb"},
		IsVague:     true,
	}
	sources := f.FetchTrustedSources(context.Background(), sq, common.ClassVagueDescription)

	require.Len(t, sources, 2)
	assert.Equal(t, []string{"morocco lamb dish"}, srv.searched)

	assert.Equal(t, "Tagine", sources[0].Title)
	assert.Equal(t, srv.URL+"/wiki/Tagine", sources[0].URL)

	assert.Equal(t, wikibooksTrust, sources[1].TrustScore)
	assert.Equal(t, srv.URL+"/wiki/Cookbook:Cuisine_of_Morocco", sources[1].URL)
	assert.Contains(t, sources[1].ExcerptText, "preserved lemons")
	assert.NotContains(t, sources[1].SnapshotText, "nav")
}

func TestFetchTotalFailureReturnsEmpty(t *testing.T) {
	srv := newFakeSites(t)
	f := newTestFetcher(t, srv.URL, britannicaName, wikibooksName)

	sq := common.StructuredQuery{DishName: "unknown stew", Country: "atlantis"}
	sources := f.FetchTrustedSources(context.Background(), sq, common.ClassKnownRecipe)
	assert.Empty(t, sources)
}

func TestFetchExcerptTruncated(t *testing.T) {
	srv := newFakeSites(t)
	cfg := DefaultConfig()
	cfg.Enabled = []string{britannicaName}
	cfg.MaxRetries = 0
	cfg.RatePerSecond = 0
	cfg.MaxExcerptChars = 10
	cfg.MaxSnapshotSize = 12
	cfg.BaseURLs = map[string]string{britannicaName: srv.URL}
	f, err := NewFetcher(cfg, nil)
	require.NoError(t, err)

	sources := f.FetchTrustedSources(context.Background(), common.StructuredQuery{DishName: "chicken biryani"}, common.ClassKnownRecipe)
	require.Len(t, sources, 1)
	assert.Equal(t, "Biryani, a", sources[0].ExcerptText)
	assert.Len(t, []rune(sources[0].SnapshotText), 12)
}

func TestTrustedClientRejectsUntrustedHosts(t *testing.T) {
	srv := newFakeSites(t)
	host := strings.TrimPrefix(srv.URL, "http://")
	c := newTrustedClient([]string{host}, 2*time.Second, 0, "test", 0)

	_, err := c.get(context.Background(), "http://untrusted.example.com/topic/x", nil)
	assert.ErrorIs(t, err, errHostNotTrusted)

	_, err = c.get(context.Background(), srv.URL+"/topic/redirected", nil)
	assert.Error(t, err, "redirect off the whitelist is refused")

	_, err = c.get(context.Background(), srv.URL+"/wiki/Nope", nil)
	assert.ErrorIs(t, err, errNotFound)

	resp, err := c.get(context.Background(), srv.URL+"/topic/chicken-biryani", nil)
	require.NoError(t, err)
	assert.Contains(t, string(resp.Body()), "Chicken biryani")
}

func TestNewFetcherRejectsUnknownSite(t *testing.T) {
	_, err := NewFetcher(Config{Enabled: []string{"wikipedia", "myblog"}}, nil)
	assert.Error(t, err)

	assert.Equal(t, []string{"wikipedia", "britannica"}, ParseEnabled(" Wikipedia, ,britannica "))
}

func TestWikiTitle(t *testing.T) {
	assert.Equal(t, "Chicken_Biryani", wikiTitle("chicken biryani"))
	assert.Equal(t, "Pad_Thai", wikiTitle(" pad thai "))
}
