package fetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfolio-site/backend/internal/fetcher"
)

const page = `<html><head>
<title>
  The   Log: What every engineer should know
</title>
<meta name="description" content="Real-time data's unifying abstraction">
<meta property="og:title" content="The Log (og)">
<meta name="author" content="Jay Kreps">
<meta property="og:site_name" content="Engineering Blog" />
</head><body><h1>Hello</h1></body></html>`

func newServer(t *testing.T, robots string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		if robots == "" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(robots))
	})
	mux.HandleFunc("/post", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	})
	mux.HandleFunc("/private/post", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	})
	mux.HandleFunc("/og-only", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><meta property="og:title" content="OG Title"><meta property="og:description" content="OG description"></head></html>`))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func newFetcher(robots bool) *fetcher.Fetcher {
	return fetcher.NewFetcher(fetcher.Options{
		UserAgent:     "test-agent",
		Timeout:       5 * time.Second,
		RespectRobots: robots,
	}, nil)
}

func TestUnfurl(t *testing.T) {
	ts := newServer(t, "")
	f := newFetcher(true)

	meta, err := f.Unfurl(context.Background(), ts.URL+"/post")
	require.NoError(t, err)
	assert.Equal(t, ts.URL+"/post", meta.URL)
	assert.Equal(t, http.StatusOK, meta.StatusCode)
	assert.Equal(t, "The Log: What every engineer should know", meta.Title)
	assert.Equal(t, "Real-time data's unifying abstraction", meta.Description)
	assert.Equal(t, "Jay Kreps", meta.Author)
	assert.Equal(t, "Engineering Blog", meta.SiteName)
}

func TestUnfurlOpenGraphFallback(t *testing.T) {
	ts := newServer(t, "")
	meta, err := newFetcher(false).Unfurl(context.Background(), ts.URL+"/og-only")
	require.NoError(t, err)
	assert.Equal(t, "OG Title", meta.Title)
	assert.Equal(t, "OG description", meta.Description)
}

func TestUnfurlNotFound(t *testing.T) {
	ts := newServer(t, "")
	meta, err := newFetcher(false).Unfurl(context.Background(), ts.URL+"/missing")
	assert.Error(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, http.StatusNotFound, meta.StatusCode)
}

func TestUnfurlRespectsRobots(t *testing.T) {
	ts := newServer(t, "User-agent: *\nDisallow: /private/\n")

	_, err := newFetcher(true).Unfurl(context.Background(), ts.URL+"/private/post")
	assert.ErrorIs(t, err, fetcher.ErrDisallowed)

	meta, err := newFetcher(true).Unfurl(context.Background(), ts.URL+"/post")
	require.NoError(t, err)
	assert.NotEmpty(t, meta.Title)

	// robots checks can be switched off
	_, err = newFetcher(false).Unfurl(context.Background(), ts.URL+"/private/post")
	assert.NoError(t, err)
}

func TestRobotsCheckerUnreachableAllows(t *testing.T) {
	ts := newServer(t, "")
	url := ts.URL + "/post"
	ts.Close()

	rc := fetcher.NewRobotsChecker(&http.Client{Timeout: time.Second}, "test-agent", time.Hour, nil)
	allowed, err := rc.Allowed(context.Background(), url)
	assert.NoError(t, err)
	assert.True(t, allowed)
}
