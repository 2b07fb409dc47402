package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/portfolio-site/backend/internal/api"
	"github.com/portfolio-site/backend/internal/catalog"
	"github.com/portfolio-site/backend/internal/config"
	"github.com/portfolio-site/backend/internal/engine"
	"github.com/portfolio-site/backend/internal/mailer"
	"github.com/portfolio-site/backend/internal/storage"
)

// Mocks

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msg mailer.Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

func (m *MockMailer) Name() string {
	return "mock"
}

const secret = "s3cret"

func writeContent(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"resources.json": `[
			{"title":"A","description":"first","category":"One","format":"article","url":"https://example.com/a","tags":["go"]},
			{"title":"B","description":"second","category":"Two","format":"video","url":"https://example.com/b","tags":["rust"]},
			{"title":"C","description":"third","category":"One","format":"paper","url":"https://example.com/c"}
		]`,
		"articles.json": `[{"slug":"rust-ownership","title":"Rust Ownership","date":"2024-01-01","excerpt":"memory safety","readTime":"5 min"}]`,
		"notes.json":    `[{"slug":"cache-notes","title":"Cache Notes","date":"2024-02-01","excerpt":"eviction and rust"}]`,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "articles"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "articles", "rust-ownership.md"), []byte("# Ownership"), 0644))
	return dir
}

func setupServer(t *testing.T) (*api.Server, *MockMailer) {
	t.Helper()
	cfg := config.Default()
	cfg.Email.Recipient = "me@example.com"
	cfg.Email.CronSecret = secret
	cfg.Content.SiteURL = "https://example.com"

	cat, err := catalog.Load(writeContent(t))
	require.NoError(t, err)
	deliveries, err := storage.NewDeliveryLog(filepath.Join(t.TempDir(), "deliveries"))
	require.NoError(t, err)

	logger := logrus.New().WithField("test", "api")
	eng := engine.NewEngine(cfg, logger, cat, nil, deliveries)
	m := new(MockMailer)
	eng.Mailer = m
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC) }

	return api.NewServer(eng, logger), m
}

func do(server *api.Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestHandleStatus(t *testing.T) {
	server, _ := setupServer(t)

	rr := do(server, "GET", "/api/v1/status", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp api.StatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Resources)
	assert.Equal(t, 1, resp.Articles)
	assert.Equal(t, 1, resp.Notes)
	assert.Equal(t, "mock", resp.Mailer)
	assert.False(t, resp.Bookmarks)
}

func TestHandlePosts(t *testing.T) {
	server, _ := setupServer(t)

	rr := do(server, "GET", "/api/v1/articles", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"readTime":"5 min"`)

	rr = do(server, "GET", "/api/v1/articles/rust-ownership", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	var pc catalog.PostContent
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pc))
	assert.Equal(t, "# Ownership", pc.Markdown)
	assert.True(t, pc.HasContent)

	rr = do(server, "GET", "/api/v1/notes/cache-notes", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(server, "GET", "/api/v1/notes/rust-ownership", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleResources(t *testing.T) {
	server, _ := setupServer(t)

	rr := do(server, "GET", "/api/v1/resources?category=One", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp api.ResourcesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, []string{"All", "One", "Two"}, resp.Categories)
	assert.Equal(t, 3, resp.Total)
	assert.Len(t, resp.Resources, 2)

	rr = do(server, "GET", "/api/v1/resources?q=RUST", "", nil)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "All", resp.Category)
	require.Len(t, resp.Resources, 1)
	assert.Equal(t, "B", resp.Resources[0].Title)
}

func TestHandleSearch(t *testing.T) {
	server, _ := setupServer(t)

	rr := do(server, "GET", "/api/v1/search?q=rust", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp api.SearchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "Rust Ownership", resp.Results[0].Entry.Title)
	assert.Equal(t, 2, resp.Results[0].Score)
	assert.Equal(t, "Cache Notes", resp.Results[1].Entry.Title)
	assert.Equal(t, 1, resp.Results[1].Score)
}

func TestHandleDaily(t *testing.T) {
	server, _ := setupServer(t)

	rr := do(server, "GET", "/api/v1/daily", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	var resp api.DailyResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "2024-01-01", resp.Date)
	assert.Equal(t, "B", resp.Article.Title)

	rr = do(server, "GET", "/api/v1/daily?date=2024-01-02", "", nil)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "C", resp.Article.Title)

	rr = do(server, "GET", "/api/v1/daily?date=01/02/2024", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBookmarkWritesRequireToken(t *testing.T) {
	var hits atomic.Int32
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("<html><head><title>internal admin</title></head></html>"))
	}))
	defer internal.Close()

	server, _ := setupServer(t)
	store, err := storage.OpenSQLStore(filepath.Join(t.TempDir(), "bookmarks.db"))
	require.NoError(t, err)
	defer store.Close()
	server.Engine.Bookmarks = store

	body := `{"url":"` + internal.URL + `/admin"}`
	rr := do(server, "POST", "/api/v1/bookmarks", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(server, "POST", "/api/v1/bookmarks", body, bearer("wrong"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(server, "POST", "/api/v1/bookmarks/import", `{"url":"`+internal.URL+`/feed"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	assert.Equal(t, int32(0), hits.Load(), "no outbound fetch without a token")
	list, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBookmarksUnavailable(t *testing.T) {
	server, _ := setupServer(t)

	rr := do(server, "GET", "/api/v1/bookmarks", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	auth := bearer(secret)
	rr = do(server, "POST", "/api/v1/bookmarks", `{"url":"https://example.com","title":"x","description":"y"}`, auth)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = do(server, "POST", "/api/v1/bookmarks", `{`, auth)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(server, "POST", "/api/v1/bookmarks", `{"title":"no url"}`, auth)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBookmarksRoundTrip(t *testing.T) {
	server, _ := setupServer(t)
	store, err := storage.OpenSQLStore(filepath.Join(t.TempDir(), "bookmarks.db"))
	require.NoError(t, err)
	defer store.Close()
	server.Engine.Bookmarks = store

	auth := bearer(secret)
	rr := do(server, "POST", "/api/v1/bookmarks", `{"url":"ftp://example.com/file"}`, auth)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(server, "POST", "/api/v1/bookmarks", `{"url":"https://example.com/bare","title":"Bare","description":"No tags"}`, auth)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"tags":[]`)
	assert.NotContains(t, rr.Body.String(), "created_at")

	rr = do(server, "POST", "/api/v1/bookmarks", `{"url":"https://example.com/post","title":"Post","description":"About things","tags":["go"]}`, auth)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(server, "GET", "/api/v1/bookmarks", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Bookmarks []storage.Bookmark `json:"bookmarks"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Bookmarks, 2)
	assert.Equal(t, "Post", resp.Bookmarks[0].Title)
	assert.Equal(t, "Uncategorized", resp.Bookmarks[0].Category)
	assert.Equal(t, []string{"go"}, resp.Bookmarks[0].Tags)
	assert.NotNil(t, resp.Bookmarks[0].CreatedAt)
}

func TestCronDailyAuth(t *testing.T) {
	server, _ := setupServer(t)

	rr := do(server, "GET", "/api/cron/daily-article", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(server, "GET", "/api/cron/daily-article", "", bearer("wrong"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	server.Engine.Config.Email.CronSecret = ""
	rr = do(server, "GET", "/api/cron/daily-article", "", bearer(""))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestCronDaily(t *testing.T) {
	server, m := setupServer(t)
	m.On("Send", mock.Anything, mock.MatchedBy(func(msg mailer.Message) bool {
		return msg.Subject == "Daily Read: B" && msg.To[0] == "me@example.com"
	})).Return("msg_1", nil).Once()

	rr := do(server, "GET", "/api/cron/daily-article", "", bearer(secret))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "msg_1", resp["messageId"])
	assert.Equal(t, "B", resp["article"])
	assert.Equal(t, "me@example.com", resp["recipient"])

	rr = do(server, "GET", "/api/cron/daily-article", "", bearer(secret))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["skipped"])

	m.AssertExpectations(t)
}

func TestCronDailyNoRecipient(t *testing.T) {
	server, _ := setupServer(t)
	server.Engine.Config.Email.Recipient = ""

	rr := do(server, "GET", "/api/cron/daily-article", "", bearer(secret))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestSendTest(t *testing.T) {
	server, m := setupServer(t)
	m.On("Send", mock.Anything, mock.MatchedBy(func(msg mailer.Message) bool {
		return msg.Subject == "[TEST] Daily Read: B" && msg.To[0] == "other@example.com"
	})).Return("msg_t", nil).Once()

	rr := do(server, "POST", "/api/email/send-test", `{"email":"other@example.com"}`, bearer(secret))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"messageId":"msg_t"`)

	server.Engine.Config.Email.Recipient = ""
	rr = do(server, "POST", "/api/email/send-test", "", bearer(secret))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	m.AssertExpectations(t)
}

func TestPreview(t *testing.T) {
	server, _ := setupServer(t)

	rr := do(server, "GET", "/api/email/preview", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "https://example.com/b")

	server.Engine.Config.Server.Env = "production"
	rr = do(server, "GET", "/api/email/preview", "", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	server, _ := setupServer(t)

	rr := do(server, "DELETE", "/api/v1/status", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
