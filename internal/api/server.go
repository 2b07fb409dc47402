package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/portfolio-site/backend/internal/catalog"
	"github.com/portfolio-site/backend/internal/daily"
	"github.com/portfolio-site/backend/internal/engine"
	"github.com/portfolio-site/backend/internal/feedimport"
	"github.com/portfolio-site/backend/internal/search"
	"github.com/portfolio-site/backend/internal/storage"
)

type Server struct {
	Engine *engine.Engine
	Logger *logrus.Entry
	Router *http.ServeMux
}

func NewServer(eng *engine.Engine, logger *logrus.Entry) *Server {
	s := &Server{
		Engine: eng,
		Logger: logger,
		Router: http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.HandleFunc("GET /api/v1/status", s.handleStatus)
	s.Router.HandleFunc("GET /api/v1/articles", s.handlePosts(catalog.KindArticle))
	s.Router.HandleFunc("GET /api/v1/articles/{slug}", s.handlePost(catalog.KindArticle))
	s.Router.HandleFunc("GET /api/v1/notes", s.handlePosts(catalog.KindNote))
	s.Router.HandleFunc("GET /api/v1/notes/{slug}", s.handlePost(catalog.KindNote))
	s.Router.HandleFunc("GET /api/v1/resources", s.handleResources)
	s.Router.HandleFunc("GET /api/v1/search", s.handleSearch)
	s.Router.HandleFunc("GET /api/v1/daily", s.handleDaily)
	s.Router.HandleFunc("GET /api/v1/bookmarks", s.handleListBookmarks)
	s.Router.HandleFunc("POST /api/v1/bookmarks", s.handleSaveBookmark)
	s.Router.HandleFunc("POST /api/v1/bookmarks/import", s.handleImportFeed)

	s.Router.HandleFunc("GET /api/cron/daily-article", s.handleCronDaily)
	s.Router.HandleFunc("POST /api/email/send-test", s.handleSendTest)
	s.Router.HandleFunc("GET /api/email/preview", s.handlePreview)
}

// Handler wraps the router with request logging.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		s.Router.ServeHTTP(rec, r)
		s.Logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Debug("request")
	})
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	cfg := s.Engine.Config.Server
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Infof("Starting API Server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.Logger.Info("Shutting down API Server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Responses
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type StatusResponse struct {
	Uptime       string `json:"uptime"`
	Resources    int    `json:"resources"`
	Articles     int    `json:"articles"`
	Notes        int    `json:"notes"`
	Mailer       string `json:"mailer"`
	Bookmarks    bool   `json:"bookmarks"`
	EmailsSent   int64  `json:"emails_sent"`
	LastDelivery string `json:"last_delivery,omitempty"`
}

type PostsResponse struct {
	Posts []catalog.Post `json:"posts"`
}

type ResourcesResponse struct {
	Categories []string           `json:"categories"`
	Category   string             `json:"category"`
	Query      string             `json:"query"`
	Total      int                `json:"total"`
	Resources  []catalog.Resource `json:"resources"`
}

type SearchResponse struct {
	Query   string                `json:"query"`
	Results []search.SearchResult `json:"results"`
}

type DailyResponse struct {
	Date    string           `json:"date"`
	Article catalog.Resource `json:"article"`
}

type SendResponse struct {
	Success bool `json:"success"`
	*engine.SendResult
}

// Handlers

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.Engine.Snapshot()
	cat := s.Engine.Catalog

	jsonResponse(w, http.StatusOK, StatusResponse{
		Uptime:       time.Since(stats.StartTime).Round(time.Second).String(),
		Resources:    len(cat.Resources()),
		Articles:     len(cat.Articles()),
		Notes:        len(cat.Notes()),
		Mailer:       s.Engine.Mailer.Name(),
		Bookmarks:    s.Engine.Bookmarks != nil,
		EmailsSent:   stats.EmailsSent,
		LastDelivery: stats.LastDelivery,
	})
}

func (s *Server) handlePosts(kind catalog.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		posts := s.Engine.Catalog.Articles()
		if kind == catalog.KindNote {
			posts = s.Engine.Catalog.Notes()
		}
		if posts == nil {
			posts = []catalog.Post{}
		}
		jsonResponse(w, http.StatusOK, PostsResponse{Posts: posts})
	}
}

func (s *Server) handlePost(kind catalog.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pc, err := s.Engine.Catalog.Content(kind, r.PathValue("slug"))
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				jsonResponse(w, http.StatusNotFound, ErrorResponse{Error: "Not found"})
				return
			}
			s.Logger.WithError(err).Error("Failed to load post")
			jsonResponse(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to load content"})
			return
		}
		jsonResponse(w, http.StatusOK, pc)
	}
}

func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		category = catalog.AllCategory
	}
	query := r.URL.Query().Get("q")

	resources := s.Engine.Resources(category, query)
	jsonResponse(w, http.StatusOK, ResourcesResponse{
		Categories: s.Engine.Catalog.Categories(),
		Category:   category,
		Query:      query,
		Total:      len(s.Engine.Catalog.Resources()),
		Resources:  resources,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	jsonResponse(w, http.StatusOK, SearchResponse{
		Query:   query,
		Results: s.Engine.Search(query, 0),
	})
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	date := s.Engine.Today()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := daily.ParseSeed(raw)
		if err != nil {
			jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "date must be YYYY-MM-DD"})
			return
		}
		date = parsed
	}

	article, err := s.Engine.DailyArticle(date)
	if err != nil {
		s.Logger.WithError(err).Error("Failed to pick daily article")
		jsonResponse(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	jsonResponse(w, http.StatusOK, DailyResponse{Date: daily.Seed(date), Article: article})
}

func (s *Server) handleListBookmarks(w http.ResponseWriter, r *http.Request) {
	bookmarks, err := s.Engine.ListBookmarks(r.Context())
	if err != nil {
		s.bookmarkError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]interface{}{"bookmarks": bookmarks})
}

func (s *Server) handleSaveBookmark(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}

	var req storage.Bookmark
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON"})
		return
	}
	if req.URL == "" {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "URL is required"})
		return
	}

	saved, err := s.Engine.SaveBookmark(r.Context(), req)
	if err != nil {
		s.bookmarkError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, saved)
}

func (s *Server) handleImportFeed(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}

	var req struct {
		URL      string `json:"url"`
		Category string `json:"category"`
		Format   string `json:"format"`
		Limit    int    `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON"})
		return
	}
	if req.URL == "" {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "URL is required"})
		return
	}

	saved, err := s.Engine.ImportFeed(r.Context(), req.URL, feedimport.Options{
		Category: req.Category,
		Format:   req.Format,
		Limit:    req.Limit,
	})
	if err != nil {
		s.bookmarkError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]interface{}{"imported": saved, "feed": req.URL})
}

func (s *Server) bookmarkError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNoBookmarkStore):
		jsonResponse(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrInvalidBookmark):
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		s.Logger.WithError(err).Error("Bookmark request failed")
		jsonResponse(w, http.StatusBadGateway, ErrorResponse{Error: err.Error()})
	}
}

// authorize checks the shared CRON_SECRET bearer token guarding every route
// that sends mail, writes bookmarks or fetches caller-supplied URLs. It writes
// the error response and returns false when the request may not proceed.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	secret := s.Engine.Config.Email.CronSecret
	if secret == "" {
		s.Logger.Error("CRON_SECRET not configured")
		jsonResponse(w, http.StatusInternalServerError, ErrorResponse{Error: "Server configuration error"})
		return false
	}
	got := r.Header.Get("Authorization")
	want := "Bearer " + secret
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		jsonResponse(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return false
	}
	return true
}

func (s *Server) handleCronDaily(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}
	if s.Engine.Config.Email.Recipient == "" {
		jsonResponse(w, http.StatusInternalServerError, ErrorResponse{Error: "DAILY_EMAIL_RECIPIENT not configured"})
		return
	}

	res, err := s.Engine.SendDaily(r.Context(), engine.SendRequest{Date: s.Engine.Today()})
	if err != nil {
		jsonResponse(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to send email", Details: err.Error()})
		return
	}
	jsonResponse(w, http.StatusOK, SendResponse{Success: true, SendResult: res})
}

func (s *Server) handleSendTest(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}

	// an empty or malformed body falls back to the configured recipient
	var req struct {
		Email string `json:"email"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	res, err := s.Engine.SendDaily(r.Context(), engine.SendRequest{
		Date:      s.Engine.Today(),
		Recipient: req.Email,
		Test:      true,
	})
	if err != nil {
		if errors.Is(err, engine.ErrNoRecipient) {
			jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "No recipient specified"})
			return
		}
		jsonResponse(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to send test email", Details: err.Error()})
		return
	}
	jsonResponse(w, http.StatusOK, SendResponse{Success: true, SendResult: res})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.Engine.Config.IsProduction() {
		jsonResponse(w, http.StatusForbidden, ErrorResponse{Error: "Preview only available in development"})
		return
	}

	date := s.Engine.Today()
	if raw := r.URL.Query().Get("date"); raw != "" {
		if parsed, err := daily.ParseSeed(raw); err == nil {
			date = parsed
		}
	}

	digest, err := s.Engine.PreviewDaily(date)
	if err != nil {
		jsonResponse(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(digest.HTML))
}

func jsonResponse(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
