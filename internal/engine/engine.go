package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/portfolio-site/backend/internal/catalog"
	"github.com/portfolio-site/backend/internal/config"
	"github.com/portfolio-site/backend/internal/daily"
	"github.com/portfolio-site/backend/internal/feedimport"
	"github.com/portfolio-site/backend/internal/fetcher"
	"github.com/portfolio-site/backend/internal/mailer"
	"github.com/portfolio-site/backend/internal/search"
	"github.com/portfolio-site/backend/internal/storage"
)

var (
	// ErrNoRecipient is returned when neither the request nor the config names a recipient
	ErrNoRecipient = errors.New("no recipient specified")
	// ErrNoBookmarkStore is returned when DATABASE_URL is not configured
	ErrNoBookmarkStore = errors.New("bookmark storage is not configured")
)

// DeliveryRecorder is the part of the delivery log the engine needs
type DeliveryRecorder interface {
	Record(d storage.Delivery) error
	Get(date string) (*storage.Delivery, error)
}

// Engine wires the catalog, search index and the digest/bookmark collaborators
type Engine struct {
	Config      *config.Config
	Logger      *logrus.Entry
	Catalog     *catalog.Catalog
	SearchIndex *search.Index
	Bookmarks   storage.BookmarkStore
	Deliveries  DeliveryRecorder
	Mailer      mailer.Mailer
	Fetcher     *fetcher.Fetcher
	FeedParser  feedimport.Parser

	// Now returns the current time; tests pin it.
	Now func() time.Time

	mu    sync.RWMutex
	Stats EngineStats

	// sendLocks holds one *sync.Mutex per UTC day so the delivery log check
	// and the send happen as one step.
	sendLocks sync.Map
}

type EngineStats struct {
	StartTime    time.Time
	EmailsSent   int64
	LastDelivery string
	LastError    string
}

// NewEngine builds an engine around an already loaded catalog. Bookmarks and
// deliveries may be nil, which disables the features that need them.
func NewEngine(cfg *config.Config, logger *logrus.Entry, cat *catalog.Catalog, bookmarks storage.BookmarkStore, deliveries DeliveryRecorder) *Engine {
	var m mailer.Mailer
	switch {
	case cfg.Email.Provider == "log", cfg.Email.APIKey == "" && !cfg.IsProduction():
		m = mailer.NewLogMailer(logger)
	default:
		m = mailer.NewResendMailer(cfg.Email.BaseURL, cfg.Email.APIKey, cfg.Email.Timeout)
	}

	return &Engine{
		Config:      cfg,
		Logger:      logger,
		Catalog:     cat,
		SearchIndex: search.NewIndex(cat.SearchEntries()),
		Bookmarks:   bookmarks,
		Deliveries:  deliveries,
		Mailer:      m,
		Fetcher: fetcher.NewFetcher(fetcher.Options{
			UserAgent:     cfg.Fetcher.UserAgent,
			Timeout:       cfg.Fetcher.Timeout,
			RespectRobots: cfg.Fetcher.RespectRobots,
		}, logger.WithField("component", "fetcher")),
		Now:   time.Now,
		Stats: EngineStats{StartTime: time.Now()},
	}
}

// Bootstrap loads the catalog and opens storage as configured.
func Bootstrap(cfg *config.Config, logger *logrus.Entry) (*Engine, error) {
	cat, err := catalog.Load(cfg.Content.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"resources": len(cat.Resources()),
		"articles":  len(cat.Articles()),
		"notes":     len(cat.Notes()),
	}).Info("Catalog loaded")

	var bookmarks storage.BookmarkStore
	if cfg.Storage.DatabaseURL != "" {
		store, err := storage.OpenSQLStore(cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, err
		}
		logger.WithField("dialect", store.Dialect()).Info("Bookmark store ready")
		bookmarks = store
	}

	var deliveries DeliveryRecorder
	if cfg.Storage.DeliveryDir != "" {
		log, err := storage.NewDeliveryLog(cfg.Storage.DeliveryDir)
		if err != nil {
			return nil, err
		}
		deliveries = log
	}

	return NewEngine(cfg, logger, cat, bookmarks, deliveries), nil
}

// Close releases the bookmark store.
func (e *Engine) Close() error {
	if e.Bookmarks != nil {
		return e.Bookmarks.Close()
	}
	return nil
}

// DailyArticle returns the resource picked for date's UTC day.
func (e *Engine) DailyArticle(date time.Time) (catalog.Resource, error) {
	return daily.Pick(date, e.Catalog.Resources())
}

// Today is the current UTC day.
func (e *Engine) Today() time.Time {
	return e.Now().UTC()
}

// PreviewDaily renders the digest for date without sending it.
func (e *Engine) PreviewDaily(date time.Time) (*mailer.Digest, error) {
	article, err := e.DailyArticle(date)
	if err != nil {
		return nil, err
	}
	return mailer.RenderDaily(article, e.Config.Content.SiteURL, false)
}

// SendRequest describes one digest send
type SendRequest struct {
	Date      time.Time
	Recipient string
	// Test sends are marked in the subject and bypass the delivery log.
	Test bool
}

// SendResult reports what was (or, when Skipped, had already been) sent
type SendResult struct {
	MessageID string `json:"messageId"`
	Article   string `json:"article"`
	Recipient string `json:"recipient"`
	Date      string `json:"date"`
	Skipped   bool   `json:"skipped,omitempty"`
}

// SendDaily picks the article for req.Date, renders it and sends it. A
// non-test send for a day that was already delivered is skipped.
func (e *Engine) SendDaily(ctx context.Context, req SendRequest) (*SendResult, error) {
	recipient := strings.TrimSpace(req.Recipient)
	if recipient == "" {
		recipient = e.Config.Email.Recipient
	}
	if recipient == "" {
		return nil, ErrNoRecipient
	}

	seed := daily.Seed(req.Date)
	log := e.Logger.WithFields(logrus.Fields{"date": seed, "recipient": recipient, "test": req.Test})

	if !req.Test {
		lock, _ := e.sendLocks.LoadOrStore(seed, &sync.Mutex{})
		lock.(*sync.Mutex).Lock()
		defer lock.(*sync.Mutex).Unlock()
	}

	if !req.Test && e.Deliveries != nil {
		prev, err := e.Deliveries.Get(seed)
		switch {
		case err == nil:
			log.WithField("message_id", prev.MessageID).Info("Daily article already sent")
			return &SendResult{
				MessageID: prev.MessageID,
				Article:   prev.Article,
				Recipient: prev.Recipient,
				Date:      seed,
				Skipped:   true,
			}, nil
		case !errors.Is(err, storage.ErrNoDelivery):
			log.WithError(err).Warn("Failed to read delivery log")
		}
	}

	article, err := e.DailyArticle(req.Date)
	if err != nil {
		return nil, err
	}
	digest, err := mailer.RenderDaily(article, e.Config.Content.SiteURL, req.Test)
	if err != nil {
		return nil, err
	}

	msg := mailer.Message{
		From:    e.Config.Email.From,
		To:      []string{recipient},
		ReplyTo: e.Config.Email.ReplyTo,
		Subject: digest.Subject,
		HTML:    digest.HTML,
		Text:    digest.Text,
	}
	if !req.Test {
		msg.IdempotencyKey = mailer.IdempotencyKey(seed, recipient)
	}

	id, err := e.Mailer.Send(ctx, msg)
	if err != nil {
		e.mu.Lock()
		e.Stats.LastError = err.Error()
		e.mu.Unlock()
		log.WithError(err).Error("Failed to send daily article email")
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	e.mu.Lock()
	e.Stats.EmailsSent++
	e.Stats.LastDelivery = seed
	e.mu.Unlock()

	if !req.Test && e.Deliveries != nil {
		err := e.Deliveries.Record(storage.Delivery{
			Date:      seed,
			MessageID: id,
			Article:   article.Title,
			URL:       article.URL,
			Recipient: recipient,
			Provider:  e.Mailer.Name(),
			SentAt:    e.Now().UTC(),
		})
		if err != nil {
			log.WithError(err).Warn("Failed to record delivery")
		}
	}

	log.WithFields(logrus.Fields{"message_id": id, "article": article.Title}).Info("Daily article sent")
	return &SendResult{
		MessageID: id,
		Article:   article.Title,
		Recipient: recipient,
		Date:      seed,
	}, nil
}

// Search ranks the command palette entries for query.
func (e *Engine) Search(query string, limit int) []search.SearchResult {
	return e.SearchIndex.Search(query, limit)
}

// Resources filters the resource catalog by category and query.
func (e *Engine) Resources(category, query string) []catalog.Resource {
	return catalog.FilterResources(e.Catalog.Resources(), category, query)
}

// SaveBookmark stores b, filling missing title, description and author from
// the page itself when they are empty.
func (e *Engine) SaveBookmark(ctx context.Context, b storage.Bookmark) (storage.Bookmark, error) {
	if e.Bookmarks == nil {
		return b, ErrNoBookmarkStore
	}
	if err := storage.ValidateURL(b.URL); err != nil {
		return b, err
	}

	if b.Title == "" || b.Description == "" {
		meta, err := e.Fetcher.Unfurl(ctx, b.URL)
		if err != nil {
			if b.Title == "" {
				return b, fmt.Errorf("failed to unfurl %s: %w", b.URL, err)
			}
			e.Logger.WithError(err).WithField("url", b.URL).Warn("Unfurl failed, saving as given")
		} else {
			fillFromMeta(&b, meta)
		}
	}
	if b.Format == "" {
		b.Format = "article"
	}
	if b.Category == "" {
		b.Category = "Uncategorized"
	}
	if b.Tags == nil {
		b.Tags = []string{}
	}

	if err := e.Bookmarks.Upsert(ctx, b); err != nil {
		return b, err
	}
	return b, nil
}

func fillFromMeta(b *storage.Bookmark, meta *fetcher.PageMeta) {
	if b.Title == "" {
		b.Title = meta.Title
	}
	if b.Description == "" {
		b.Description = meta.Description
	}
	if b.Author == "" {
		b.Author = meta.Author
		if b.Author == "" {
			b.Author = meta.SiteName
		}
	}
}

// ListBookmarks returns stored bookmarks, newest first.
func (e *Engine) ListBookmarks(ctx context.Context) ([]storage.Bookmark, error) {
	if e.Bookmarks == nil {
		return nil, ErrNoBookmarkStore
	}
	return e.Bookmarks.List(ctx)
}

// ImportFeed stores every item of an RSS/Atom feed as a bookmark and returns
// how many were saved.
func (e *Engine) ImportFeed(ctx context.Context, feedURL string, opts feedimport.Options) (int, error) {
	if e.Bookmarks == nil {
		return 0, ErrNoBookmarkStore
	}
	bookmarks, err := feedimport.Import(ctx, e.FeedParser, feedURL, opts)
	if err != nil {
		return 0, err
	}

	saved := 0
	for _, b := range bookmarks {
		if err := e.Bookmarks.Upsert(ctx, b); err != nil {
			e.Logger.WithError(err).WithField("url", b.URL).Warn("Skipping feed item")
			continue
		}
		saved++
	}
	e.Logger.WithFields(logrus.Fields{"feed": feedURL, "saved": saved, "items": len(bookmarks)}).Info("Feed imported")
	return saved, nil
}

// Snapshot returns a copy of the engine statistics.
func (e *Engine) Snapshot() EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.Stats
}
