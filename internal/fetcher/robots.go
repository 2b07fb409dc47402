package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// robotsEntry caches robots.txt data for one host
type robotsEntry struct {
	robots    *robotstxt.RobotsData
	fetchTime time.Time
}

// RobotsChecker answers whether a URL may be fetched according to its host's
// robots.txt. Results are cached per scheme+host for ttl.
type RobotsChecker struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration
	logger    *logrus.Entry

	mu    sync.RWMutex
	cache map[string]*robotsEntry
}

func NewRobotsChecker(client *http.Client, userAgent string, ttl time.Duration, logger *logrus.Entry) *RobotsChecker {
	if logger == nil {
		logger = logrus.WithField("component", "robots")
	}
	return &RobotsChecker{
		client:    client,
		userAgent: userAgent,
		ttl:       ttl,
		logger:    logger,
		cache:     make(map[string]*robotsEntry),
	}
}

// Allowed checks rawURL against robots.txt. Fetch failures allow the request.
func (rc *RobotsChecker) Allowed(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("invalid URL: %w", err)
	}

	robots, err := rc.robotsFor(ctx, u)
	if err != nil {
		rc.logger.WithError(err).WithField("domain", u.Host).Warn("Failed to get robots.txt, allowing request")
		return true, nil
	}
	if robots == nil {
		return true, nil
	}

	group := robots.FindGroup(rc.userAgent)
	if group == nil {
		return true, nil
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return group.Test(path), nil
}

func (rc *RobotsChecker) robotsFor(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	key := u.Scheme + "://" + u.Host

	rc.mu.RLock()
	entry, exists := rc.cache[key]
	rc.mu.RUnlock()
	if exists && time.Since(entry.fetchTime) < rc.ttl {
		return entry.robots, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create robots.txt request: %w", err)
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := rc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	var robots *robotstxt.RobotsData
	if resp.StatusCode == http.StatusOK {
		robots, err = robotstxt.FromResponse(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to parse robots.txt: %w", err)
		}
	}

	// 404s are cached as nil too
	rc.mu.Lock()
	rc.cache[key] = &robotsEntry{robots: robots, fetchTime: time.Now()}
	rc.mu.Unlock()

	return robots, nil
}
