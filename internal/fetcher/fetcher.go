package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

// ErrDisallowed is returned when robots.txt forbids fetching a page
var ErrDisallowed = errors.New("blocked by robots.txt")

// maxPageBytes bounds how much of a page is read while looking for metadata
const maxPageBytes = 2 << 20

// PageMeta contains the metadata extracted from a webpage
type PageMeta struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Author      string `json:"author"`
	SiteName    string `json:"site_name"`
	StatusCode  int    `json:"status_code"`
}

type Options struct {
	UserAgent     string
	Timeout       time.Duration
	RespectRobots bool
}

type Fetcher struct {
	client    *http.Client
	userAgent string
	robots    *RobotsChecker
}

func NewFetcher(opts Options, logger *logrus.Entry) *Fetcher {
	client := &http.Client{
		Timeout: opts.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	f := &Fetcher{
		client:    client,
		userAgent: opts.UserAgent,
	}
	if opts.RespectRobots {
		f.robots = NewRobotsChecker(client, opts.UserAgent, 24*time.Hour, logger)
	}
	return f
}

// Unfurl downloads a page and extracts its title, description and author
func (f *Fetcher) Unfurl(ctx context.Context, url string) (*PageMeta, error) {
	if f.robots != nil {
		allowed, err := f.robots.Allowed(ctx, url)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("%s: %w", url, ErrDisallowed)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	meta := &PageMeta{
		URL:        url,
		StatusCode: resp.StatusCode,
	}

	if resp.StatusCode != http.StatusOK {
		return meta, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	if err := parseHead(io.LimitReader(resp.Body, maxPageBytes), meta); err != nil {
		return nil, fmt.Errorf("parsing error: %w", err)
	}
	return meta, nil
}

// parseHead walks the document with the tokenizer until </head> or EOF.
func parseHead(body io.Reader, meta *PageMeta) error {
	tokenizer := html.NewTokenizer(body)
	var title strings.Builder
	var ogTitle, ogDescription string
	inTitle := false

	finish := func() {
		meta.Title = cleanText(title.String())
		if meta.Title == "" {
			meta.Title = ogTitle
		}
		if meta.Description == "" {
			meta.Description = ogDescription
		}
	}

	for {
		tokenType := tokenizer.Next()

		switch tokenType {
		case html.ErrorToken:
			if tokenizer.Err() == io.EOF {
				finish()
				return nil
			}
			return tokenizer.Err()

		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			switch token.Data {
			case "title":
				inTitle = tokenType == html.StartTagToken
			case "meta":
				name, content := metaAttrs(token)
				switch name {
				case "description":
					meta.Description = content
				case "og:description":
					ogDescription = content
				case "og:title":
					ogTitle = content
				case "author", "article:author":
					if meta.Author == "" {
						meta.Author = content
					}
				case "og:site_name":
					meta.SiteName = content
				}
			case "body":
				finish()
				return nil
			}

		case html.EndTagToken:
			token := tokenizer.Token()
			switch token.Data {
			case "title":
				inTitle = false
			case "head":
				finish()
				return nil
			}

		case html.TextToken:
			if inTitle {
				title.Write(tokenizer.Text())
			}
		}
	}
}

// metaAttrs returns the lower-cased name or property of a meta tag and its content.
func metaAttrs(token html.Token) (string, string) {
	var name, content string
	for _, attr := range token.Attr {
		switch attr.Key {
		case "name", "property":
			if name == "" {
				name = strings.ToLower(strings.TrimSpace(attr.Val))
			}
		case "content":
			content = cleanText(attr.Val)
		}
	}
	return name, content
}

// cleanText removes excessive whitespace
func cleanText(input string) string {
	return strings.Join(strings.Fields(input), " ")
}
