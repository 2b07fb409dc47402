// Package feedimport turns RSS and Atom feeds into bookmarks.
package feedimport

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"

	"github.com/portfolio-site/backend/internal/storage"
)

// Parser is the part of gofeed.Parser used here
type Parser interface {
	ParseURLWithContext(feedURL string, ctx context.Context) (*gofeed.Feed, error)
}

// Options control how feed items map onto bookmarks
type Options struct {
	Category string
	Format   string
	Limit    int
}

// Import fetches feedURL and returns one bookmark per item with a link.
// Items keep feed order; Limit <= 0 keeps all of them.
func Import(ctx context.Context, parser Parser, feedURL string, opts Options) ([]storage.Bookmark, error) {
	if parser == nil {
		parser = gofeed.NewParser()
	}
	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", feedURL, err)
	}
	return FromFeed(feed, opts), nil
}

// FromFeed maps parsed feed items to bookmarks.
func FromFeed(feed *gofeed.Feed, opts Options) []storage.Bookmark {
	format := opts.Format
	if format == "" {
		format = "article"
	}
	category := opts.Category
	if category == "" {
		category = feed.Title
	}

	bookmarks := make([]storage.Bookmark, 0, len(feed.Items))
	for _, item := range feed.Items {
		if opts.Limit > 0 && len(bookmarks) >= opts.Limit {
			break
		}
		link := strings.TrimSpace(item.Link)
		if link == "" {
			continue
		}
		bookmarks = append(bookmarks, storage.Bookmark{
			Title:       strings.TrimSpace(item.Title),
			Description: summary(item),
			Category:    category,
			Format:      format,
			URL:         link,
			Author:      author(item, feed),
			Tags:        tags(item),
		})
	}
	return bookmarks
}

// maxSummaryBytes caps imported descriptions
const maxSummaryBytes = 280

func summary(item *gofeed.Item) string {
	desc := strings.Join(strings.Fields(item.Description), " ")
	if len(desc) <= maxSummaryBytes {
		return desc
	}
	cut := maxSummaryBytes
	for cut > 0 && !utf8.RuneStart(desc[cut]) {
		cut--
	}
	return strings.TrimSpace(desc[:cut]) + "..."
}

func author(item *gofeed.Item, feed *gofeed.Feed) string {
	for _, people := range [][]*gofeed.Person{item.Authors, feed.Authors} {
		for _, p := range people {
			if p != nil && p.Name != "" {
				return p.Name
			}
		}
	}
	return feed.Title
}

func tags(item *gofeed.Item) []string {
	out := make([]string, 0, len(item.Categories))
	seen := make(map[string]bool)
	for _, c := range item.Categories {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
