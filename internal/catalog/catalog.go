package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/portfolio-site/backend/internal/search"
)

// Kind distinguishes the post collections
type Kind string

const (
	KindArticle Kind = "article"
	KindNote    Kind = "note"
)

// ErrNotFound is returned for unknown slugs
var ErrNotFound = errors.New("catalog: not found")

// Resource is a bookmarked external article. The resource list is the
// catalog the daily digest picks from.
type Resource struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Format      string   `json:"format"`
	URL         string   `json:"url"`
	Author      string   `json:"author"`
	Tags        []string `json:"tags"`
}

// Post is the metadata of an article or a note.
type Post struct {
	Slug     string `json:"slug"`
	Title    string `json:"title"`
	Date     string `json:"date"`
	Excerpt  string `json:"excerpt"`
	ReadTime string `json:"readTime,omitempty"`
}

// PostContent is a post together with its markdown body.
type PostContent struct {
	Post
	Kind       Kind   `json:"type"`
	Markdown   string `json:"markdown"`
	HasContent bool   `json:"has_content"`
}

// Catalog is loaded once at startup and never mutated afterwards.
type Catalog struct {
	dir       string
	resources []Resource
	articles  []Post
	notes     []Post
}

// Load reads resources.json, articles.json and notes.json from dir. Missing
// files yield empty collections; malformed files are an error.
func Load(dir string) (*Catalog, error) {
	c := &Catalog{dir: dir}

	if err := readJSON(filepath.Join(dir, "resources.json"), &c.resources); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, "articles.json"), &c.articles); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, "notes.json"), &c.notes); err != nil {
		return nil, err
	}
	return c, nil
}

// New builds an in-memory catalog without markdown bodies.
func New(resources []Resource, articles, notes []Post) *Catalog {
	return &Catalog{resources: resources, articles: articles, notes: notes}
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// Resources returns the resource catalog in source order.
func (c *Catalog) Resources() []Resource {
	return c.resources
}

func (c *Catalog) Articles() []Post {
	return c.articles
}

func (c *Catalog) Notes() []Post {
	return c.notes
}

func (c *Catalog) posts(kind Kind) ([]Post, error) {
	switch kind {
	case KindArticle:
		return c.articles, nil
	case KindNote:
		return c.notes, nil
	}
	return nil, fmt.Errorf("unknown kind %q: %w", kind, ErrNotFound)
}

// Post finds a post by slug.
func (c *Catalog) Post(kind Kind, slug string) (Post, error) {
	posts, err := c.posts(kind)
	if err != nil {
		return Post{}, err
	}
	for _, p := range posts {
		if p.Slug == slug {
			return p, nil
		}
	}
	return Post{}, fmt.Errorf("%s %q: %w", kind, slug, ErrNotFound)
}

var slugPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// Content returns the post and its markdown body from <dir>/<kind>s/<slug>.md.
// A post without a markdown file is returned with HasContent false.
func (c *Catalog) Content(kind Kind, slug string) (PostContent, error) {
	p, err := c.Post(kind, slug)
	if err != nil {
		return PostContent{}, err
	}
	pc := PostContent{Post: p, Kind: kind}
	if c.dir == "" || !slugPattern.MatchString(slug) {
		return pc, nil
	}

	data, err := os.ReadFile(filepath.Join(c.dir, string(kind)+"s", slug+".md"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return pc, nil
		}
		return PostContent{}, fmt.Errorf("failed to read content: %w", err)
	}
	pc.Markdown = string(data)
	pc.HasContent = true
	return pc, nil
}

// AllCategory selects every resource.
const AllCategory = "All"

// Categories returns "All" followed by each distinct resource category in
// first-seen order.
func (c *Catalog) Categories() []string {
	cats := []string{AllCategory}
	seen := make(map[string]bool)
	for _, r := range c.resources {
		if !seen[r.Category] {
			seen[r.Category] = true
			cats = append(cats, r.Category)
		}
	}
	return cats
}

// staticPages are the site sections offered by the command palette.
var staticPages = []search.Entry{
	{Slug: "articles", Title: "Articles", Excerpt: "In-depth articles on building scalable systems", Type: search.TypePage, Path: "/articles"},
	{Slug: "notes", Title: "Notes", Excerpt: "Quick thoughts, learnings, and observations", Type: search.TypePage, Path: "/notes"},
	{Slug: "projects", Title: "Projects", Excerpt: "A collection of projects showcasing my work", Type: search.TypePage, Path: "/projects"},
	{Slug: "about", Title: "About", Excerpt: "Learn more about me and get in touch", Type: search.TypePage, Path: "/about"},
}

// SearchEntries merges pages, articles and notes in palette display order.
func (c *Catalog) SearchEntries() []search.Entry {
	entries := make([]search.Entry, 0, len(staticPages)+len(c.articles)+len(c.notes))
	entries = append(entries, staticPages...)
	for _, a := range c.articles {
		entries = append(entries, postEntry(a, search.TypeArticle, "/articles/"))
	}
	for _, n := range c.notes {
		entries = append(entries, postEntry(n, search.TypeNote, "/notes/"))
	}
	return entries
}

func postEntry(p Post, typ, prefix string) search.Entry {
	return search.Entry{
		Slug:    p.Slug,
		Title:   p.Title,
		Excerpt: p.Excerpt,
		Type:    typ,
		Date:    p.Date,
		Path:    prefix + p.Slug,
	}
}
