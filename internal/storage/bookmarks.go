package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ErrInvalidBookmark is returned when a bookmark misses its url or title
var ErrInvalidBookmark = errors.New("invalid bookmark")

// Bookmark is a saved external resource
type Bookmark struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Format      string    `json:"format"`
	URL         string    `json:"url"`
	Author      string    `json:"author"`
	Tags        []string  `json:"tags"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

// ValidateURL accepts only absolute http(s) URLs.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be an absolute http(s) URL", ErrInvalidBookmark)
	}
	return nil
}

// Validate checks the fields the table requires.
func (b Bookmark) Validate() error {
	if err := ValidateURL(b.URL); err != nil {
		return err
	}
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidBookmark)
	}
	return nil
}

// BookmarkStore defines the interface for persisting bookmarks
type BookmarkStore interface {
	Upsert(ctx context.Context, b Bookmark) error
	List(ctx context.Context) ([]Bookmark, error)
	Close() error
}

type dialect struct {
	driver string
	schema string
	upsert string
	// nativeTags stores tags as text[]; otherwise they are JSON text.
	nativeTags bool
}

var (
	postgresDialect = dialect{
		driver: "postgres",
		schema: `create table if not exists bookmarks (
			id bigserial primary key,
			url text not null unique,
			title text not null,
			description text not null,
			category text not null,
			format text not null,
			author text not null,
			tags text[] not null default '{}',
			created_at timestamptz not null default now()
		)`,
		upsert: `insert into bookmarks (url, title, description, category, format, author, tags)
			values ($1, $2, $3, $4, $5, $6, $7)`,
		nativeTags: true,
	}
	sqliteDialect = dialect{
		driver: "sqlite",
		schema: `create table if not exists bookmarks (
			id integer primary key autoincrement,
			url text not null unique,
			title text not null,
			description text not null,
			category text not null,
			format text not null,
			author text not null,
			tags text not null default '[]',
			created_at datetime not null default current_timestamp
		)`,
		upsert: `insert into bookmarks (url, title, description, category, format, author, tags)
			values (?, ?, ?, ?, ?, ?, ?)`,
	}
)

const onConflict = `
	on conflict (url) do update set
		title = excluded.title,
		description = excluded.description,
		category = excluded.category,
		format = excluded.format,
		author = excluded.author,
		tags = excluded.tags`

const listQuery = `select title, description, category, format, url, author, tags, created_at
	from bookmarks
	order by created_at desc, id desc`

// SQLStore implements BookmarkStore on Postgres or SQLite
type SQLStore struct {
	db      *sql.DB
	dialect dialect

	mu         sync.Mutex
	tableReady bool
}

// OpenSQLStore opens the bookmark database. postgres:// and postgresql:// URLs
// use Postgres; anything else is treated as a SQLite path (":memory:" works).
func OpenSQLStore(databaseURL string) (*SQLStore, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	d := sqliteDialect
	dsn := strings.TrimPrefix(databaseURL, "sqlite://")
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		d = postgresDialect
		dsn = databaseURL
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", d.driver, err)
	}
	if d.driver == "sqlite" {
		// a single connection keeps :memory: databases shared and writes serialized
		db.SetMaxOpenConns(1)
	}
	return &SQLStore{db: db, dialect: d}, nil
}

// Dialect reports the SQL driver in use.
func (s *SQLStore) Dialect() string {
	return s.dialect.driver
}

func (s *SQLStore) ensureTable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tableReady {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("failed to create bookmarks table: %w", err)
	}
	s.tableReady = true
	return nil
}

// Upsert inserts the bookmark or updates the row with the same url.
func (s *SQLStore) Upsert(ctx context.Context, b Bookmark) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if err := s.ensureTable(ctx); err != nil {
		return err
	}

	tags, err := s.dialect.encodeTags(b.Tags)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, s.dialect.upsert+onConflict,
		b.URL, b.Title, b.Description, b.Category, b.Format, b.Author, tags)
	if err != nil {
		return fmt.Errorf("failed to upsert bookmark: %w", err)
	}
	return nil
}

// List returns all bookmarks, newest first.
func (s *SQLStore) List(ctx context.Context) ([]Bookmark, error) {
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, listQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	defer rows.Close()

	bookmarks := make([]Bookmark, 0)
	for rows.Next() {
		var b Bookmark
		var tags interface{}
		var createdAt time.Time
		if err := rows.Scan(&b.Title, &b.Description, &b.Category, &b.Format, &b.URL, &b.Author, &tags, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		b.CreatedAt = &createdAt
		if b.Tags, err = s.dialect.decodeTags(tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags for %s: %w", b.URL, err)
		}
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, rows.Err()
}

// encodeTags returns the tags column argument for the dialect.
func (d dialect) encodeTags(tags []string) (interface{}, error) {
	if tags == nil {
		tags = []string{}
	}
	if d.nativeTags {
		return pq.Array(tags), nil
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}
	return string(encoded), nil
}

// decodeTags reads a scanned tags column back into a slice, never nil.
func (d dialect) decodeTags(src interface{}) ([]string, error) {
	tags := []string{}
	if d.nativeTags {
		var arr pq.StringArray
		if err := arr.Scan(src); err != nil {
			return nil, err
		}
		return append(tags, arr...), nil
	}

	var raw []byte
	switch v := src.(type) {
	case nil:
		return tags, nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return nil, fmt.Errorf("unexpected tags column type %T", src)
	}
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
