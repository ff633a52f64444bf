// Package archive is the structured on-disk store for ingested content.
// Each entry owns a directory named by its slug, holding the content file
// and a meta.yaml; a SQLite index at the archive root serves listing and
// lookup.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"
)

// Kind classifies the origin of an entry.
type Kind string

const (
	KindWeb     Kind = "web"
	KindYouTube Kind = "youtube"
	KindAudio   Kind = "audio"
)

// Meta is the per-entry metadata persisted as meta.yaml.
type Meta struct {
	Title     string    `yaml:"title"`
	URL       string    `yaml:"url,omitempty"`
	Kind      Kind      `yaml:"kind"`
	Language  string    `yaml:"language,omitempty"`
	WordCount int       `yaml:"wordCount"`
	FetchedAt time.Time `yaml:"fetchedAt"`
}

// Entry is one archived document.
type Entry struct {
	Slug string
	Meta Meta
	Text string
	// HTML, when non-empty, is the original page markup stored alongside
	// the extracted text.
	HTML string
}

// ErrNotFound is returned when a slug has no entry.
var ErrNotFound = errors.New("archive: entry not found")

const (
	dbName       = "reduct.db"
	metaName     = "meta.yaml"
	contentName  = "content.txt"
	pageHTMLName = "page.html"
)

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS entries (
	slug TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	url TEXT,
	kind TEXT NOT NULL,
	language TEXT,
	word_count INTEGER NOT NULL DEFAULT 0,
	fetched_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_kind ON entries(kind);
`

// Store is an open archive rooted at a directory.
type Store struct {
	dir string
	db  *sql.DB
}

// Open creates the archive directory if needed and opens its index.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, dbName))
	if err != nil {
		return nil, fmt.Errorf("open archive index: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize archive schema: %w", err)
	}
	return &Store{dir: dir, db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Dir returns the archive root directory.
func (s *Store) Dir() string { return s.dir }

// Save writes the entry's files and upserts its index row. A missing slug
// is derived from the title.
func (s *Store) Save(ctx context.Context, e Entry) error {
	if e.Slug == "" {
		e.Slug = Slugify(e.Meta.Title)
	}
	if e.Slug == "" {
		return errors.New("archive: entry needs a slug or a title")
	}
	if e.Meta.FetchedAt.IsZero() {
		e.Meta.FetchedAt = time.Now().UTC()
	}
	if e.Meta.WordCount == 0 {
		e.Meta.WordCount = len(strings.Fields(e.Text))
	}

	entryDir := filepath.Join(s.dir, e.Slug)
	if err := os.MkdirAll(entryDir, 0o755); err != nil {
		return fmt.Errorf("create entry dir: %w", err)
	}
	metaBytes, err := yaml.Marshal(e.Meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(entryDir, metaName), metaBytes, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(entryDir, contentName), []byte(e.Text), 0o644); err != nil {
		return fmt.Errorf("write content: %w", err)
	}
	if e.HTML != "" {
		if err := os.WriteFile(filepath.Join(entryDir, pageHTMLName), []byte(e.HTML), 0o644); err != nil {
			return fmt.Errorf("write page html: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entries (slug, title, url, kind, language, word_count, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			title = excluded.title,
			url = excluded.url,
			kind = excluded.kind,
			language = excluded.language,
			word_count = excluded.word_count,
			fetched_at = excluded.fetched_at`,
		e.Slug, e.Meta.Title, e.Meta.URL, string(e.Meta.Kind), e.Meta.Language,
		e.Meta.WordCount, e.Meta.FetchedAt)
	if err != nil {
		return fmt.Errorf("index entry: %w", err)
	}
	return nil
}

// Load reads one entry back from disk.
func (s *Store) Load(ctx context.Context, slug string) (Entry, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM entries WHERE slug = ?`, slug).Scan(&exists)
	if err != nil {
		return Entry{}, fmt.Errorf("query index: %w", err)
	}
	if exists == 0 {
		return Entry{}, ErrNotFound
	}
	entryDir := filepath.Join(s.dir, slug)
	metaBytes, err := os.ReadFile(filepath.Join(entryDir, metaName))
	if err != nil {
		return Entry{}, fmt.Errorf("read metadata: %w", err)
	}
	var meta Meta
	if err := yaml.Unmarshal(metaBytes, &meta); err != nil {
		return Entry{}, fmt.Errorf("decode metadata: %w", err)
	}
	text, err := os.ReadFile(filepath.Join(entryDir, contentName))
	if err != nil {
		return Entry{}, fmt.Errorf("read content: %w", err)
	}
	e := Entry{Slug: slug, Meta: meta, Text: string(text)}
	if raw, err := os.ReadFile(filepath.Join(entryDir, pageHTMLName)); err == nil {
		e.HTML = string(raw)
	}
	return e, nil
}

// Listing is one row of the archive index.
type Listing struct {
	Slug      string
	Title     string
	Kind      Kind
	Language  string
	WordCount int
	FetchedAt time.Time
}

// List returns all entries ordered most recent first.
func (s *Store) List(ctx context.Context) ([]Listing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT slug, title, kind, COALESCE(language, ''), word_count, fetched_at
		FROM entries ORDER BY fetched_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()
	var out []Listing
	for rows.Next() {
		var l Listing
		var kind string
		if err := rows.Scan(&l.Slug, &l.Title, &kind, &l.Language, &l.WordCount, &l.FetchedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		l.Kind = Kind(kind)
		out = append(out, l)
	}
	return out, rows.Err()
}

// Slugify derives a filesystem- and URL-safe slug from a title.
func Slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
