package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "archive"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	fetched := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	in := Entry{
		Meta: Meta{
			Title:     "Software Is Changing (Again)",
			URL:       "https://example.com/talk",
			Kind:      KindYouTube,
			Language:  "en",
			FetchedAt: fetched,
		},
		Text: "the quick brown fox jumps over the lazy dog",
	}
	if err := store.Save(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}

	slug := Slugify(in.Meta.Title)
	got, err := store.Load(ctx, slug)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Meta.Title != in.Meta.Title || got.Meta.URL != in.Meta.URL || got.Meta.Kind != KindYouTube {
		t.Fatalf("metadata mismatch: %+v", got.Meta)
	}
	if got.Meta.Language != "en" {
		t.Fatalf("language = %q", got.Meta.Language)
	}
	if !got.Meta.FetchedAt.Equal(fetched) {
		t.Fatalf("fetchedAt = %v, want %v", got.Meta.FetchedAt, fetched)
	}
	if got.Text != in.Text {
		t.Fatalf("text mismatch: %q", got.Text)
	}
	if got.Meta.WordCount != 9 {
		t.Fatalf("word count = %d, want 9", got.Meta.WordCount)
	}

	// The entry owns a directory with the yaml and content files.
	entryDir := filepath.Join(store.Dir(), slug)
	for _, name := range []string{"meta.yaml", "content.txt"} {
		if _, err := os.Stat(filepath.Join(entryDir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
}

func TestSaveStoresOriginalHTML(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	in := Entry{
		Meta: Meta{Title: "A Page", Kind: KindWeb},
		Text: "extracted text",
		HTML: "<html><body><p>extracted text</p></body></html>",
	}
	if err := store.Save(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load(ctx, "a-page")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.HTML != in.HTML {
		t.Fatalf("html mismatch: %q", got.HTML)
	}
}

func TestSaveUpsertsIndex(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	e := Entry{Meta: Meta{Title: "Same Title", Kind: KindWeb}, Text: "first version"}
	if err := store.Save(ctx, e); err != nil {
		t.Fatalf("first save: %v", err)
	}
	e.Text = "second version with more words"
	e.Meta.WordCount = 0 // recomputed on save
	if err := store.Save(ctx, e); err != nil {
		t.Fatalf("second save: %v", err)
	}
	listings, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("expected a single index row, got %d", len(listings))
	}
	if listings[0].WordCount != 5 {
		t.Fatalf("word count not updated: %d", listings[0].WordCount)
	}
}

func TestListOrdersByRecency(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	older := Entry{Meta: Meta{Title: "Older", Kind: KindWeb, FetchedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}, Text: "a"}
	newer := Entry{Meta: Meta{Title: "Newer", Kind: KindAudio, FetchedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)}, Text: "b"}
	for _, e := range []Entry{older, newer} {
		if err := store.Save(ctx, e); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	listings, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listings) != 2 || listings[0].Slug != "newer" || listings[1].Slug != "older" {
		t.Fatalf("unexpected order: %+v", listings)
	}
}

func TestLoadMissingEntry(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.Load(context.Background(), "no-such-entry"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Andrej Karpathy: Software Is Changing (Again)", "andrej-karpathy-software-is-changing-again"},
		{"  Leading and trailing  ", "leading-and-trailing"},
		{"already-a-slug", "already-a-slug"},
		{"Ünïcode Títle", "n-code-t-tle"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Fatalf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
