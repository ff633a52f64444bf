// Package ingest pulls content from internet sources into the archive:
// web pages through readability extraction, and YouTube videos or audio
// files through external speech-to-text.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/pemistahl/lingua-go"
	"github.com/rs/zerolog"

	"github.com/hyperifyio/reduct/internal/archive"
	"github.com/hyperifyio/reduct/internal/fetch"
)

// Source names one thing to ingest.
type Source struct {
	URL  string
	Name string
}

// Ingestor wires the fetcher, the transcriber, and the archive together.
type Ingestor struct {
	Fetch       *fetch.Client
	Store       *archive.Store
	Transcriber Transcriber
	Logger      zerolog.Logger

	// detector is built lazily; language detection is best effort and an
	// absent result simply leaves the metadata field empty.
	detector lingua.LanguageDetector
}

// detectorLanguages bounds the model set loaded by lingua; detection
// quality degrades gracefully for anything outside it.
var detectorLanguages = []lingua.Language{
	lingua.English, lingua.Finnish, lingua.Swedish, lingua.German,
	lingua.French, lingua.Spanish, lingua.Italian, lingua.Portuguese,
}

func (i *Ingestor) languageOf(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if i.detector == nil {
		i.detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(detectorLanguages...).
			Build()
	}
	lang, ok := i.detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}

// Web fetches a page, extracts its readable article text, and archives it.
// It returns the slug of the saved entry.
func (i *Ingestor) Web(ctx context.Context, rawURL string) (string, error) {
	body, _, err := i.Fetch.Get(ctx, rawURL)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	parser := readability.NewParser()
	article, err := parser.Parse(bytes.NewReader(body), parsedURL)
	if err != nil {
		return "", fmt.Errorf("extract article: %w", err)
	}
	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = parsedURL.Host + parsedURL.Path
	}
	text := strings.TrimSpace(article.TextContent)
	entry := archive.Entry{
		Meta: archive.Meta{
			Title:    title,
			URL:      rawURL,
			Kind:     archive.KindWeb,
			Language: i.languageOf(text),
		},
		Text: text,
		HTML: string(body),
	}
	entry.Slug = archive.Slugify(title)
	if err := i.Store.Save(ctx, entry); err != nil {
		return "", err
	}
	i.Logger.Info().Str("slug", entry.Slug).Int("words", len(strings.Fields(text))).Msg("web page archived")
	return entry.Slug, nil
}

// Audio transcribes a local audio file and archives the transcript.
func (i *Ingestor) Audio(ctx context.Context, path, name string) (string, error) {
	if i.Transcriber == nil {
		return "", fmt.Errorf("audio ingestion requires a transcriber")
	}
	text, err := i.Transcriber.Transcribe(ctx, path)
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", path, err)
	}
	entry := archive.Entry{
		Slug: archive.Slugify(name),
		Meta: archive.Meta{
			Title:    name,
			Kind:     archive.KindAudio,
			Language: i.languageOf(text),
		},
		Text: text,
	}
	if err := i.Store.Save(ctx, entry); err != nil {
		return "", err
	}
	i.Logger.Info().Str("slug", entry.Slug).Msg("audio transcript archived")
	return entry.Slug, nil
}

// YouTube downloads a video's audio track, transcribes it, and archives
// the transcript under the source's name.
func (i *Ingestor) YouTube(ctx context.Context, src Source) (string, error) {
	if i.Transcriber == nil {
		return "", fmt.Errorf("youtube ingestion requires a transcriber")
	}
	audioPath, cleanup, err := downloadAudio(ctx, src.URL)
	if err != nil {
		return "", fmt.Errorf("download audio for %s: %w", src.URL, err)
	}
	defer cleanup()
	text, err := i.Transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", src.URL, err)
	}
	entry := archive.Entry{
		Slug: archive.Slugify(src.Name),
		Meta: archive.Meta{
			Title:    src.Name,
			URL:      src.URL,
			Kind:     archive.KindYouTube,
			Language: i.languageOf(text),
		},
		Text: text,
	}
	if err := i.Store.Save(ctx, entry); err != nil {
		return "", err
	}
	i.Logger.Info().Str("slug", entry.Slug).Str("url", src.URL).Msg("youtube transcript archived")
	return entry.Slug, nil
}
