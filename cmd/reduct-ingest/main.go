package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/reduct/internal/archive"
	"github.com/hyperifyio/reduct/internal/export"
	"github.com/hyperifyio/reduct/internal/fetch"
	"github.com/hyperifyio/reduct/internal/ingest"
	"github.com/hyperifyio/reduct/internal/llm"
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		archiveDir string
		webURL     string
		audioPath  string
		youtubeURL string
		name       string
		listAll    bool
		exportSlug string
		exportPath string
		llmBaseURL string
		llmKey     string
		sttModel   string
		verbose    bool
	)

	flag.StringVar(&archiveDir, "archive", envOr("REDUCT_ARCHIVE", "archive"), "Archive directory")
	flag.StringVar(&webURL, "url", "", "Web page URL to ingest")
	flag.StringVar(&audioPath, "audio", "", "Local audio file to transcribe and ingest")
	flag.StringVar(&youtubeURL, "youtube", "", "YouTube video URL to download, transcribe, and ingest")
	flag.StringVar(&name, "name", "", "Display name for audio/youtube sources")
	flag.BoolVar(&listAll, "list", false, "List archive entries")
	flag.StringVar(&exportSlug, "export.slug", "", "Slug of an entry to export as PDF")
	flag.StringVar(&exportPath, "export.pdf", "", "Output path for the PDF export")
	flag.StringVar(&llmBaseURL, "llm.base", os.Getenv("LLM_BASE_URL"), "OpenAI-compatible base URL for transcription")
	flag.StringVar(&llmKey, "llm.key", envOr("LLM_API_KEY", os.Getenv("LLM_KEY")), "API key for the transcription endpoint")
	flag.StringVar(&sttModel, "stt.model", os.Getenv("STT_MODEL"), "Speech-to-text model (default whisper-1)")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if err := run(archiveDir, webURL, audioPath, youtubeURL, name, listAll, exportSlug, exportPath, llmBaseURL, llmKey, sttModel); err != nil {
		log.Error().Err(err).Msg("ingest failed")
		os.Exit(1)
	}
}

func run(archiveDir, webURL, audioPath, youtubeURL, name string, listAll bool, exportSlug, exportPath, llmBaseURL, llmKey, sttModel string) error {
	ctx := context.Background()

	store, err := archive.Open(archiveDir)
	if err != nil {
		return err
	}
	defer store.Close()

	if listAll {
		entries, err := store.List(ctx)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%-40s %-8s %-5s %6d words  %s\n",
				e.Slug, e.Kind, e.Language, e.WordCount, e.FetchedAt.Format(time.RFC3339))
		}
		return nil
	}

	if exportSlug != "" {
		if exportPath == "" {
			exportPath = exportSlug + ".pdf"
		}
		entry, err := store.Load(ctx, exportSlug)
		if err != nil {
			return err
		}
		if err := export.WritePDF(entry.Meta.Title, entry.Text, exportPath); err != nil {
			return err
		}
		log.Info().Str("path", exportPath).Msg("pdf written")
		return nil
	}

	ing := &ingest.Ingestor{
		Fetch: &fetch.Client{
			UserAgent:         "reduct/1.0",
			MaxAttempts:       3,
			PerRequestTimeout: 30 * time.Second,
		},
		Store:  store,
		Logger: log.Logger,
	}
	if audioPath != "" || youtubeURL != "" {
		ing.Transcriber = &ingest.SpeechTranscriber{
			Client: llm.NewOpenAIProvider(llmBaseURL, llmKey),
			Model:  sttModel,
		}
	}

	switch {
	case webURL != "":
		slug, err := ing.Web(ctx, webURL)
		if err != nil {
			return err
		}
		fmt.Println(slug)
		return nil
	case audioPath != "":
		if name == "" {
			name = audioPath
		}
		slug, err := ing.Audio(ctx, audioPath, name)
		if err != nil {
			return err
		}
		fmt.Println(slug)
		return nil
	case youtubeURL != "":
		if name == "" {
			return errors.New("-name is required with -youtube")
		}
		slug, err := ing.YouTube(ctx, ingest.Source{URL: youtubeURL, Name: name})
		if err != nil {
			return err
		}
		fmt.Println(slug)
		return nil
	}
	return errors.New("nothing to do: pass -url, -audio, -youtube, -list, or -export.slug")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
