package main

import (
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/reduct/internal/llm"
	"github.com/hyperifyio/reduct/internal/server"
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		addr       string
		llmBaseURL string
		llmModel   string
		llmKey     string
		verbose    bool
	)

	flag.StringVar(&addr, "addr", envOr("REDUCT_ADDR", ":8000"), "Listen address")
	flag.StringVar(&llmBaseURL, "llm.base", os.Getenv("LLM_BASE_URL"), "OpenAI-compatible base URL")
	flag.StringVar(&llmModel, "llm.model", os.Getenv("LLM_MODEL"), "Model name")
	flag.StringVar(&llmKey, "llm.key", envOr("LLM_API_KEY", os.Getenv("LLM_KEY")), "API key for OpenAI-compatible server")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if llmModel == "" {
		log.Error().Msg("model name is required (set -llm.model or LLM_MODEL)")
		os.Exit(1)
	}

	srv := &server.Server{
		Client: llm.NewOpenAIProvider(llmBaseURL, llmKey),
		Model:  llmModel,
		Logger: log.Logger,
	}

	log.Info().Str("addr", addr).Str("model", llmModel).Msg("reduct server listening")
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
