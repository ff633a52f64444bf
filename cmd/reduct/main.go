package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/reduct/internal/client"
	"github.com/hyperifyio/reduct/internal/fetch"
	"github.com/hyperifyio/reduct/internal/page"
	"github.com/hyperifyio/reduct/internal/reducer"
)

const (
	minLevel     = 5
	maxLevel     = 80
	defaultLevel = 50
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		inputPath  string
		pageURL    string
		outputPath string
		serverURL  string
		level      int
		prompt     string
		promptFile string
		restore    bool
		verbose    bool
	)

	flag.StringVar(&inputPath, "input", "", "Path to an HTML file to reduce")
	flag.StringVar(&pageURL, "url", "", "URL of a page to fetch and reduce")
	flag.StringVar(&outputPath, "output", "reduced.html", "Path to write the reduced document ('-' for stdout)")
	flag.StringVar(&serverURL, "server", envOr("REDUCT_SERVER", "http://localhost:8000"), "Reduct server base URL")
	flag.IntVar(&level, "level", defaultLevel, "Target size as a percentage of the original (5-80)")
	flag.StringVar(&prompt, "prompt", "", "Custom reduction instruction (may contain {REDUCT_FACTOR})")
	flag.StringVar(&promptFile, "prompt.file", "", "Path to a file containing the custom instruction")
	flag.BoolVar(&restore, "print-restored", false, "After reducing, restore and print the original instead (round-trip check)")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if err := run(inputPath, pageURL, outputPath, serverURL, level, prompt, promptFile, restore); err != nil {
		if errors.Is(err, reducer.ErrCancelled) {
			log.Info().Msg("run cancelled; original page left intact")
			os.Exit(0)
		}
		log.Error().Err(err).Msg("run failed")
		var svcErr *client.ServiceError
		if errors.As(err, &svcErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(inputPath, pageURL, outputPath, serverURL string, level int, prompt, promptFile string, printRestored bool) error {
	ctx := context.Background()

	if (inputPath == "") == (pageURL == "") {
		return errors.New("exactly one of -input or -url is required")
	}

	// Effective range is enforced here, not by the server.
	if level < minLevel || level > maxLevel {
		clamped := level
		if clamped < minLevel {
			clamped = minLevel
		}
		if clamped > maxLevel {
			clamped = maxLevel
		}
		log.Warn().Int("requested", level).Int("effective", clamped).Msg("reduction level clamped")
		level = clamped
	}

	if strings.TrimSpace(promptFile) != "" {
		b, err := os.ReadFile(promptFile)
		if err != nil {
			return fmt.Errorf("read prompt file: %w", err)
		}
		prompt = string(b)
	}
	// Placeholder substitution happens on this side of the boundary so the
	// instruction arrives at the orchestrator fully rendered.
	prompt = client.ExpandPrompt(prompt, level)

	svc := &client.Client{BaseURL: serverURL, UserAgent: "reduct/1.0"}

	// Liveness probe before anything touches the page.
	probeCtx, cancelProbe := context.WithTimeout(ctx, 5*time.Second)
	defer cancelProbe()
	if err := svc.Health(probeCtx); err != nil {
		return fmt.Errorf("reduction service unreachable at %s: %w", serverURL, err)
	}

	pg, err := loadPage(ctx, inputPath, pageURL)
	if err != nil {
		return err
	}

	orch := reducer.New(pg, svc)
	orch.Logger = log.Logger
	orch.OnProgress = func(p reducer.Progress) {
		log.Info().Int("processed", p.Processed).Int("total", p.Total).Msg(p.Note)
	}

	// Ctrl-C requests a cooperative cancel; the run stops at the next
	// segment boundary and restores the page.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; !ok {
			return
		}
		log.Info().Msg("interrupt received; cancelling at next segment boundary")
		if err := orch.Cancel(); err != nil {
			log.Warn().Err(err).Msg("nothing to cancel")
		}
	}()

	if err := orch.Start(ctx, reducer.Options{Level: level, Prompt: prompt}); err != nil {
		return err
	}

	status := orch.Status()
	log.Info().Stringer("state", status.State).Int("segments", status.Total).Msg("reduction finished")

	if printRestored {
		if err := orch.Restore(); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
	}

	out, err := pg.HTML()
	if err != nil {
		return err
	}
	if outputPath == "-" {
		_, err = os.Stdout.WriteString(out)
		return err
	}
	if err := os.WriteFile(outputPath, []byte(out), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	log.Info().Str("path", outputPath).Msg("document written")
	return nil
}

func loadPage(ctx context.Context, inputPath, pageURL string) (*page.Page, error) {
	if inputPath != "" {
		f, err := os.Open(inputPath)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		return page.Load(f)
	}
	fc := &fetch.Client{
		UserAgent:         "reduct/1.0",
		MaxAttempts:       3,
		PerRequestTimeout: 30 * time.Second,
	}
	body, _, err := fc.Get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	return page.LoadString(string(body))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
