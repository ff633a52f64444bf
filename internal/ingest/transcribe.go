package ingest

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/reduct/internal/llm"
)

// Transcriber converts an audio file on disk into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// SpeechTranscriber calls an OpenAI-compatible transcription endpoint.
type SpeechTranscriber struct {
	Client llm.Transcriber
	// Model defaults to whisper-1 when empty.
	Model string
}

func (t *SpeechTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	model := t.Model
	if model == "" {
		model = openai.Whisper1
	}
	resp, err := t.Client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    model,
		FilePath: audioPath,
	})
	if err != nil {
		return "", fmt.Errorf("transcription call: %w", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("transcription returned no text")
	}
	return text, nil
}

// downloadAudio pulls the best audio track of a video into a temp
// directory as MP3 via yt-dlp and returns the file path with a cleanup
// function for the directory.
func downloadAudio(ctx context.Context, videoURL string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "reduct-audio-*")
	if err != nil {
		return "", nil, fmt.Errorf("temp dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	outTemplate := filepath.Join(dir, "audio.%(ext)s")
	cmd := exec.CommandContext(ctx, "yt-dlp",
		"--format", "bestaudio/best",
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "192K",
		"--output", outTemplate,
		videoURL,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("yt-dlp: %w: %s", err, strings.TrimSpace(string(out)))
	}
	audioPath := filepath.Join(dir, "audio.mp3")
	if _, err := os.Stat(audioPath); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("yt-dlp produced no audio file: %w", err)
	}
	return audioPath, cleanup, nil
}
