// Package server implements the reduct HTTP API: a health probe and a
// single endpoint that forwards a page-reduction request to a chat model.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/reduct/internal/client"
	"github.com/hyperifyio/reduct/internal/llm"
)

// DefaultLevel is applied when a request omits the reduction level.
const DefaultLevel = 50

// Server forwards reduction requests to one chat model.
type Server struct {
	Client llm.Client
	Model  string
	Logger zerolog.Logger
}

// Handler returns the HTTP surface. Responses carry permissive CORS
// headers so a browser extension can call the endpoints directly.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/reduce", s.handleReduce)
	return withCORS(mux)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type healthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := healthResponse{Status: "healthy", Model: s.Model}
	switch {
	case strings.TrimSpace(s.Model) == "":
		resp = healthResponse{Status: "unhealthy", Error: "model not configured"}
	case s.Client == nil:
		resp = healthResponse{Status: "unhealthy", Error: "LLM client not configured"}
	}
	writeJSON(w, http.StatusOK, resp)
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleReduce(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req client.ReductionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: fmt.Sprintf("decode request: %v", err)})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "text is required"})
		return
	}
	level := req.ReductionLevel
	if level == 0 {
		level = DefaultLevel
	}

	prompt := BuildPrompt(req.Prompt, level)
	s.Logger.Debug().Int("level", level).Int("chars", len(req.Text)).Msg("forwarding reduction to model")

	reduced, err := s.transform(r.Context(), req.Text, prompt)
	if err != nil {
		s.Logger.Error().Err(err).Msg("reduction failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
		return
	}

	originalWords := len(strings.Fields(req.Text))
	reducedWords := len(strings.Fields(reduced))
	var pct float64
	if originalWords > 0 {
		pct = math.Round((1-float64(reducedWords)/float64(originalWords))*1000) / 10
	}
	writeJSON(w, http.StatusOK, client.ReductionResponse{
		ReducedText:         reduced,
		OriginalLength:      originalWords,
		ReducedLength:       reducedWords,
		ReductionPercentage: pct,
	})
}

// transform sends the instruction as the system message and the page text as
// the user message, returning the model's bare output.
func (s *Server) transform(ctx context.Context, text, prompt string) (string, error) {
	if s.Client == nil || strings.TrimSpace(s.Model) == "" {
		return "", errors.New("server not configured with a model")
	}
	resp, err := s.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.1,
		N:           1,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", errors.New("model returned empty content")
	}
	return out, nil
}

// BuildPrompt returns the instruction for one reduction call. A custom
// prompt gets its placeholder substituted; otherwise the default template
// is rendered for the level. The tag list is only a hint to the model;
// the page-side sanitizer enforces the allow list.
func BuildPrompt(custom string, level int) string {
	if strings.TrimSpace(custom) != "" {
		return client.ExpandPrompt(custom, level)
	}
	return fmt.Sprintf("Reduce this text to approximately %d%% of its original length. "+
		"Remove filler, redundancy, and verbose explanations while retaining all meaningful "+
		"semantic content, key points, and factual information. Maintain the original tone "+
		"and style. Output as clean HTML using these tags: <p>, <ul>, <ol>, <li>, <strong>, "+
		"<em>, <h3>, <blockquote>, <details>, <summary>. "+
		"Use <details><summary>Title</summary>content</details> for less important information. "+
		"IMPORTANT: Output ONLY the HTML without any introduction, wrapper tags, or commentary.", level)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
