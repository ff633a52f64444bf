package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/reduct/internal/client"
)

// fakeLLM returns a canned completion and records the request.
type fakeLLM struct {
	got  openai.ChatCompletionRequest
	text string
	err  error
}

func (f *fakeLLM) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.got = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.text}},
		},
	}, nil
}

func postReduce(t *testing.T, h http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/reduce", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestReduceDefaultPrompt(t *testing.T) {
	fake := &fakeLLM{text: "<p>one two three four five</p>"}
	srv := &Server{Client: fake, Model: "test-model"}

	text := "one two three four five six seven eight nine ten"
	rec := postReduce(t, srv.Handler(), client.ReductionRequest{Text: text, ReductionLevel: 40})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if fake.got.Model != "test-model" {
		t.Fatalf("model = %q", fake.got.Model)
	}
	if len(fake.got.Messages) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(fake.got.Messages))
	}
	system := fake.got.Messages[0].Content
	if !strings.Contains(system, "approximately 40%") {
		t.Fatalf("default prompt missing level: %q", system)
	}
	if !strings.Contains(system, "<p>") || !strings.Contains(system, "<details>") {
		t.Fatalf("default prompt missing tag hint: %q", system)
	}
	if fake.got.Messages[1].Content != text {
		t.Fatalf("user message = %q, want the page text", fake.got.Messages[1].Content)
	}

	var resp client.ReductionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ReducedText != "<p>one two three four five</p>" {
		t.Fatalf("reduced text = %q", resp.ReducedText)
	}
	if resp.OriginalLength != 10 || resp.ReducedLength != 5 {
		t.Fatalf("word counts = %d/%d, want 10/5", resp.OriginalLength, resp.ReducedLength)
	}
	if resp.ReductionPercentage != 50 {
		t.Fatalf("percentage = %v, want 50", resp.ReductionPercentage)
	}
}

func TestReduceCustomPromptSubstitution(t *testing.T) {
	fake := &fakeLLM{text: "<p>r</p>"}
	srv := &Server{Client: fake, Model: "m"}

	rec := postReduce(t, srv.Handler(), client.ReductionRequest{
		Text:           "some text",
		ReductionLevel: 25,
		Prompt:         "Cut to {REDUCT_FACTOR} percent. Also {REDUCT_FACTOR}.",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := fake.got.Messages[0].Content; got != "Cut to 25 percent. Also 25." {
		t.Fatalf("substituted prompt = %q", got)
	}
}

func TestReduceDefaultLevel(t *testing.T) {
	fake := &fakeLLM{text: "<p>r</p>"}
	srv := &Server{Client: fake, Model: "m"}

	rec := postReduce(t, srv.Handler(), client.ReductionRequest{Text: "some text"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(fake.got.Messages[0].Content, "approximately 50%") {
		t.Fatalf("default level not applied: %q", fake.got.Messages[0].Content)
	}
}

func TestReduceRejectsEmptyText(t *testing.T) {
	srv := &Server{Client: &fakeLLM{text: "x"}, Model: "m"}
	rec := postReduce(t, srv.Handler(), client.ReductionRequest{Text: "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestReduceModelFailure(t *testing.T) {
	srv := &Server{Client: &fakeLLM{err: errors.New("backend down")}, Model: "m"}
	rec := postReduce(t, srv.Handler(), client.ReductionRequest{Text: "some text"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "backend down") {
		t.Fatalf("error detail missing: %s", rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	cases := []struct {
		name       string
		srv        *Server
		wantStatus string
	}{
		{"configured", &Server{Client: &fakeLLM{}, Model: "m"}, "healthy"},
		{"no model", &Server{Client: &fakeLLM{}}, "unhealthy"},
		{"no client", &Server{Model: "m"}, "unhealthy"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rec := httptest.NewRecorder()
			tc.srv.Handler().ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			var resp struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tc.wantStatus {
				t.Fatalf("status = %q, want %q", resp.Status, tc.wantStatus)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := &Server{Client: &fakeLLM{}, Model: "m"}
	req := httptest.NewRequest(http.MethodOptions, "/reduce", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("CORS header missing")
	}
}

// TestServedByClient exercises the real wire path: our client against the
// real handler over HTTP.
func TestServedByClient(t *testing.T) {
	fake := &fakeLLM{text: "<p>short</p>"}
	httpSrv := httptest.NewServer((&Server{Client: fake, Model: "m"}).Handler())
	defer httpSrv.Close()

	c := &client.Client{BaseURL: httpSrv.URL}
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("health probe: %v", err)
	}
	resp, err := c.Reduce(context.Background(), client.ReductionRequest{Text: "a b c d", ReductionLevel: 50})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if resp.ReducedText != "<p>short</p>" {
		t.Fatalf("reduced text = %q", resp.ReducedText)
	}
	if resp.OriginalLength != 4 || resp.ReducedLength != 1 {
		t.Fatalf("word counts = %d/%d", resp.OriginalLength, resp.ReducedLength)
	}
}
