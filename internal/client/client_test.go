package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestReduceRoundTrip(t *testing.T) {
	var got ReductionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reduce" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ReductionResponse{
			ReducedText:         "<p>short</p>",
			OriginalLength:      20,
			ReducedLength:       10,
			ReductionPercentage: 50,
		})
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL}
	resp, err := c.Reduce(context.Background(), ReductionRequest{Text: "long text", ReductionLevel: 40})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if got.Text != "long text" || got.ReductionLevel != 40 {
		t.Fatalf("request not forwarded: %+v", got)
	}
	if resp.ReducedText != "<p>short</p>" || resp.ReductionPercentage != 50 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestReduceNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL}
	_, err := c.Reduce(context.Background(), ReductionRequest{Text: "x"})
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected *ServiceError, got %v", err)
	}
	if svcErr.Status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", svcErr.Status)
	}
}

func TestReduceUnreachable(t *testing.T) {
	c := &Client{BaseURL: "http://127.0.0.1:1"}
	_, err := c.Reduce(context.Background(), ReductionRequest{Text: "x"})
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected *ServiceError, got %v", err)
	}
	if svcErr.Status != 0 {
		t.Fatalf("transport failure should have no status, got %d", svcErr.Status)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL + "/"}
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}

	srv.Close()
	if err := c.Health(context.Background()); err == nil {
		t.Fatalf("expected failure against closed server")
	}
}

func TestExpandPrompt(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"single", "Reduce to {REDUCT_FACTOR} percent", "Reduce to 30 percent"},
		{"multiple", "{REDUCT_FACTOR} and {REDUCT_FACTOR}", "30 and 30"},
		{"case sensitive", "{reduct_factor}", "{reduct_factor}"},
		{"absent", "no placeholder", "no placeholder"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExpandPrompt(tc.in, 30); got != tc.want {
				t.Fatalf("ExpandPrompt(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
