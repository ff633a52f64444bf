// Package client talks to the reduct server. It has no knowledge of the
// page; it carries text out and untrusted HTML back.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// FactorPlaceholder is the literal token callers may embed in a custom
// prompt. It is replaced with the numeric reduction level by a plain,
// case-sensitive, global substitution. No other templating is applied.
const FactorPlaceholder = "{REDUCT_FACTOR}"

// ExpandPrompt substitutes every occurrence of FactorPlaceholder with the
// numeric level.
func ExpandPrompt(prompt string, level int) string {
	return strings.ReplaceAll(prompt, FactorPlaceholder, strconv.Itoa(level))
}

// ReductionRequest is the wire format of a single page-reduction call.
type ReductionRequest struct {
	Text           string `json:"text"`
	ReductionLevel int    `json:"reduction_level"`
	Prompt         string `json:"prompt,omitempty"`
}

// ReductionResponse carries the reduced content plus word-count statistics.
// ReducedText is untrusted and must be sanitized before it touches a page.
type ReductionResponse struct {
	ReducedText         string  `json:"reduced_text"`
	OriginalLength      int     `json:"original_length"`
	ReducedLength       int     `json:"reduced_length"`
	ReductionPercentage float64 `json:"reduction_percentage"`
}

// ServiceError reports a failed call to the reduction service: either a
// non-success status or an unreachable endpoint.
type ServiceError struct {
	Status int // zero when the call never produced a response
	Op     string
	Err    error
}

func (e *ServiceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("reduction service: %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("reduction service: %s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Client issues requests against one reduct server instance.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 120 * time.Second}
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}

// Reduce posts one segment's text for reduction. The call's own timeout or
// the context bound it; callers treat any error as a per-segment failure.
func (c *Client) Reduce(ctx context.Context, reqBody ReductionRequest) (ReductionResponse, error) {
	var out ReductionResponse
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return out, &ServiceError{Op: "reduce", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/reduce"), bytes.NewReader(payload))
	if err != nil {
		return out, &ServiceError{Op: "reduce", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return out, &ServiceError{Op: "reduce", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return out, &ServiceError{Op: "reduce", Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, &ServiceError{Op: "reduce", Err: fmt.Errorf("decode response: %w", err)}
	}
	return out, nil
}

// Health probes the service for reachability. It carries no payload
// contract beyond success or failure.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/health"), nil)
	if err != nil {
		return &ServiceError{Op: "health", Err: err}
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return &ServiceError{Op: "health", Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ServiceError{Op: "health", Status: resp.StatusCode}
	}
	return nil
}
