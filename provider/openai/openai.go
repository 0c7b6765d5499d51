// Package openai_provider implements the provider interface against the
// OpenAI-compatible chat completions and embeddings endpoints.
package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/docusense/docchat/config"
)

// ErrUpstream marks provider failures so the HTTP boundary can map them to a
// single status code.
var ErrUpstream = errors.New("upstream provider failure")

// Message represents a message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client calls an OpenAI-compatible API.
type Client struct {
	apiKey          string
	baseURL         string
	completionModel string
	embeddingModel  string
	temperature     float64
	maxTokens       int
	maxRetries      int
	httpClient      *http.Client
}

// NewClient creates a client from the provider configuration.
func NewClient(cfg config.OpenAIConfig) *Client {
	return &Client{
		apiKey:          cfg.APIKey,
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		completionModel: cfg.CompletionModel,
		embeddingModel:  cfg.EmbeddingModel,
		temperature:     cfg.Temperature,
		maxTokens:       cfg.MaxTokens,
		maxRetries:      cfg.MaxRetries,
		httpClient:      &http.Client{Timeout: cfg.Timeout},
	}
}

// Embed generates embeddings for the given texts.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body := map[string]interface{}{
		"model": c.embeddingModel,
		"input": texts,
	}

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/embeddings", body, &out); err != nil {
		return nil, err
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrUpstream, len(out.Data), len(texts))
	}
	vecs := make([][]float32, len(out.Data))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrUpstream, d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

// Complete sends the messages to the completion model and returns its answer.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	body := map[string]interface{}{
		"model":       c.completionModel,
		"messages":    messages,
		"temperature": c.temperature,
	}
	if c.maxTokens > 0 {
		body["max_tokens"] = c.maxTokens
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.post(ctx, "/chat/completions", body, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty completion", ErrUpstream)
	}
	return out.Choices[0].Message.Content, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.do(req, data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, msg)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrUpstream, err)
	}
	return nil
}

// do retries 429 and 5xx responses with a short linear backoff before giving
// up; the request body is replayed on each attempt.
func (c *Client) do(req *http.Request, body []byte) (*http.Response, error) {
	backoff := 200 * time.Millisecond
	attempts := c.maxRetries
	if attempts < 1 {
		attempts = 1
	}
	var resp *http.Response
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		req.Body = io.NopCloser(bytes.NewReader(body))
		resp, err = c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode/100 != 5 {
			return resp, nil
		}
		if attempt == attempts-1 {
			return resp, nil
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(backoff + time.Duration(attempt)*100*time.Millisecond):
		}
	}
	return resp, nil
}
