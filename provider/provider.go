// Package provider abstracts the embedding/completion backend so the RAG
// pipeline depends on capabilities, never on a concrete vendor.
package provider

import (
	"context"
	"errors"

	"github.com/docusense/docchat/config"
	openai_provider "github.com/docusense/docchat/provider/openai"
)

// ErrUpstream indicates the embedding/completion provider failed or timed
// out; surfaced to callers as a server-side failure, never retried at the
// request boundary.
var ErrUpstream = openai_provider.ErrUpstream

// Message is a single chat message sent to the completion model.
type Message = openai_provider.Message

// Provider is the interface every model backend must satisfy.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Complete(ctx context.Context, messages []Message) (string, error)
}

// NewProvider builds the configured provider.
func NewProvider(cfg config.ProvidersConfig) (Provider, error) {
	if cfg.OpenAI.APIKey == "" {
		return nil, errors.New("openai api key not configured")
	}
	return openai_provider.NewClient(cfg.OpenAI), nil
}
