// Package ai selects the generative-AI provider behind the bot.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/edgard/lensbot/internal/analysis"
	"github.com/edgard/lensbot/internal/config"
	"github.com/edgard/lensbot/internal/gemini"
	"github.com/edgard/lensbot/internal/openai"
)

// ErrUnknownProvider is returned for an unrecognized ai.provider value.
var ErrUnknownProvider = errors.New("unknown AI provider")

// Client is everything the handlers need from a provider.
type Client interface {
	analysis.Analyzer

	// Reply answers a free-form chat message.
	Reply(ctx context.Context, prompt string) (string, error)

	// Search answers a web search query. Empty text means no results.
	Search(ctx context.Context, query string) (string, error)
}

var (
	_ Client = (*gemini.Client)(nil)
	_ Client = (*openai.Client)(nil)
)

// New creates the provider named by cfg.AI.Provider.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (Client, error) {
	log.Info("Initializing AI client", "provider", cfg.AI.Provider)

	switch cfg.AI.Provider {
	case "gemini":
		client, err := gemini.NewClient(ctx, cfg.Gemini, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		return client, nil
	case "openai":
		client, err := openai.NewClient(cfg.OpenAI, cfg.Gemini.SystemInstruction, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.AI.Provider)
	}
}
