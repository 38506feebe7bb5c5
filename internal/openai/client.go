// Package openai implements the AI provider on an OpenAI-compatible chat
// completions endpoint.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/edgard/lensbot/internal/analysis"
	"github.com/edgard/lensbot/internal/config"
)

const searchPromptFormat = "Perform a web search about: %s"

// Client wraps a go-openai client with the bot's models and limits.
type Client struct {
	api          *openai.Client
	log          *slog.Logger
	model        string
	visionModel  string
	temperature  float32
	maxTokens    int
	systemPrompt string
}

// NewClient creates a client for cfg. systemPrompt may be empty.
func NewClient(cfg config.OpenAIConfig, systemPrompt string, log *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if log == nil {
		log = slog.Default()
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	vision := cfg.VisionModel
	if vision == "" {
		vision = cfg.Model
	}

	c := &Client{
		api:          openai.NewClientWithConfig(apiCfg),
		log:          log.With("component", "openai_client"),
		model:        cfg.Model,
		visionModel:  vision,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		systemPrompt: systemPrompt,
	}
	c.log.Info("OpenAI client initialized successfully", "model", cfg.Model, "vision_model", vision, "base_url", apiCfg.BaseURL)
	return c, nil
}

// IsRateLimited reports whether err is an HTTP 429 from the API.
func IsRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}

func (c *Client) newRequest(model string, messages []openai.ChatCompletionMessage) openai.ChatCompletionRequest {
	if c.systemPrompt != "" {
		messages = append([]openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: c.systemPrompt}}, messages...)
	}
	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: c.temperature,
	}
	// Reasoning models (o1/o3/o4/gpt-5*) take MaxCompletionTokens instead of MaxTokens.
	if isReasoningModel(model) {
		req.MaxCompletionTokens = c.maxTokens
		req.Temperature = 0
	} else {
		req.MaxTokens = c.maxTokens
	}
	return req
}

func isReasoningModel(model string) bool {
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Reply relays a chat message.
func (c *Client) Reply(ctx context.Context, prompt string) (string, error) {
	text, err := c.complete(ctx, c.newRequest(c.model, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}))
	if err != nil {
		c.log.ErrorContext(ctx, "OpenAI reply failed", "error", err)
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("reply returned empty text")
	}
	return text, nil
}

// Search asks the model about query. Chat completions have no search tool,
// so the answer comes from the model alone.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	text, err := c.complete(ctx, c.newRequest(c.model, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(searchPromptFormat, query)},
	}))
	if err != nil {
		c.log.ErrorContext(ctx, "OpenAI search failed", "error", err)
		return "", err
	}
	return text, nil
}

// DescribeImage sends the image inline as a data URL.
func (c *Client) DescribeImage(ctx context.Context, img analysis.Image, prompt string) analysis.Result {
	dataURL := fmt.Sprintf("data:%s;base64,%s", img.MIMEType, base64.StdEncoding.EncodeToString(img.Data))

	req := c.newRequest(c.visionModel, []openai.ChatCompletionMessage{{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
				URL:    dataURL,
				Detail: openai.ImageURLDetailAuto,
			}},
		},
	}})

	text, err := c.complete(ctx, req)
	if err != nil {
		c.log.WarnContext(ctx, "OpenAI image analysis failed", "rate_limited", IsRateLimited(err), "error", err)
	}
	return analysis.FromCall(text, err, IsRateLimited)
}

// SummarizeDocument sends the extracted document text.
func (c *Client) SummarizeDocument(ctx context.Context, doc analysis.Document, prompt string) analysis.Result {
	body := fmt.Sprintf("Document: %s\n\n%s", doc.Name, doc.Text)
	if doc.Truncated {
		body = fmt.Sprintf("Document: %s\n(content truncated)\n\n%s", doc.Name, doc.Text)
	}

	req := c.newRequest(c.visionModel, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt + "\n\n" + body},
	})

	text, err := c.complete(ctx, req)
	if err != nil {
		c.log.WarnContext(ctx, "OpenAI document analysis failed", "rate_limited", IsRateLimited(err), "error", err)
	}
	return analysis.FromCall(text, err, IsRateLimited)
}
