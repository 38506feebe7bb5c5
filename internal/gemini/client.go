// Package gemini implements integration with Google's Gemini AI API.
// It relays chat messages, runs grounded web searches, and describes
// images and documents for the file analysis flow.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/lensbot/internal/analysis"
	"github.com/edgard/lensbot/internal/config"
)

const searchPromptFormat = "Perform a web search about: %s"

// contentGenerator is the subset of *genai.Models the client calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client talks to the Gemini API.
type Client struct {
	models           contentGenerator
	log              *slog.Logger
	contentConfig    *genai.GenerateContentConfig
	defaultModelName string
	visionModelName  string
	maxRetries       int
	retryDelay       time.Duration
	sleeper          analysis.Sleeper
}

// NewClient creates a new Gemini AI client with the provided configuration.
func NewClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	c := newClient(gi.Models, cfg, log)
	c.log.Info("Gemini client initialized successfully", "model", cfg.ModelName, "vision_model", cfg.VisionModelName)
	return c, nil
}

func newClient(models contentGenerator, cfg config.GeminiConfig, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}

	baseCfg := &genai.GenerateContentConfig{
		Temperature: &cfg.Temperature,
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
		},
	}
	if cfg.SystemInstruction != "" {
		baseCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: cfg.SystemInstruction}}}
	}

	vision := cfg.VisionModelName
	if vision == "" {
		vision = cfg.ModelName
	}

	return &Client{
		models:           models,
		log:              log.With("component", "gemini_client"),
		contentConfig:    baseCfg,
		defaultModelName: cfg.ModelName,
		visionModelName:  vision,
		maxRetries:       cfg.MaxRetries,
		retryDelay:       time.Duration(cfg.RetryDelaySeconds) * time.Second,
		sleeper:          analysis.NewClockSleeper(nil),
	}
}

// IsRateLimited reports whether err is an HTTP 429 from the Gemini API.
func IsRateLimited(err error) bool {
	code, ok := apiErrorCode(err)
	return ok && code == http.StatusTooManyRequests
}

func apiErrorCode(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, true
	}
	return 0, false
}

// generateContentWithRetries retries 500 and 503 answers. Rate limits are
// left to the caller.
func (c *Client) generateContentWithRetries(ctx context.Context, modelName string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var err error
	for i := 0; i <= c.maxRetries; i++ {
		var resp *genai.GenerateContentResponse
		resp, err = c.models.GenerateContent(ctx, modelName, contents, cfg)
		if err == nil {
			return resp, nil
		}

		c.log.WarnContext(ctx, "Gemini API call failed, checking for retry", "attempt", i+1, "max_retries", c.maxRetries, "error", err)

		code, ok := apiErrorCode(err)
		if !ok || (code != http.StatusInternalServerError && code != http.StatusServiceUnavailable) {
			c.log.ErrorContext(ctx, "Gemini API call failed with non-retriable error", "error", err)
			return nil, fmt.Errorf("gemini API call failed: %w", err)
		}
		if i == c.maxRetries {
			break
		}

		c.log.InfoContext(ctx, "Retrying Gemini API call due to retriable APIError", "delay", c.retryDelay, "code", code)
		if sleepErr := c.sleeper.Sleep(ctx, c.retryDelay); sleepErr != nil {
			return nil, fmt.Errorf("gemini retry interrupted: %w", sleepErr)
		}
	}

	c.log.ErrorContext(ctx, "Gemini API call failed after max retries", "error", err)
	return nil, fmt.Errorf("gemini API call failed after %d retries: %w", c.maxRetries, err)
}

// Reply relays a chat message and returns the model's answer.
func (c *Client) Reply(ctx context.Context, prompt string) (string, error) {
	c.log.DebugContext(ctx, "Generating reply", "prompt_length", len(prompt))

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := c.generateContentWithRetries(ctx, c.defaultModelName, contents, c.contentConfig)
	if err != nil {
		return "", err
	}
	return c.extractTextFromResponse(ctx, "reply", resp)
}

// Search answers a query grounded with Google Search. An empty answer is
// returned as "" without error.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	c.log.DebugContext(ctx, "Running web search", "query", query)

	cfg := *c.contentConfig
	cfg.Tools = append(append([]*genai.Tool(nil), cfg.Tools...), &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})

	contents := []*genai.Content{genai.NewContentFromText(fmt.Sprintf(searchPromptFormat, query), genai.RoleUser)}
	resp, err := c.generateContentWithRetries(ctx, c.defaultModelName, contents, &cfg)
	if err != nil {
		return "", err
	}
	if err := blockedError("search", resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

// DescribeImage makes a single vision call. Retrying is the caller's job.
func (c *Client) DescribeImage(ctx context.Context, img analysis.Image, prompt string) analysis.Result {
	c.log.DebugContext(ctx, "Generating image analysis", "image_size", len(img.Data), "mime_type", img.MIMEType)

	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(img.Data, img.MIMEType),
	}, genai.RoleUser)}

	return c.analyze(ctx, "image_analysis", contents)
}

// SummarizeDocument makes a single call over the extracted document text.
func (c *Client) SummarizeDocument(ctx context.Context, doc analysis.Document, prompt string) analysis.Result {
	c.log.DebugContext(ctx, "Generating document summary", "file_name", doc.Name, "text_length", len(doc.Text), "truncated", doc.Truncated)

	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromText(documentBody(doc)),
	}, genai.RoleUser)}

	return c.analyze(ctx, "document_analysis", contents)
}

func (c *Client) analyze(ctx context.Context, op string, contents []*genai.Content) analysis.Result {
	cfg := *c.contentConfig
	cfg.Tools = nil

	resp, err := c.models.GenerateContent(ctx, c.visionModelName, contents, &cfg)
	if err != nil {
		c.log.WarnContext(ctx, "Gemini analysis call failed", "operation", op, "rate_limited", IsRateLimited(err), "error", err)
		return analysis.FromCall("", err, IsRateLimited)
	}
	if err := blockedError(op, resp); err != nil {
		c.log.WarnContext(ctx, "Gemini analysis blocked", "operation", op, "error", err)
		return analysis.Failed(err)
	}
	return analysis.Succeeded(strings.TrimSpace(resp.Text()))
}

func (c *Client) extractTextFromResponse(ctx context.Context, op string, resp *genai.GenerateContentResponse) (string, error) {
	if err := blockedError(op, resp); err != nil {
		c.log.ErrorContext(ctx, "Gemini request blocked", "operation", op, "error", err)
		return "", err
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response missing candidates or content", "operation", op, "finish_reason", finishReason)
		return "", fmt.Errorf("%s returned no content, finish reason: %s", op, finishReason)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%s returned empty text", op)
	}
	return text, nil
}

func blockedError(op string, resp *genai.GenerateContentResponse) error {
	if resp == nil {
		return fmt.Errorf("%s returned a nil response", op)
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
		reason := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reason = resp.PromptFeedback.BlockReasonMessage
		}
		return fmt.Errorf("%s blocked by safety filter: %s", op, reason)
	}
	return nil
}

func documentBody(doc analysis.Document) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Document: %s\n", doc.Name)
	if doc.Truncated {
		sb.WriteString("(content truncated)\n")
	}
	sb.WriteString("\n")
	sb.WriteString(doc.Text)
	return sb.String()
}
