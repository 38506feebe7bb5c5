package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/lensbot/internal/config"
)

const (
	fileDownloadTimeout = 30 * time.Second
	sendMessageTimeout  = 10 * time.Second

	// MaxMessageLength is Telegram's limit for one text message.
	MaxMessageLength = 4096
)

// ErrDownload wraps every file retrieval failure.
var ErrDownload = errors.New("file download failed")

// Gateway downloads uploaded files and sends text replies through one bot.
type Gateway struct {
	bot      *bot.Bot
	token    string
	fileBase string
	client   *http.Client
	maxBytes int64
	log      *slog.Logger
}

// NewGateway builds a Gateway. maxBytes <= 0 disables the size cap.
func NewGateway(b *bot.Bot, cfg config.TelegramConfig, maxBytes int64, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		bot:      b,
		token:    cfg.Token,
		fileBase: strings.TrimRight(cfg.FileBaseURL, "/"),
		client:   http.DefaultClient,
		maxBytes: maxBytes,
		log:      log.With("component", "telegram_gateway"),
	}
}

// DownloadFile resolves fileID with getFile and fetches its bytes.
func (g *Gateway) DownloadFile(ctx context.Context, fileID string) (data []byte, err error) {
	if fileID == "" {
		return nil, fmt.Errorf("%w: empty file id", ErrDownload)
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: context cancelled before file download: %w", ErrDownload, ctx.Err())
	}

	downloadCtx, cancel := context.WithTimeout(ctx, fileDownloadTimeout)
	defer cancel()

	fileObj, err := g.bot.GetFile(downloadCtx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		// The Bot API client puts the request URL, token included, in its errors.
		return nil, fmt.Errorf("%w: failed to get file info from Telegram: %v", ErrDownload, redact(err, g.token))
	}
	if fileObj.FilePath == "" {
		return nil, fmt.Errorf("%w: empty file path returned for file ID %s", ErrDownload, fileID)
	}
	if g.maxBytes > 0 && fileObj.FileSize > g.maxBytes {
		return nil, fmt.Errorf("%w: file is %d bytes, limit is %d", ErrDownload, fileObj.FileSize, g.maxBytes)
	}

	url := fmt.Sprintf("%s/bot%s/%s", g.fileBase, g.token, fileObj.FilePath)
	req, err := http.NewRequestWithContext(downloadCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create HTTP request: %w", ErrDownload, err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request for %s failed: %v", ErrDownload, fileObj.FilePath, redact(err, g.token))
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%w: failed to close response body: %w", ErrDownload, closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: unexpected status code %d for %s: %s", ErrDownload, resp.StatusCode, fileObj.FilePath, string(body))
	}

	reader := io.Reader(resp.Body)
	if g.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, g.maxBytes+1)
	}
	data, err = io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read file data: %w", ErrDownload, err)
	}
	if g.maxBytes > 0 && int64(len(data)) > g.maxBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrDownload, g.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: received empty file data", ErrDownload)
	}

	g.log.DebugContext(ctx, "Downloaded file", "file_path", fileObj.FilePath, "size", len(data))
	return data, nil
}

// Reply sends text to chatID, split into several messages when it is
// longer than MaxMessageLength.
func (g *Gateway) Reply(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range SplitMessage(text, MaxMessageLength) {
		if err := g.Send(ctx, &bot.SendMessageParams{ChatID: chatID, Text: chunk}); err != nil {
			return err
		}
	}
	return nil
}

// Send sends one message with its own timeout.
func (g *Gateway) Send(ctx context.Context, params *bot.SendMessageParams) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
	defer cancel()

	sent, err := g.bot.SendMessage(sendCtx, params)
	if err != nil {
		return fmt.Errorf("failed to send message to chat %v: %w", params.ChatID, err)
	}
	g.log.DebugContext(ctx, "Sent message", "chat_id", params.ChatID, "message_id", sent.ID)
	return nil
}

// BestPhoto picks the largest photo size by area.
func BestPhoto(sizes []models.PhotoSize) (models.PhotoSize, bool) {
	var best models.PhotoSize
	bestArea := -1
	for _, p := range sizes {
		if area := p.Width * p.Height; area > bestArea {
			bestArea = area
			best = p
		}
	}
	return best, bestArea >= 0
}

// SplitMessage cuts text into chunks of at most limit runes, preferring
// line breaks. Empty text yields one empty chunk.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

func redact(err error, token string) string {
	if token == "" {
		return err.Error()
	}
	return strings.ReplaceAll(err.Error(), token, "<redacted>")
}
