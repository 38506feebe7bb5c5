package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"

	"github.com/edgard/lensbot/internal/telegram"
)

const (
	aiProcessingTimeout = 2 * time.Minute
	dbTimeout           = 5 * time.Second
)

// gateway binds the running bot to the configured file host and limits.
func gateway(b *bot.Bot, deps HandlerDeps) *telegram.Gateway {
	return telegram.NewGateway(b, deps.Config.Telegram, deps.Config.Analysis.MaxDownloadBytes, deps.Logger)
}

// send sends text to chatID and logs failures.
func send(ctx context.Context, b *bot.Bot, deps HandlerDeps, log *slog.Logger, chatID int64, text string) {
	if err := gateway(b, deps).Reply(ctx, chatID, text); err != nil {
		log.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", chatID)
	}
}

// sendParams sends a message that carries markup and logs failures.
func sendParams(ctx context.Context, b *bot.Bot, deps HandlerDeps, log *slog.Logger, params *bot.SendMessageParams) {
	if err := gateway(b, deps).Send(ctx, params); err != nil {
		log.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", params.ChatID)
	}
}

// dbContext gives store writes their own deadline that survives the
// update context being cancelled once the reply is on its way.
func dbContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), dbTimeout)
}
