package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"

	"github.com/edgard/lensbot/internal/database"
)

// NewChatHandler returns a handler that relays plain text to the AI client.
func NewChatHandler(deps HandlerDeps) bot.HandlerFunc {
	return chatHandler{deps}.Handle
}

type chatHandler struct {
	deps HandlerDeps
}

// IsChatMessage matches plain text that is not a command.
func IsChatMessage(update *models.Update) bool {
	msg := update.Message
	if msg == nil {
		return false
	}
	text := strings.TrimSpace(msg.Text)
	return text != "" && !strings.HasPrefix(text, "/")
}

func (h chatHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "chat")

	if !IsChatMessage(update) {
		log.DebugContext(ctx, "Ignoring update without chat text", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	text := update.Message.Text
	log.InfoContext(ctx, "Handling chat message", "chat_id", chatID)

	aiCtx, cancel := context.WithTimeout(ctx, aiProcessingTimeout)
	reply, err := h.deps.AI.Reply(aiCtx, text)
	cancel()
	if err != nil {
		log.ErrorContext(ctx, "AI reply failed", "error", err, "chat_id", chatID)
		send(ctx, b, h.deps, log, chatID, h.deps.Config.Messages.ChatError)
		return
	}

	dbCtx, cancel := dbContext(ctx)
	err = h.deps.Store.SaveChatHistory(dbCtx, &database.ChatHistory{
		ID:          uuid.NewString(),
		ChatID:      chatID,
		UserMessage: text,
		BotResponse: reply,
		Timestamp:   time.Now().UTC(),
	})
	cancel()
	if err != nil {
		log.ErrorContext(ctx, "Failed to save chat history", "error", err, "chat_id", chatID)
	}

	send(ctx, b, h.deps, log, chatID, reply)
}
