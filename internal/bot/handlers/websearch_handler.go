package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewWebSearchHandler returns a handler for the /websearch command.
func NewWebSearchHandler(deps HandlerDeps) bot.HandlerFunc {
	return webSearchHandler{deps}.Handle
}

type webSearchHandler struct {
	deps HandlerDeps
}

// commandArgs returns the text after the leading command word.
func commandArgs(text string) string {
	fields := strings.Fields(text)
	if len(fields) <= 1 {
		return ""
	}
	return strings.Join(fields[1:], " ")
}

func (h webSearchHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "websearch")

	if update.Message == nil {
		log.WarnContext(ctx, "Websearch handler received update with nil message", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	msgs := h.deps.Config.Messages

	query := commandArgs(update.Message.Text)
	if query == "" {
		send(ctx, b, h.deps, log, chatID, msgs.SearchUsage)
		return
	}

	log.InfoContext(ctx, "Handling /websearch command", "chat_id", chatID, "query_length", len(query))

	aiCtx, cancel := context.WithTimeout(ctx, aiProcessingTimeout)
	result, err := h.deps.AI.Search(aiCtx, query)
	cancel()
	if err != nil {
		log.ErrorContext(ctx, "Web search failed", "error", err, "chat_id", chatID)
		send(ctx, b, h.deps, log, chatID, msgs.SearchError)
		return
	}

	if strings.TrimSpace(result) == "" {
		result = msgs.SearchNoResults
	}
	send(ctx, b, h.deps, log, chatID, msgs.SearchResultPrefix+result)
}
