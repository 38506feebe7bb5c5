package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/lensbot/internal/database"
)

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return startHandler{deps}.Handle
}

// startHandler registers the chat and asks for a phone number.
type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")

	if update.Message == nil {
		log.WarnContext(ctx, "Start handler received update with nil message", "update_id", update.ID)
		return
	}

	chat := update.Message.Chat
	msgs := h.deps.Config.Messages
	log.InfoContext(ctx, "Handling /start command", "chat_id", chat.ID)

	dbCtx, cancel := dbContext(ctx)
	created, err := h.deps.Store.CreateUser(dbCtx, &database.User{
		ChatID:    chat.ID,
		FirstName: chat.FirstName,
		Username:  chat.Username,
	})
	cancel()
	if err != nil {
		log.ErrorContext(ctx, "Failed to register user", "error", err, "chat_id", chat.ID)
		send(ctx, b, h.deps, log, chat.ID, msgs.ErrorGeneral)
		return
	}

	if !created {
		send(ctx, b, h.deps, log, chat.ID, msgs.AlreadyRegistered)
		return
	}

	log.InfoContext(ctx, "User registered", "chat_id", chat.ID, "username", chat.Username)
	sendParams(ctx, b, h.deps, log, &bot.SendMessageParams{
		ChatID: chat.ID,
		Text:   msgs.Welcome,
		ReplyMarkup: &models.ReplyKeyboardMarkup{
			Keyboard: [][]models.KeyboardButton{
				{{Text: msgs.ShareContactButton, RequestContact: true}},
			},
			OneTimeKeyboard: true,
			ResizeKeyboard:  true,
		},
	})
}
