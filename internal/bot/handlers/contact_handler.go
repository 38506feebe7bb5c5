package handlers

import (
	"context"
	"errors"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/lensbot/internal/database"
)

// NewContactHandler returns a handler for shared contacts.
func NewContactHandler(deps HandlerDeps) bot.HandlerFunc {
	return contactHandler{deps}.Handle
}

type contactHandler struct {
	deps HandlerDeps
}

// IsContactMessage matches messages carrying a shared contact.
func IsContactMessage(update *models.Update) bool {
	return update.Message != nil && update.Message.Contact != nil
}

func (h contactHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "contact")

	if update.Message == nil {
		log.WarnContext(ctx, "Contact handler received update with nil message", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	msgs := h.deps.Config.Messages
	contact := update.Message.Contact

	if contact == nil || contact.UserID == 0 {
		send(ctx, b, h.deps, log, chatID, msgs.ContactHint)
		return
	}

	dbCtx, cancel := dbContext(ctx)
	err := h.deps.Store.UpdateUserPhone(dbCtx, contact.UserID, contact.PhoneNumber)
	cancel()
	switch {
	case errors.Is(err, database.ErrNotFound):
		log.WarnContext(ctx, "Contact shared by an unregistered user", "chat_id", chatID, "contact_user_id", contact.UserID)
	case err != nil:
		log.ErrorContext(ctx, "Failed to save phone number", "error", err, "chat_id", chatID)
		send(ctx, b, h.deps, log, chatID, msgs.ContactError)
		return
	default:
		log.InfoContext(ctx, "Phone number saved", "chat_id", chatID, "contact_user_id", contact.UserID)
	}

	sendParams(ctx, b, h.deps, log, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        msgs.RegistrationDone,
		ReplyMarkup: &models.ReplyKeyboardRemove{RemoveKeyboard: true},
	})
}
