package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/lensbot/internal/database"
)

const referralCodeLength = 6

// NewReferralHandler returns a handler for the /referral command.
func NewReferralHandler(deps HandlerDeps) bot.HandlerFunc {
	return referralHandler{deps}.Handle
}

type referralHandler struct {
	deps HandlerDeps
}

// ReferralCode is the last six digits of the chat id, or the whole id
// when it is shorter.
func ReferralCode(chatID int64) string {
	id := strconv.FormatInt(chatID, 10)
	if len(id) <= referralCodeLength {
		return id
	}
	return id[len(id)-referralCodeLength:]
}

func (h referralHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "referral")

	if update.Message == nil {
		log.WarnContext(ctx, "Referral handler received update with nil message", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	msgs := h.deps.Config.Messages

	dbCtx, cancel := dbContext(ctx)
	defer cancel()

	user, err := h.deps.Store.GetUser(dbCtx, chatID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		send(ctx, b, h.deps, log, chatID, msgs.ReferralNotRegister)
		return
	case err != nil:
		log.ErrorContext(ctx, "Failed to look up user", "error", err, "chat_id", chatID)
		send(ctx, b, h.deps, log, chatID, msgs.ReferralError)
		return
	}

	code := ReferralCode(chatID)
	err = h.deps.Store.UpsertReferral(dbCtx, &database.Referral{
		ReferralCode: code,
		Referrer:     user.Username,
		Timestamp:    time.Now().UTC(),
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to save referral", "error", err, "chat_id", chatID)
		send(ctx, b, h.deps, log, chatID, msgs.ReferralError)
		return
	}

	log.InfoContext(ctx, "Referral code issued", "chat_id", chatID, "referral_code", code)
	send(ctx, b, h.deps, log, chatID, fmt.Sprintf(msgs.ReferralCode, code))
}
