package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/lensbot/internal/telegram"
)

// RegisterAllCommands initializes and returns every update handler keyed
// by a descriptive name.
func RegisterAllCommands(deps HandlerDeps) map[string]telegram.RegisteredHandler {
	handlers := make(map[string]telegram.RegisteredHandler)

	handlers["/start"] = telegram.RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "start",
		Handler:     NewStartHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}
	handlers["/help"] = telegram.RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "help",
		Handler:     NewHelpHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}
	handlers["/referral"] = telegram.RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "referral",
		Handler:     NewReferralHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}

	aiMiddleware := []tgbot.Middleware{Typing(deps)}

	handlers["/websearch"] = telegram.RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "websearch",
		Handler:     NewWebSearchHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  aiMiddleware,
	}
	handlers["contact"] = telegram.RegisteredHandler{
		Match:   IsContactMessage,
		Handler: NewContactHandler(deps),
	}
	handlers["file"] = telegram.RegisteredHandler{
		Match:      IsFileMessage,
		Handler:    NewFileHandler(deps),
		Middleware: aiMiddleware,
	}
	handlers["chat"] = telegram.RegisteredHandler{
		Match:      IsChatMessage,
		Handler:    NewChatHandler(deps),
		Middleware: aiMiddleware,
	}

	return handlers
}

// NewDefaultHandler logs updates no registered handler matched.
func NewDefaultHandler(deps HandlerDeps) tgbot.HandlerFunc {
	log := deps.Logger.With("handler", "default")
	return func(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
		if update.Message != nil {
			log.DebugContext(ctx, "No handler matched message", "update_id", update.ID, "chat_id", update.Message.Chat.ID)
			return
		}
		log.DebugContext(ctx, "Ignoring non-message update", "update_id", update.ID)
	}
}
