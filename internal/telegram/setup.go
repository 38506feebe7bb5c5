// Package telegram handles the setup of the Telegram bot, handler
// registration and the file/reply gateway used by the handlers.
package telegram

import (
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
)

// RegisteredHandler describes one handler and how updates reach it.
// When Match is set it takes precedence over HandlerType/Pattern/MatchType.
type RegisteredHandler struct {
	HandlerType bot.HandlerType
	Pattern     string
	MatchType   bot.MatchType
	Match       bot.MatchFunc
	Handler     bot.HandlerFunc
	Middleware  []bot.Middleware
}

// NewTelegramBot creates a new Telegram bot instance using the go-telegram/bot library.
func NewTelegramBot(token string, logger *slog.Logger, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "telegram_bot")

	b, err := bot.New(token, opts...)
	if err != nil {
		log.Error("Failed to create Telegram bot instance", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	prefix := token
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	log.Info("Telegram bot instance created successfully", "token_prefix", prefix+"...")
	return b, nil
}

// applyMiddleware wraps a handler function with a slice of middleware.
// The first middleware in the slice is the outermost.
func applyMiddleware(handler bot.HandlerFunc, mw []bot.Middleware) bot.HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}

// RegisterHandlers registers every handler in registered with b.
func RegisterHandlers(b *bot.Bot, logger *slog.Logger, registered map[string]RegisteredHandler) error {
	if b == nil {
		return fmt.Errorf("bot instance cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "handler_registry")

	if len(registered) == 0 {
		log.Warn("No handlers provided for registration.")
		return nil
	}

	log.Info("Registering Telegram handlers...", "count", len(registered))

	for name, reg := range registered {
		if reg.Handler == nil {
			log.Warn("Skipping registration for nil handler", "name", name)
			continue
		}

		finalHandler := applyMiddleware(reg.Handler, reg.Middleware)
		if reg.Match != nil {
			b.RegisterHandlerMatchFunc(reg.Match, finalHandler)
			log.Debug("Registered match handler", "name", name, "middleware_count", len(reg.Middleware))
			continue
		}
		b.RegisterHandler(reg.HandlerType, reg.Pattern, reg.MatchType, finalHandler)
		log.Debug("Registered handler", "name", name, "pattern", reg.Pattern, "match_type", reg.MatchType, "middleware_count", len(reg.Middleware))
	}

	log.Info("Registered Telegram handlers successfully", "count", len(registered))
	return nil
}
