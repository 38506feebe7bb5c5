// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"
	"sync"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// typingInterval stays under the five seconds a chat action is shown for.
const typingInterval = 4 * time.Second

// Typing creates a middleware that keeps the "typing" chat action visible
// while the wrapped handler runs.
func Typing(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			if update.Message == nil {
				next(ctx, b, update)
				return
			}

			chatID := update.Message.Chat.ID
			log := deps.Logger.With("middleware", "Typing", "chat_id", chatID)

			sendTyping := func(ctx context.Context) {
				_, err := b.SendChatAction(ctx, &tgbot.SendChatActionParams{ChatID: chatID, Action: models.ChatActionTyping})
				if err != nil && ctx.Err() == nil {
					log.WarnContext(ctx, "Failed to send typing action", "error", err)
				}
			}

			sendTyping(ctx)

			typingCtx, stop := context.WithCancel(ctx)
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				ticker := time.NewTicker(typingInterval)
				defer ticker.Stop()
				for {
					select {
					case <-typingCtx.Done():
						return
					case <-ticker.C:
						sendTyping(typingCtx)
					}
				}
			}()

			next(ctx, b, update)
			stop()
			wg.Wait()
		}
	}
}
