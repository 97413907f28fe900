// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// PrivateChatsOnly drops messages from groups and channels. Claims are
// submitted one-to-one; group chatter would flood the registry.
func PrivateChatsOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			if update.Message == nil {
				next(ctx, bot, update)
				return
			}

			if update.Message.Chat.Type != models.ChatTypePrivate {
				deps.Logger.DebugContext(ctx, "Ignoring non-private chat",
					"middleware", "PrivateChatsOnly",
					"chat_id", update.Message.Chat.ID,
					"chat_type", update.Message.Chat.Type)
				return
			}

			next(ctx, bot, update)
		}
	}
}
