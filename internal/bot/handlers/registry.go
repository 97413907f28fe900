package handlers

import (
	tgbot "github.com/go-telegram/bot"

	"github.com/checkmate/checkmate/internal/telegram"
)

// RegisterAllCommands returns the Telegram commands handled outside the
// claim pipeline.
func RegisterAllCommands(deps HandlerDeps) map[string]telegram.RegisteredHandler {
	handlers := make(map[string]telegram.RegisteredHandler)

	handlers["/start"] = telegram.RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "start",
		Handler:     NewStartHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}

	return handlers
}

// DefaultHandler is the catch-all message handler with its middleware applied.
func DefaultHandler(deps HandlerDeps) tgbot.HandlerFunc {
	return PrivateChatsOnly(deps)(NewMessageHandler(deps))
}
