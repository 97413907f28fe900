package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	apperrors "github.com/checkmate/checkmate/internal/errors"
	"github.com/checkmate/checkmate/internal/telegram"
)

// NewMessageHandler returns the default handler: every message that is not a
// registered command goes through the claim pipeline.
func NewMessageHandler(deps HandlerDeps) bot.HandlerFunc {
	return messageHandler{deps}.Handle
}

type messageHandler struct {
	deps HandlerDeps
}

func (h messageHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "message")

	if update.Message == nil {
		log.DebugContext(ctx, "Ignoring non-message update", "update_id", update.ID)
		return
	}

	msg := telegram.ToInbound(update.Message)
	outcome, err := h.deps.Router.Route(ctx, msg)
	if err != nil {
		// Polling has already acknowledged the update; there is no redelivery.
		log.ErrorContext(ctx, "Dropped telegram message",
			"delivery_id", msg.DeliveryID, "code", apperrors.Code(err), "error", err)
		return
	}

	log.DebugContext(ctx, "Telegram message routed", "delivery_id", msg.DeliveryID, "outcome", outcome.String())
}
