package handlers

import (
	"context"
	"log/slog"

	"github.com/checkmate/checkmate/internal/inbound"
	"github.com/checkmate/checkmate/internal/router"
)

// MessageRouter routes normalized deliveries.
type MessageRouter interface {
	Route(ctx context.Context, msg inbound.Message) (router.Outcome, error)
}

// ResponseSource serves localized bot responses.
type ResponseSource interface {
	Response(ctx context.Context, key string) string
}

// HandlerDeps provides dependencies for Telegram handlers.
type HandlerDeps struct {
	Logger    *slog.Logger
	Router    MessageRouter
	Responses ResponseSource
}
