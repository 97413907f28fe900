// Package webhook exposes the WhatsApp Cloud API callback endpoints and the
// health probe over echo.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/checkmate/checkmate/internal/errors"
	"github.com/checkmate/checkmate/internal/inbound"
	"github.com/checkmate/checkmate/internal/router"
	"github.com/checkmate/checkmate/internal/whatsapp"
)

const (
	webhookMaxBodyBytes int64 = 1 << 20 // 1 MiB

	// defaultProcessTimeout bounds one callback; it survives client disconnects.
	defaultProcessTimeout = 60 * time.Second
)

// MessageRouter routes one normalized delivery.
type MessageRouter interface {
	Route(ctx context.Context, msg inbound.Message) (router.Outcome, error)
}

// HandlerConfig configures the WhatsApp webhook.
type HandlerConfig struct {
	VerifyToken string
	// AppSecret enables X-Hub-Signature-256 verification when set.
	AppSecret      string
	ProcessTimeout time.Duration
}

// Handler receives WhatsApp Cloud API callbacks.
type Handler struct {
	logger *slog.Logger
	router MessageRouter
	cfg    HandlerConfig
}

// NewHandler creates the WhatsApp webhook handler.
func NewHandler(log *slog.Logger, r MessageRouter, cfg HandlerConfig) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = defaultProcessTimeout
	}
	return &Handler{
		logger: log.With("handler", "whatsapp_webhook"),
		router: r,
		cfg:    cfg,
	}
}

// Register registers webhook callback routes.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/webhook", h.HandleVerify)
	e.POST("/webhook", h.Handle)
}

// HandleVerify answers the subscription challenge sent when the webhook URL
// is configured in the Meta dashboard.
func (h *Handler) HandleVerify(c echo.Context) error {
	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	challenge := c.QueryParam("hub.challenge")

	if mode != "subscribe" || h.cfg.VerifyToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.VerifyToken)) != 1 {
		h.logger.Warn("Webhook verification refused", "mode", mode)
		return echo.NewHTTPError(http.StatusForbidden, "verification failed")
	}

	h.logger.Info("Webhook verified")
	return c.String(http.StatusOK, challenge)
}

// Handle processes a callback. Messages of one callback are routed
// concurrently. The response is 500 only when a delivery hit a storage
// failure, so that WhatsApp redelivers the callback.
func (h *Handler) Handle(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, webhookMaxBodyBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
	}
	if int64(len(payload)) > webhookMaxBodyBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("payload too large: max %d bytes", webhookMaxBodyBytes))
	}

	if h.cfg.AppSecret != "" {
		if err := verifySignature(payload, c.Request().Header.Get(signatureHeader), h.cfg.AppSecret); err != nil {
			h.logger.Warn("Rejected unsigned webhook callback", "error", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
		}
	}

	var callback whatsapp.WebhookBody
	if err := json.Unmarshal(payload, &callback); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed payload")
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), h.cfg.ProcessTimeout)
	defer cancel()

	var g errgroup.Group
	for _, wire := range callback.Messages() {
		g.Go(func() error {
			return h.process(ctx, wire)
		})
	}

	if err := g.Wait(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "storage unavailable").SetInternal(err)
	}
	return c.String(http.StatusOK, "EVENT_RECEIVED")
}

func (h *Handler) process(ctx context.Context, wire whatsapp.Message) error {
	msg, err := wire.ToInbound()
	if err != nil {
		// Redelivery cannot fix a malformed message.
		h.logger.WarnContext(ctx, "Dropping invalid message", "delivery_id", wire.ID, "error", err)
		return nil
	}

	if _, err := h.router.Route(ctx, msg); err != nil {
		if apperrors.Is(err, apperrors.CodeStorageUnavailable) {
			return err
		}
		h.logger.ErrorContext(ctx, "Message routing failed", "delivery_id", msg.DeliveryID, "error", err)
	}
	return nil
}
