// Package whatsapp is a thin WhatsApp Cloud API client and the webhook
// payload model. It carries no business logic.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/checkmate/checkmate/internal/errors"
	"github.com/checkmate/checkmate/internal/resilience"
)

const (
	DefaultBaseURL       = "https://graph.facebook.com/v19.0"
	DefaultTimeout       = 15 * time.Second
	DefaultMaxMediaBytes = 16 << 20
)

// Config configures the Cloud API client.
type Config struct {
	BaseURL       string
	Token         string
	PhoneNumberID string
	Timeout       time.Duration
	// RequestsPerSecond caps outbound calls; zero disables the limiter.
	RequestsPerSecond float64
	Burst             int
	MaxMediaBytes     int64
	// BreakerMaxFailures is the number of consecutive failures that opens
	// the circuit.
	BreakerMaxFailures int
}

// Client sends messages and fetches media for one business phone number.
type Client struct {
	baseURL       string
	token         string
	phoneNumberID string
	maxMediaBytes int64

	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *resilience.CircuitBreaker
	logger     *slog.Logger
}

// New creates a Client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Token == "" {
		return nil, apperrors.NewConfigError("whatsapp token is required", nil)
	}
	if cfg.PhoneNumberID == "" {
		return nil, apperrors.NewConfigError("whatsapp phone number id is required", nil)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxMediaBytes <= 0 {
		cfg.MaxMediaBytes = DefaultMaxMediaBytes
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("component", "whatsapp_client")

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))
	}

	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		token:         cfg.Token,
		phoneNumberID: cfg.PhoneNumberID,
		maxMediaBytes: cfg.MaxMediaBytes,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		limiter:       limiter,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:        "whatsapp",
			MaxFailures: cfg.BreakerMaxFailures,
			Timeout:     cfg.Timeout,
			IsFailure:   isServerFailure,
			Logger:      logger,
		}),
		logger: logger,
	}, nil
}

type textPayload struct {
	Body string `json:"body"`
}

type replyContext struct {
	MessageID string `json:"message_id"`
}

type sendTextRequest struct {
	MessagingProduct string        `json:"messaging_product"`
	RecipientType    string        `json:"recipient_type"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Text             textPayload   `json:"text"`
	Context          *replyContext `json:"context,omitempty"`
}

type markReadRequest struct {
	MessagingProduct string `json:"messaging_product"`
	Status           string `json:"status"`
	MessageID        string `json:"message_id"`
}

type mediaInfo struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

// SendText sends a text message, quoting inReplyTo when it is set.
func (c *Client) SendText(ctx context.Context, recipient, body, inReplyTo string) error {
	req := sendTextRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               recipient,
		Type:             "text",
		Text:             textPayload{Body: body},
	}
	if inReplyTo != "" {
		req.Context = &replyContext{MessageID: inReplyTo}
	}

	err := c.call(ctx, func(ctx context.Context) error {
		return c.doRequest(ctx, http.MethodPost, c.messagesPath(), req, nil)
	})
	if err != nil {
		return apperrors.NewAPIError("failed to send whatsapp text", err)
	}
	c.logger.DebugContext(ctx, "Text sent", "to", recipient, "in_reply_to", inReplyTo)
	return nil
}

// MarkRead marks a delivery as read.
func (c *Client) MarkRead(ctx context.Context, deliveryID string) error {
	req := markReadRequest{MessagingProduct: "whatsapp", Status: "read", MessageID: deliveryID}

	err := c.call(ctx, func(ctx context.Context) error {
		return c.doRequest(ctx, http.MethodPost, c.messagesPath(), req, nil)
	})
	if err != nil {
		return apperrors.NewAPIError("failed to mark whatsapp message as read", err)
	}
	return nil
}

// DownloadMedia resolves a media id to its CDN url and fetches the bytes.
func (c *Client) DownloadMedia(ctx context.Context, mediaID, mimeType string) ([]byte, error) {
	if mediaID == "" {
		return nil, fmt.Errorf("media id cannot be empty")
	}

	var info mediaInfo
	err := c.call(ctx, func(ctx context.Context) error {
		return c.doRequest(ctx, http.MethodGet, "/"+mediaID, nil, &info)
	})
	if err != nil {
		return nil, apperrors.NewAPIError(fmt.Sprintf("failed to resolve media %s", mediaID), err)
	}
	if info.URL == "" {
		return nil, apperrors.NewAPIError(fmt.Sprintf("media %s has no download url", mediaID), nil)
	}
	if mimeType != "" && info.MimeType != "" && info.MimeType != mimeType {
		c.logger.WarnContext(ctx, "Media mime type differs from webhook",
			"media_id", mediaID, "webhook", mimeType, "api", info.MimeType)
	}

	var data []byte
	err = c.call(ctx, func(ctx context.Context) error {
		var err error
		data, err = c.download(ctx, info.URL)
		return err
	})
	if err != nil {
		return nil, apperrors.NewAPIError(fmt.Sprintf("failed to download media %s", mediaID), err)
	}

	c.logger.DebugContext(ctx, "Media downloaded", "media_id", mediaID, "bytes", len(data))
	return data, nil
}

func (c *Client) messagesPath() string {
	return "/" + c.phoneNumberID + "/messages"
}

// call waits for the rate limiter and runs op through the breaker. An open
// circuit fails fast without taking a token.
func (c *Client) call(ctx context.Context, op func(context.Context) error) error {
	if c.breaker.State() != resilience.StateOpen {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}
	return c.breaker.Execute(ctx, op)
}

// isServerFailure keeps client errors (4xx) and cancellations from opening
// the circuit.
func isServerFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError || apiErr.StatusCode == http.StatusTooManyRequests
	}
	return true
}
