package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	DefaultServerURL = "https://api.telegram.org"

	photoDownloadTimeout = 30 * time.Second
	maxPhotoBytes        = 10 * 1024 * 1024
)

var errNotBound = errors.New("telegram transport is not bound to a bot")

// Transport sends replies and fetches photos through a bot. It is created
// before the bot so the router can be wired into the bot's handlers, and
// bound once the bot exists.
type Transport struct {
	bot        atomic.Pointer[bot.Bot]
	token      string
	serverURL  string
	maxBytes   int64
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTransport creates an unbound transport. serverURL may be empty.
func NewTransport(token, serverURL string, logger *slog.Logger) *Transport {
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		token:      token,
		serverURL:  strings.TrimRight(serverURL, "/"),
		maxBytes:   maxPhotoBytes,
		httpClient: &http.Client{Timeout: photoDownloadTimeout},
		logger:     logger.With("component", "telegram_transport"),
	}
}

// Bind attaches the bot used for API calls.
func (t *Transport) Bind(b *bot.Bot) {
	t.bot.Store(b)
}

// SendText sends body to the chat recipient, replying to message inReplyTo
// when it is set.
func (t *Transport) SendText(ctx context.Context, recipient, body, inReplyTo string) error {
	b := t.bot.Load()
	if b == nil {
		return errNotBound
	}

	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", recipient, err)
	}

	params := &bot.SendMessageParams{ChatID: chatID, Text: body}
	if messageID, err := strconv.Atoi(inReplyTo); err == nil && messageID > 0 {
		params.ReplyParameters = &models.ReplyParameters{MessageID: messageID}
	}

	if _, err := b.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// MarkRead is a no-op: the Bot API has no read receipts.
func (t *Transport) MarkRead(ctx context.Context, deliveryID string) error {
	t.logger.DebugContext(ctx, "Read receipts unsupported on telegram", "delivery_id", deliveryID)
	return nil
}

// DownloadMedia resolves a file id and downloads the file.
func (t *Transport) DownloadMedia(ctx context.Context, fileID, _ string) (data []byte, err error) {
	b := t.bot.Load()
	if b == nil {
		return nil, errNotBound
	}
	if fileID == "" {
		return nil, fmt.Errorf("empty fileID provided")
	}

	downloadCtx, cancel := context.WithTimeout(ctx, photoDownloadTimeout)
	defer cancel()

	fileObj, err := b.GetFile(downloadCtx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	if fileObj.FilePath == "" {
		return nil, fmt.Errorf("empty file path returned from Telegram")
	}

	url := fmt.Sprintf("%s/file/bot%s/%s", t.serverURL, t.token, fileObj.FilePath)
	req, err := http.NewRequestWithContext(downloadCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close response body: %w", closeErr)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	// Truncated bytes would fingerprint as a different image.
	data, err = io.ReadAll(io.LimitReader(resp.Body, t.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file data: %w", err)
	}
	if int64(len(data)) > t.maxBytes {
		return nil, fmt.Errorf("file exceeds %d bytes", t.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("received empty file data")
	}
	return data, nil
}
