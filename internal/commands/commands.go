// Package commands implements the debug slash commands. They are reachable
// from untrusted senders, so they are only wired when debug commands are
// enabled outside production.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/checkmate/checkmate/internal/fingerprint"
	"github.com/checkmate/checkmate/internal/inbound"
	"github.com/checkmate/checkmate/internal/recorder"
	"github.com/checkmate/checkmate/internal/registry"
	"github.com/checkmate/checkmate/internal/router"
)

const (
	CommandGetID  = "/getid"
	CommandMockDB = "/mockdb"
)

// mockClaims seed the registry for local testing.
var mockClaims = []string{
	"Drinking warm water every 15 minutes prevents infection.",
	"The government will give every household $1000 if you forward this message.",
	"Your bank account has been suspended, click the link to verify your identity.",
}

// Handler dispatches debug commands.
type Handler struct {
	registry router.Registry
	recorder router.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Handler.
func New(reg router.Registry, rec router.Recorder, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		registry: reg,
		recorder: rec,
		logger:   logger.With("component", "commands"),
		now:      time.Now,
	}
}

// Handle runs the command in msg. Unknown commands are ignored.
func (h *Handler) Handle(ctx context.Context, msg inbound.Message, transport router.Transport) error {
	command := strings.ToLower(strings.TrimSpace(msg.Body()))

	switch command {
	case CommandGetID:
		return transport.SendText(ctx, msg.SenderID, msg.DeliveryID, msg.DeliveryID)

	case CommandMockDB:
		seeded, err := h.seed(ctx, msg)
		if err != nil {
			return err
		}
		h.logger.InfoContext(ctx, "Mock claims seeded", "count", seeded)
		return nil

	default:
		h.logger.DebugContext(ctx, "Unknown command", "command", command)
		return nil
	}
}

func (h *Handler) seed(ctx context.Context, msg inbound.Message) (int, error) {
	now := h.now().UTC()
	for i, text := range mockClaims {
		res, err := h.registry.FindOrCreate(ctx, registry.Draft{
			Fingerprint: fingerprint.Text(text),
			Content:     text,
			FirstSeenAt: now,
		})
		if err != nil {
			return i, fmt.Errorf("seed claim %d: %w", i, err)
		}

		_, err = h.recorder.Append(ctx, res.ClaimID, recorder.Entry{
			Source:     msg.Source,
			DeliveryID: fmt.Sprintf("%s.mock%d", msg.DeliveryID, i),
			Timestamp:  now,
			Type:       inbound.TypeText,
			Content:    text,
			Sender:     msg.SenderID,
		})
		if err != nil {
			return i, fmt.Errorf("seed instance %d: %w", i, err)
		}
	}
	return len(mockClaims), nil
}
