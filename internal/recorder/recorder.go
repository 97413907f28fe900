// Package recorder appends one instance per accepted delivery under its claim.
package recorder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/checkmate/checkmate/internal/database"
	"github.com/checkmate/checkmate/internal/inbound"
)

// Entry holds the delivery-specific metadata of an instance.
type Entry struct {
	Source     string
	DeliveryID string
	Timestamp  time.Time
	Type       inbound.Type
	// Content is the raw text, or the caption for images.
	Content string
	Sender  string

	Forwarded           *bool
	FrequentlyForwarded *bool

	// Image-only, copied from the claim for per-instance lookups.
	Fingerprint string
	MediaRef    string
	MimeType    string
}

// EntryFromMessage builds the entry for a normalized delivery.
func EntryFromMessage(msg inbound.Message) Entry {
	e := Entry{
		Source:              msg.Source,
		DeliveryID:          msg.DeliveryID,
		Timestamp:           msg.Timestamp,
		Type:                msg.Type,
		Content:             msg.Body(),
		Sender:              msg.SenderID,
		Forwarded:           msg.Forwarded,
		FrequentlyForwarded: msg.FrequentlyForwarded,
	}
	if msg.Image != nil {
		e.Content = msg.Image.Caption
		e.MediaRef = msg.Image.MediaID
		e.MimeType = msg.Image.MimeType
	}
	return e
}

// Recorder is a pure append log of instances.
type Recorder struct {
	store  database.Store
	logger *slog.Logger
	newID  func() string
}

// New creates a Recorder backed by store.
func New(store database.Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Recorder{
		store:  store,
		logger: logger.With("component", "instance_recorder"),
		newID:  uuid.NewString,
	}
}

// Append stores a new instance under claimID and returns its id. There is no
// uniqueness check: replaying a delivery produces another instance. Store
// errors are returned unchanged.
func (r *Recorder) Append(ctx context.Context, claimID string, e Entry) (string, error) {
	if claimID == "" {
		return "", fmt.Errorf("claim id cannot be empty")
	}

	instance := &database.Instance{
		ID:                  r.newID(),
		ClaimID:             claimID,
		Source:              e.Source,
		DeliveryID:          database.NullString(e.DeliveryID),
		Timestamp:           e.Timestamp.UTC(),
		Type:                string(e.Type),
		Content:             database.NullString(e.Content),
		Sender:              e.Sender,
		Forwarded:           database.NullBool(e.Forwarded),
		FrequentlyForwarded: database.NullBool(e.FrequentlyForwarded),
		Fingerprint:         database.NullString(e.Fingerprint),
		MediaRef:            database.NullString(e.MediaRef),
		MimeType:            database.NullString(e.MimeType),
	}

	if err := r.store.InsertInstance(ctx, instance); err != nil {
		return "", err
	}

	r.logger.DebugContext(ctx, "Instance appended",
		"claim_id", claimID, "instance_id", instance.ID, "delivery_id", e.DeliveryID)
	return instance.ID, nil
}

// Delivered reports whether an instance already exists for the channel's
// delivery id. Append never consults it.
func (r *Recorder) Delivered(ctx context.Context, msg inbound.Message) (bool, error) {
	return r.store.HasDelivery(ctx, msg.Source, msg.SenderID, msg.DeliveryID)
}
