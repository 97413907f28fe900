// Package router dispatches normalized deliveries through the claim pipeline:
// type policy check, fingerprinting, claim find-or-create and instance append,
// followed by the read acknowledgement.
package router

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/checkmate/checkmate/internal/errors"
	"github.com/checkmate/checkmate/internal/fingerprint"
	"github.com/checkmate/checkmate/internal/inbound"
	"github.com/checkmate/checkmate/internal/media"
	"github.com/checkmate/checkmate/internal/policy"
	"github.com/checkmate/checkmate/internal/recorder"
	"github.com/checkmate/checkmate/internal/registry"
)

// Policy supplies the allow-list and user-facing responses.
type Policy interface {
	SupportedTypes(ctx context.Context, source string) policy.TypeSet
	Response(ctx context.Context, key string) string
}

// Registry resolves content to its canonical claim.
type Registry interface {
	FindOrCreate(ctx context.Context, draft registry.Draft) (registry.Resolution, error)
}

// Recorder appends instances under a claim.
type Recorder interface {
	Append(ctx context.Context, claimID string, e recorder.Entry) (string, error)
	Delivered(ctx context.Context, msg inbound.Message) (bool, error)
}

// Transport is the channel a delivery arrived on.
type Transport interface {
	SendText(ctx context.Context, recipient, body, inReplyTo string) error
	MarkRead(ctx context.Context, deliveryID string) error
	DownloadMedia(ctx context.Context, mediaID, mimeType string) ([]byte, error)
}

// MediaStore persists image bytes.
type MediaStore interface {
	Store(ctx context.Context, path string, data []byte) error
}

// CommandHandler runs slash commands. Routers without one treat commands as
// ordinary text.
type CommandHandler interface {
	Handle(ctx context.Context, msg inbound.Message, transport Transport) error
}

const defaultUploadTimeout = 30 * time.Second

// Deps holds the collaborators of a Router.
type Deps struct {
	Policy    Policy
	Registry  Registry
	Recorder  Recorder
	Transport Transport
	Media     MediaStore
	// Commands is optional.
	Commands CommandHandler
	Logger   *slog.Logger
}

// Router handles the deliveries of one transport.
type Router struct {
	policy    Policy
	registry  Registry
	recorder  Recorder
	transport Transport
	media     MediaStore
	commands  CommandHandler
	logger    *slog.Logger

	uploads       sync.WaitGroup
	uploadTimeout time.Duration
}

// New creates a Router.
func New(deps Deps) (*Router, error) {
	if deps.Policy == nil || deps.Registry == nil || deps.Recorder == nil || deps.Transport == nil {
		return nil, fmt.Errorf("router requires policy, registry, recorder and transport")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Router{
		policy:        deps.Policy,
		registry:      deps.Registry,
		recorder:      deps.Recorder,
		transport:     deps.Transport,
		media:         deps.Media,
		commands:      deps.Commands,
		logger:        logger.With("component", "router"),
		uploadTimeout: defaultUploadTimeout,
	}, nil
}

// Route handles one delivery. The delivery is marked read once processing
// completes, whatever the outcome. A returned error means the delivery could
// not be processed at all (typically STORAGE_UNAVAILABLE); it is not marked
// read so the channel can redeliver it.
func (r *Router) Route(ctx context.Context, msg inbound.Message) (Outcome, error) {
	if err := inbound.Validate(&msg); err != nil {
		return Outcome{}, apperrors.NewValidationError("rejected inbound message", err)
	}

	logger := r.logger.With("source", msg.Source, "delivery_id", msg.DeliveryID, "type", msg.Type)

	outcome, err := r.dispatch(ctx, logger, msg)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to route message", "error", err, "code", apperrors.Code(err))
		return Outcome{}, err
	}

	if err := r.transport.MarkRead(ctx, msg.DeliveryID); err != nil {
		logger.WarnContext(ctx, "Failed to mark message as read", "error", err)
	}

	logger.InfoContext(ctx, "Message routed", "outcome", outcome.String())
	return outcome, nil
}

func (r *Router) dispatch(ctx context.Context, logger *slog.Logger, msg inbound.Message) (Outcome, error) {
	// A batch that failed part-way is redelivered whole; its recorded
	// siblings must not gain a second instance.
	seen, err := r.recorder.Delivered(ctx, msg)
	if err != nil {
		return Outcome{}, fmt.Errorf("check delivery: %w", err)
	}
	if seen {
		logger.InfoContext(ctx, "Skipping redelivered message")
		return ignored(ReasonRedelivered), nil
	}

	supported := r.policy.SupportedTypes(ctx, msg.Source)
	if !supported.Contains(msg.Type) {
		r.reject(ctx, logger, msg)
		return rejected(ReasonUnsupportedType), nil
	}

	switch msg.Type {
	case inbound.TypeText:
		return r.routeText(ctx, logger, msg)
	case inbound.TypeImage:
		return r.routeImage(ctx, logger, msg)
	default:
		// Allowed by policy but no pipeline exists for it.
		logger.WarnContext(ctx, "Supported type has no claim pipeline",
			"error", fmt.Errorf("%s: %w", msg.Type, fingerprint.ErrUnsupportedType),
			"supported", supported.Strings())
		r.reject(ctx, logger, msg)
		return rejected(ReasonUnsupportedType), nil
	}
}

func (r *Router) reject(ctx context.Context, logger *slog.Logger, msg inbound.Message) {
	reply := r.policy.Response(ctx, policy.ResponseUnsupportedType)
	logger.InfoContext(ctx, "Rejecting message", "error", apperrors.NewUnsupportedTypeError(string(msg.Type)))
	if err := r.transport.SendText(ctx, msg.SenderID, reply, msg.DeliveryID); err != nil {
		logger.WarnContext(ctx, "Failed to send rejection reply", "error", err)
	}
}

func (r *Router) routeText(ctx context.Context, logger *slog.Logger, msg inbound.Message) (Outcome, error) {
	body := msg.Body()
	if body == "" {
		logger.DebugContext(ctx, "Ignoring message", "error", apperrors.NewEmptyBodyError())
		return ignored(ReasonEmptyBody), nil
	}

	if r.commands != nil && msg.IsCommand() {
		if err := r.commands.Handle(ctx, msg, r.transport); err != nil {
			logger.WarnContext(ctx, "Command failed", "command", body, "error", err)
		}
		return Outcome{Kind: KindCommandExecuted}, nil
	}

	fp, err := fingerprint.Compute(msg.Type, []byte(body))
	if err != nil {
		return Outcome{}, err
	}

	return r.record(ctx, msg, registry.Draft{
		Fingerprint: fp,
		Content:     body,
		FirstSeenAt: msg.Timestamp,
	}, nil)
}

func (r *Router) routeImage(ctx context.Context, logger *slog.Logger, msg inbound.Message) (Outcome, error) {
	img := msg.Image

	data, err := r.transport.DownloadMedia(ctx, img.MediaID, img.MimeType)
	if err != nil {
		err = apperrors.NewMediaDownloadError(img.MediaID, err)
		logger.ErrorContext(ctx, "Aborting image message", "error", err)
		return failed(ReasonMediaDownloadFailure, err), nil
	}

	fp, err := fingerprint.Compute(msg.Type, data)
	if err != nil {
		return Outcome{}, err
	}

	return r.record(ctx, msg, registry.Draft{
		Fingerprint:     fp,
		Content:         img.Caption,
		FirstSeenAt:     msg.Timestamp,
		MediaRef:        img.MediaID,
		MimeType:        img.MimeType,
		StorageLocation: media.ImagePath(img.MediaID, img.MimeType),
	}, data)
}

// record resolves the claim and appends the instance. media is uploaded only
// when the claim is new.
func (r *Router) record(ctx context.Context, msg inbound.Message, draft registry.Draft, data []byte) (Outcome, error) {
	res, err := r.registry.FindOrCreate(ctx, draft)
	if err != nil {
		return Outcome{}, fmt.Errorf("resolve claim: %w", err)
	}

	if res.WasNew && data != nil {
		r.upload(ctx, draft.StorageLocation, data)
	}

	entry := recorder.EntryFromMessage(msg)
	entry.Fingerprint = draft.Fingerprint.Digest

	instanceID, err := r.recorder.Append(ctx, res.ClaimID, entry)
	if err != nil {
		return Outcome{}, fmt.Errorf("append instance to claim %s: %w", res.ClaimID, err)
	}

	return recorded(res.ClaimID, instanceID, res.WasNew), nil
}

// upload stores media in the background. Failures are logged only; the claim
// keeps its storage location either way.
func (r *Router) upload(ctx context.Context, path string, data []byte) {
	if r.media == nil {
		return
	}

	r.uploads.Add(1)
	go func() {
		defer r.uploads.Done()

		uploadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.uploadTimeout)
		defer cancel()

		if err := r.media.Store(uploadCtx, path, data); err != nil {
			r.logger.ErrorContext(uploadCtx, "Failed to upload media", "path", path, "error", err)
			return
		}
		r.logger.InfoContext(uploadCtx, "Media uploaded", "path", path)
	}()
}

// Wait blocks until pending media uploads finish.
func (r *Router) Wait() {
	r.uploads.Wait()
}
