// Package registry resolves a content fingerprint to its canonical claim,
// creating the claim the first time the content is seen.
package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/checkmate/checkmate/internal/database"
	apperrors "github.com/checkmate/checkmate/internal/errors"
	"github.com/checkmate/checkmate/internal/fingerprint"
)

// DefaultCategory is assigned to every new claim.
const DefaultCategory = "fake news"

// Draft carries the values used when a new claim has to be created.
// They are ignored when the content already has a claim.
type Draft struct {
	Fingerprint fingerprint.Result
	// Content is the text body, or the caption for images.
	Content     string
	FirstSeenAt time.Time

	MediaRef        string
	MimeType        string
	StorageLocation string
}

// Resolution is the outcome of FindOrCreate.
type Resolution struct {
	ClaimID string
	WasNew  bool
}

// Registry owns the claim schema and its initial field values.
type Registry struct {
	store    database.Store
	logger   *slog.Logger
	category string
	newID    func() string
}

// Option customizes a Registry.
type Option func(*Registry)

// WithCategory overrides the category assigned to new claims.
func WithCategory(category string) Option {
	return func(r *Registry) {
		if category != "" {
			r.category = category
		}
	}
}

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// New creates a Registry backed by store.
func New(store database.Store, logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Registry{
		store:    store,
		logger:   logger.With("component", "claim_registry"),
		category: DefaultCategory,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FindOrCreate returns the claim whose (type, fingerprint) matches the draft,
// creating it when none exists. Existing claims are never modified.
//
// Creation goes through a conditional insert keyed on (type, dedup_key), so two
// concurrent deliveries of the same new content converge on a single claim.
func (r *Registry) FindOrCreate(ctx context.Context, draft Draft) (Resolution, error) {
	fp := draft.Fingerprint
	if fp.Type == "" {
		return Resolution{}, fmt.Errorf("draft has no fingerprint")
	}
	claimType := string(fp.Type)

	if id, ok, err := r.lookup(ctx, claimType, fp.Key); err != nil {
		return Resolution{}, err
	} else if ok {
		return Resolution{ClaimID: id}, nil
	}

	claim := r.newClaim(draft)
	inserted, err := r.store.InsertClaimIfAbsent(ctx, claim)
	if err != nil {
		return Resolution{}, err
	}
	if inserted {
		r.logger.InfoContext(ctx, "Created claim", "claim_id", claim.ID, "type", claimType)
		return Resolution{ClaimID: claim.ID, WasNew: true}, nil
	}

	// Another delivery created the claim between our lookup and insert.
	r.logger.DebugContext(ctx, "Lost claim creation race, resolving winner", "type", claimType)
	id, ok, err := r.lookup(ctx, claimType, fp.Key)
	if err != nil {
		return Resolution{}, err
	}
	if !ok {
		return Resolution{}, apperrors.NewStorageError("claim vanished after conflicting insert", nil)
	}
	return Resolution{ClaimID: id}, nil
}

// lookup returns the first matching claim. More than one match breaks the
// unique-content invariant; it is reported and the oldest claim wins.
func (r *Registry) lookup(ctx context.Context, claimType, key string) (string, bool, error) {
	claims, err := r.store.FindClaims(ctx, claimType, key)
	if err != nil {
		return "", false, err
	}

	switch len(claims) {
	case 0:
		return "", false, nil
	case 1:
		return claims[0].ID, true, nil
	default:
		r.logger.WarnContext(ctx, "Duplicate claim anomaly, using oldest claim",
			"error", apperrors.NewDuplicateClaimError(claimType, len(claims)),
			"claim_id", claims[0].ID,
			"matches", len(claims))
		return claims[0].ID, true, nil
	}
}

func (r *Registry) newClaim(d Draft) *database.Claim {
	claim := &database.Claim{
		ID:          r.newID(),
		Type:        string(d.Fingerprint.Type),
		DedupKey:    d.Fingerprint.Key,
		Category:    r.category,
		Content:     database.NullString(d.Content),
		Fingerprint: database.NullString(d.Fingerprint.Digest),
		FirstSeenAt: d.FirstSeenAt.UTC(),
	}
	if d.Fingerprint.Digest != "" {
		claim.MediaRef = database.NullString(d.MediaRef)
		claim.MimeType = database.NullString(d.MimeType)
		claim.StorageLocation = database.NullString(d.StorageLocation)
	}
	return claim
}
