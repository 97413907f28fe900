package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/checkmate/checkmate/internal/errors"
)

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts. Every failure
// caused by the database itself is returned as a STORAGE_UNAVAILABLE error.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// FindClaims returns the claims matching (type, dedupKey), oldest first.
	FindClaims(ctx context.Context, claimType, dedupKey string) ([]Claim, error)

	// InsertClaimIfAbsent inserts claim unless a claim with the same
	// (type, dedup_key) exists. It reports whether the row was inserted.
	InsertClaimIfAbsent(ctx context.Context, claim *Claim) (bool, error)

	// GetClaim retrieves a claim by ID. Returns nil, nil if not found.
	GetClaim(ctx context.Context, id string) (*Claim, error)

	// InsertInstance appends an instance under its claim.
	InsertInstance(ctx context.Context, instance *Instance) error

	// HasDelivery reports whether an instance was recorded for deliveryID from
	// sender on source.
	HasDelivery(ctx context.Context, source, sender, deliveryID string) (bool, error)

	// ListInstances returns the instances of a claim in creation order.
	ListInstances(ctx context.Context, claimID string) ([]Instance, error)

	// GetStats counts claims and instances.
	GetStats(ctx context.Context) (Stats, error)

	// GetParameter retrieves a system parameter document. Returns nil, nil if not found.
	GetParameter(ctx context.Context, key string) (*SystemParameter, error)

	// SetParameter inserts or replaces a system parameter document.
	SetParameter(ctx context.Context, key, value string) error

	// Compact reclaims free pages and refreshes planner statistics.
	Compact(ctx context.Context) (Compaction, error)
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

const claimColumns = `id, type, dedup_key, category, content, fingerprint, first_seen_at,
	poll_started, assessed, truth_score, is_irrelevant, is_scam, custom_reply,
	media_ref, mime_type, storage_location, created_at`

const instanceColumns = `id, claim_id, source, delivery_id, timestamp, type, content, sender,
	forwarded, frequently_forwarded, replied, fingerprint, media_ref, mime_type, created_at`

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperrors.NewStorageError("database ping failed", err)
	}
	return nil
}

// FindClaims retrieves every claim with the given type and dedup key.
func (s *sqlxStore) FindClaims(ctx context.Context, claimType, dedupKey string) ([]Claim, error) {
	if claimType == "" {
		return nil, fmt.Errorf("claim type cannot be empty")
	}

	var claims []Claim
	query := `SELECT ` + claimColumns + `
	          FROM claims
	          WHERE type = ? AND dedup_key = ?
	          ORDER BY first_seen_at ASC, id ASC`

	err := s.db.SelectContext(ctx, &claims, query, claimType, dedupKey)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error finding claims", "type", claimType, "error", err)
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to find %s claims", claimType), err)
	}

	s.logger.DebugContext(ctx, "Found matching claims", "type", claimType, "count", len(claims))
	return claims, nil
}

// InsertClaimIfAbsent relies on the unique (type, dedup_key) index: a
// concurrent insert of the same content affects zero rows instead of failing.
func (s *sqlxStore) InsertClaimIfAbsent(ctx context.Context, claim *Claim) (bool, error) {
	if claim == nil {
		return false, fmt.Errorf("cannot insert nil claim")
	}
	if claim.ID == "" || claim.Type == "" {
		return false, fmt.Errorf("claim must have an id and a type")
	}
	if claim.FirstSeenAt.IsZero() {
		return false, fmt.Errorf("claim must have a non-zero first_seen_at")
	}
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = time.Now().UTC()
	}

	query := `
        INSERT INTO claims (` + claimColumns + `)
        VALUES (:id, :type, :dedup_key, :category, :content, :fingerprint, :first_seen_at,
                :poll_started, :assessed, :truth_score, :is_irrelevant, :is_scam, :custom_reply,
                :media_ref, :mime_type, :storage_location, :created_at)
        ON CONFLICT (type, dedup_key) DO NOTHING;
    `

	result, err := s.db.NamedExecContext(ctx, query, claim)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error inserting claim", "claim_id", claim.ID, "type", claim.Type, "error", err)
		return false, apperrors.NewStorageError(fmt.Sprintf("failed to insert claim %s", claim.ID), err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewStorageError("failed to read affected rows for claim insert", err)
	}

	inserted := affected == 1
	s.logger.DebugContext(ctx, "Claim insert attempted", "claim_id", claim.ID, "type", claim.Type, "inserted", inserted)
	return inserted, nil
}

// GetClaim retrieves a claim by ID. Returns nil, nil if not found.
func (s *sqlxStore) GetClaim(ctx context.Context, id string) (*Claim, error) {
	if id == "" {
		return nil, fmt.Errorf("claim id cannot be empty")
	}

	var claim Claim
	err := s.db.GetContext(ctx, &claim, `SELECT `+claimColumns+` FROM claims WHERE id = ?`, id)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No claim found", "claim_id", id)
		return nil, nil

	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching claim", "claim_id", id, "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting claim by ID", "claim_id", id, "error", err)
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to get claim %s", id), err)
	}

	return &claim, nil
}

// InsertInstance appends a new instance row. Each call is a single atomic
// insert; there is no uniqueness constraint beyond the generated ID.
func (s *sqlxStore) InsertInstance(ctx context.Context, instance *Instance) error {
	if instance == nil {
		return fmt.Errorf("cannot insert nil instance")
	}
	if instance.ID == "" || instance.ClaimID == "" {
		return fmt.Errorf("instance must have an id and a claim_id")
	}
	if instance.Timestamp.IsZero() {
		return fmt.Errorf("instance must have a non-zero timestamp")
	}
	if instance.CreatedAt.IsZero() {
		instance.CreatedAt = time.Now().UTC()
	}

	query := `
        INSERT INTO instances (` + instanceColumns + `)
        VALUES (:id, :claim_id, :source, :delivery_id, :timestamp, :type, :content, :sender,
                :forwarded, :frequently_forwarded, :replied, :fingerprint, :media_ref, :mime_type, :created_at);
    `

	result, err := s.db.NamedExecContext(ctx, query, instance)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error inserting instance",
			"claim_id", instance.ClaimID, "instance_id", instance.ID, "error", err)
		return apperrors.NewStorageError(fmt.Sprintf("failed to insert instance under claim %s", instance.ClaimID), err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected != 1 {
		s.logger.WarnContext(ctx, "Unexpected number of rows affected when inserting instance",
			"claim_id", instance.ClaimID, "affected", affected)
	}

	s.logger.DebugContext(ctx, "Instance inserted", "claim_id", instance.ClaimID, "instance_id", instance.ID)
	return nil
}

// HasDelivery looks up the channel's message id among recorded instances.
// Sender is part of the key because some channels number messages per chat.
func (s *sqlxStore) HasDelivery(ctx context.Context, source, sender, deliveryID string) (bool, error) {
	if deliveryID == "" {
		return false, nil
	}

	var found bool
	query := `SELECT EXISTS (
	            SELECT 1 FROM instances WHERE source = ? AND delivery_id = ? AND sender = ?)`
	if err := s.db.GetContext(ctx, &found, query, source, deliveryID, sender); err != nil {
		s.logger.ErrorContext(ctx, "Error looking up delivery", "source", source, "delivery_id", deliveryID, "error", err)
		return false, apperrors.NewStorageError(fmt.Sprintf("failed to look up delivery %s", deliveryID), err)
	}
	return found, nil
}

// ListInstances returns the instances of a claim ordered by creation.
func (s *sqlxStore) ListInstances(ctx context.Context, claimID string) ([]Instance, error) {
	if claimID == "" {
		return nil, fmt.Errorf("claim id cannot be empty")
	}

	var instances []Instance
	query := `SELECT ` + instanceColumns + `
	          FROM instances
	          WHERE claim_id = ?
	          ORDER BY created_at ASC, rowid ASC`

	if err := s.db.SelectContext(ctx, &instances, query, claimID); err != nil {
		s.logger.ErrorContext(ctx, "Error listing instances", "claim_id", claimID, "error", err)
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to list instances of claim %s", claimID), err)
	}
	return instances, nil
}

// GetStats counts claims, instances and claims still awaiting assessment.
func (s *sqlxStore) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats
	query := `SELECT
	            (SELECT COUNT(*) FROM claims) AS claims,
	            (SELECT COUNT(*) FROM instances) AS instances,
	            (SELECT COUNT(*) FROM claims WHERE assessed = 0) AS unassessed`

	if err := s.db.GetContext(ctx, &stats, query); err != nil {
		s.logger.ErrorContext(ctx, "Error computing stats", "error", err)
		return Stats{}, apperrors.NewStorageError("failed to compute stats", err)
	}
	return stats, nil
}

// GetParameter retrieves a system parameter document. Returns nil, nil if not found.
func (s *sqlxStore) GetParameter(ctx context.Context, key string) (*SystemParameter, error) {
	if key == "" {
		return nil, fmt.Errorf("parameter key cannot be empty")
	}

	var param SystemParameter
	err := s.db.GetContext(ctx, &param, `SELECT name, value, updated_at FROM system_parameters WHERE name = ?`, key)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No system parameter found", "key", key)
		return nil, nil

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting system parameter", "key", key, "error", err)
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to get parameter %s", key), err)
	}

	return &param, nil
}

// SetParameter inserts or replaces a system parameter document.
func (s *sqlxStore) SetParameter(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("parameter key cannot be empty")
	}

	query := `
        INSERT INTO system_parameters (name, value, updated_at)
        VALUES (?, ?, ?)
        ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;
    `
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		s.logger.ErrorContext(ctx, "Error saving system parameter", "key", key, "error", err)
		return apperrors.NewStorageError(fmt.Sprintf("failed to save parameter %s", key), err)
	}

	s.logger.InfoContext(ctx, "System parameter saved", "key", key)
	return nil
}

// Compact refreshes the query planner statistics and rebuilds the database
// file. VACUUM cannot run inside a transaction.
func (s *sqlxStore) Compact(ctx context.Context) (Compaction, error) {
	var c Compaction
	if err := s.db.GetContext(ctx, &c.PageSize, "PRAGMA page_size"); err != nil {
		return c, apperrors.NewStorageError("failed to read page size", err)
	}
	if err := s.db.GetContext(ctx, &c.PagesBefore, "PRAGMA page_count"); err != nil {
		return c, apperrors.NewStorageError("failed to read page count", err)
	}

	for _, stmt := range []string{"PRAGMA optimize", "VACUUM"} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			s.logger.ErrorContext(ctx, "Database compaction failed", "statement", stmt, "error", err)
			return c, apperrors.NewStorageError(fmt.Sprintf("failed to run %s", stmt), err)
		}
	}

	if err := s.db.GetContext(ctx, &c.PagesAfter, "PRAGMA page_count"); err != nil {
		return c, apperrors.NewStorageError("failed to read page count", err)
	}
	return c, nil
}
