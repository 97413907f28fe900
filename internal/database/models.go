package database

import (
	"database/sql"
	"time"
)

// Claim is the canonical record of one distinct piece of reported content.
// Assessment fields (PollStarted, Assessed, TruthScore, IsIrrelevant, IsScam,
// CustomReply) belong to the assessment subsystem; ingestion only writes their
// initial values.
type Claim struct {
	ID       string `db:"id"`
	Type     string `db:"type"`
	DedupKey string `db:"dedup_key"`
	Category string `db:"category"`

	Content     sql.NullString `db:"content"`
	Fingerprint sql.NullString `db:"fingerprint"`
	FirstSeenAt time.Time      `db:"first_seen_at"`

	PollStarted  bool            `db:"poll_started"`
	Assessed     bool            `db:"assessed"`
	TruthScore   sql.NullFloat64 `db:"truth_score"`
	IsIrrelevant sql.NullBool    `db:"is_irrelevant"`
	IsScam       sql.NullBool    `db:"is_scam"`
	CustomReply  sql.NullString  `db:"custom_reply"`

	MediaRef        sql.NullString `db:"media_ref"`
	MimeType        sql.NullString `db:"mime_type"`
	StorageLocation sql.NullString `db:"storage_location"`

	CreatedAt time.Time `db:"created_at"`
}

// Instance records a single delivery of a claim's content.
type Instance struct {
	ID         string         `db:"id"`
	ClaimID    string         `db:"claim_id"`
	Source     string         `db:"source"`
	DeliveryID sql.NullString `db:"delivery_id"`
	Timestamp  time.Time      `db:"timestamp"`
	Type       string         `db:"type"`
	Content    sql.NullString `db:"content"`
	Sender     string         `db:"sender"`

	Forwarded           sql.NullBool `db:"forwarded"`
	FrequentlyForwarded sql.NullBool `db:"frequently_forwarded"`
	Replied             bool         `db:"replied"`

	Fingerprint sql.NullString `db:"fingerprint"`
	MediaRef    sql.NullString `db:"media_ref"`
	MimeType    sql.NullString `db:"mime_type"`

	CreatedAt time.Time `db:"created_at"`
}

// SystemParameter is a named JSON configuration document, such as the
// supported types allow-list or the localized bot responses.
type SystemParameter struct {
	Key       string    `db:"name"`
	Value     string    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Stats summarizes the registry contents.
type Stats struct {
	Claims     int `db:"claims"`
	Instances  int `db:"instances"`
	Unassessed int `db:"unassessed"`
}

// Compaction reports the database file size around a Compact call.
type Compaction struct {
	PageSize    int64
	PagesBefore int64
	PagesAfter  int64
}

// ReclaimedBytes is the space returned to the filesystem.
func (c Compaction) ReclaimedBytes() int64 {
	return (c.PagesBefore - c.PagesAfter) * c.PageSize
}

// NullString converts an optional string, treating "" as NULL.
func NullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// NullBool converts an optional flag.
func NullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
