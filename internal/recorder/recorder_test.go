package recorder_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checkmate/checkmate/internal/database"
	apperrors "github.com/checkmate/checkmate/internal/errors"
	"github.com/checkmate/checkmate/internal/inbound"
	"github.com/checkmate/checkmate/internal/recorder"
)

func newStoreWithClaim(t *testing.T) (database.Store, string) {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "checkmate.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := database.NewStore(db, nil)
	claim := &database.Claim{
		ID:          "claim-1",
		Type:        "text",
		DedupKey:    "hello",
		Category:    "fake news",
		Content:     database.NullString("hello"),
		FirstSeenAt: time.Unix(1700000000, 0).UTC(),
	}
	_, err = store.InsertClaimIfAbsent(context.Background(), claim)
	require.NoError(t, err)
	return store, claim.ID
}

func TestAppend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, claimID := newStoreWithClaim(t)
	rec := recorder.New(store, nil)
	delivery := inbound.Message{Source: inbound.SourceWhatsApp, SenderID: "+111", DeliveryID: "wamid.1"}

	seen, err := rec.Delivered(ctx, delivery)
	require.NoError(t, err)
	assert.False(t, seen)

	entry := recorder.Entry{
		Source:     inbound.SourceWhatsApp,
		DeliveryID: "wamid.1",
		Timestamp:  time.Unix(1700000000, 0),
		Type:       inbound.TypeText,
		Content:    "hello",
		Sender:     "+111",
		Forwarded:  inbound.Bool(true),
	}

	first, err := rec.Append(ctx, claimID, entry)
	require.NoError(t, err)
	// Byte-identical replays still append.
	second, err := rec.Append(ctx, claimID, entry)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	seen, err = rec.Delivered(ctx, delivery)
	require.NoError(t, err)
	assert.True(t, seen)

	instances, err := store.ListInstances(ctx, claimID)
	require.NoError(t, err)
	require.Len(t, instances, 2)

	got := instances[0]
	assert.Equal(t, first, got.ID)
	assert.Equal(t, "whatsapp", got.Source)
	assert.Equal(t, "wamid.1", got.DeliveryID.String)
	assert.Equal(t, "+111", got.Sender)
	assert.Equal(t, "hello", got.Content.String)
	assert.True(t, got.Forwarded.Valid)
	assert.True(t, got.Forwarded.Bool)
	assert.False(t, got.FrequentlyForwarded.Valid)
	assert.False(t, got.Replied)
	assert.False(t, got.Fingerprint.Valid)
}

func TestAppend_StoreRejection(t *testing.T) {
	t.Parallel()
	store, _ := newStoreWithClaim(t)
	rec := recorder.New(store, nil)

	_, err := rec.Append(context.Background(), "no-such-claim", recorder.Entry{
		Source:    inbound.SourceWhatsApp,
		Timestamp: time.Now(),
		Type:      inbound.TypeText,
		Sender:    "+111",
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeStorageUnavailable))

	_, err = rec.Append(context.Background(), "", recorder.Entry{})
	assert.Error(t, err)
}

func TestEntryFromMessage(t *testing.T) {
	t.Parallel()

	ts := time.Unix(1700000000, 0).UTC()
	tests := []struct {
		name string
		msg  inbound.Message
		want recorder.Entry
	}{
		{
			name: "text",
			msg: inbound.Message{
				Source: inbound.SourceWhatsApp, SenderID: "+111", DeliveryID: "wamid.1",
				Type: inbound.TypeText, Timestamp: ts, Text: &inbound.TextBody{Body: "hi"},
			},
			want: recorder.Entry{
				Source: inbound.SourceWhatsApp, DeliveryID: "wamid.1", Timestamp: ts,
				Type: inbound.TypeText, Content: "hi", Sender: "+111",
			},
		},
		{
			name: "image with caption",
			msg: inbound.Message{
				Source: inbound.SourceWhatsApp, SenderID: "+222", DeliveryID: "wamid.2",
				Type: inbound.TypeImage, Timestamp: ts,
				Image:               &inbound.ImageBody{MediaID: "m1", MimeType: "image/png", Caption: "look"},
				FrequentlyForwarded: inbound.Bool(false),
			},
			want: recorder.Entry{
				Source: inbound.SourceWhatsApp, DeliveryID: "wamid.2", Timestamp: ts,
				Type: inbound.TypeImage, Content: "look", Sender: "+222",
				MediaRef: "m1", MimeType: "image/png",
				FrequentlyForwarded: inbound.Bool(false),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, recorder.EntryFromMessage(tt.msg))
		})
	}
}
