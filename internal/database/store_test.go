package database_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checkmate/checkmate/internal/database"
)

func newTestStore(t *testing.T) database.Store {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "checkmate.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return database.NewStore(db, nil)
}

func textClaim(body string) *database.Claim {
	now := time.Unix(1700000000, 0).UTC()
	return &database.Claim{
		ID:          uuid.NewString(),
		Type:        "text",
		DedupKey:    body,
		Category:    "fake news",
		Content:     database.NullString(body),
		FirstSeenAt: now,
	}
}

func TestInsertClaimIfAbsent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	first := textClaim("Vaccines cause X")
	inserted, err := store.InsertClaimIfAbsent(ctx, first)
	require.NoError(t, err)
	assert.True(t, inserted)

	second := textClaim("Vaccines cause X")
	inserted, err = store.InsertClaimIfAbsent(ctx, second)
	require.NoError(t, err)
	assert.False(t, inserted, "same (type, dedup_key) must not insert twice")

	// Same key under another type is a different claim.
	image := textClaim("Vaccines cause X")
	image.Type = "image"
	inserted, err = store.InsertClaimIfAbsent(ctx, image)
	require.NoError(t, err)
	assert.True(t, inserted)

	claims, err := store.FindClaims(ctx, "text", "Vaccines cause X")
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, first.ID, claims[0].ID)
	assert.False(t, claims[0].Assessed)
	assert.False(t, claims[0].PollStarted)
	assert.False(t, claims[0].TruthScore.Valid)
	assert.False(t, claims[0].IsScam.Valid)
	assert.Equal(t, first.FirstSeenAt.Unix(), claims[0].FirstSeenAt.Unix())
}

func TestInsertClaimIfAbsent_Concurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.InsertClaimIfAbsent(ctx, textClaim("same content"))
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, inserted)
	claims, err := store.FindClaims(ctx, "text", "same content")
	require.NoError(t, err)
	assert.Len(t, claims, 1)
}

func TestInstances(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	claim := textClaim("hello")
	_, err := store.InsertClaimIfAbsent(ctx, claim)
	require.NoError(t, err)

	for i, delivery := range []string{"wamid.1", "wamid.2"} {
		err := store.InsertInstance(ctx, &database.Instance{
			ID:         uuid.NewString(),
			ClaimID:    claim.ID,
			Source:     "whatsapp",
			DeliveryID: database.NullString(delivery),
			Timestamp:  time.Unix(1700000000+int64(i), 0).UTC(),
			Type:       "text",
			Content:    database.NullString("hello"),
			Sender:     "+111",
			Forwarded:  database.NullBool(nil),
		})
		require.NoError(t, err)
	}

	instances, err := store.ListInstances(ctx, claim.ID)
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, "wamid.1", instances[0].DeliveryID.String)
	assert.Equal(t, "wamid.2", instances[1].DeliveryID.String)
	assert.False(t, instances[0].Replied)
	assert.False(t, instances[0].Forwarded.Valid)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, database.Stats{Claims: 1, Instances: 2, Unassessed: 1}, stats)
}

func TestHasDelivery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	claim := textClaim("hello")
	_, err := store.InsertClaimIfAbsent(ctx, claim)
	require.NoError(t, err)
	require.NoError(t, store.InsertInstance(ctx, &database.Instance{
		ID:         uuid.NewString(),
		ClaimID:    claim.ID,
		Source:     "whatsapp",
		DeliveryID: database.NullString("wamid.1"),
		Timestamp:  time.Unix(1700000000, 0).UTC(),
		Type:       "text",
		Sender:     "+111",
	}))

	tests := []struct {
		name, source, sender, delivery string
		want                           bool
	}{
		{name: "recorded", source: "whatsapp", sender: "+111", delivery: "wamid.1", want: true},
		{name: "other id", source: "whatsapp", sender: "+111", delivery: "wamid.2"},
		{name: "other source", source: "telegram", sender: "+111", delivery: "wamid.1"},
		{name: "other sender", source: "whatsapp", sender: "+222", delivery: "wamid.1"},
		{name: "empty id", source: "whatsapp", sender: "+111", delivery: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.HasDelivery(ctx, tt.source, tt.sender, tt.delivery)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInsertInstance_UnknownClaim(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	err := store.InsertInstance(context.Background(), &database.Instance{
		ID:        uuid.NewString(),
		ClaimID:   "missing",
		Source:    "whatsapp",
		Timestamp: time.Now(),
		Type:      "text",
		Sender:    "+111",
	})
	assert.Error(t, err, "foreign key must reject instances without a claim")
}

func TestGetClaim(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	missing, err := store.GetClaim(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	claim := textClaim("x")
	_, err = store.InsertClaimIfAbsent(ctx, claim)
	require.NoError(t, err)

	got, err := store.GetClaim(ctx, claim.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "fake news", got.Category)
	assert.Equal(t, "x", got.Content.String)
}

func TestParameters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	param, err := store.GetParameter(ctx, "supportedTypes")
	require.NoError(t, err)
	assert.Nil(t, param)

	require.NoError(t, store.SetParameter(ctx, "supportedTypes", `{"whatsapp":["text"]}`))
	require.NoError(t, store.SetParameter(ctx, "supportedTypes", `{"whatsapp":["text","image"]}`))

	param, err = store.GetParameter(ctx, "supportedTypes")
	require.NoError(t, err)
	require.NotNil(t, param)
	assert.Equal(t, `{"whatsapp":["text","image"]}`, param.Value)
}

func TestCompact(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	c, err := store.Compact(context.Background())
	require.NoError(t, err)
	assert.Positive(t, c.PageSize)
	assert.Positive(t, c.PagesAfter)
	assert.GreaterOrEqual(t, c.ReclaimedBytes(), int64(0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Compact(ctx)
	assert.Error(t, err)
}
