package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/checkmate/checkmate/internal/errors"
	"github.com/checkmate/checkmate/internal/inbound"
	"github.com/checkmate/checkmate/internal/logger"
	"github.com/checkmate/checkmate/internal/router"
)

type fakeRouter struct {
	routed []inbound.Message
	err    error
}

func (f *fakeRouter) Route(_ context.Context, msg inbound.Message) (router.Outcome, error) {
	f.routed = append(f.routed, msg)
	return router.Outcome{Kind: router.KindRecorded}, f.err
}

func privateText(text string) *models.Update {
	return &models.Update{
		ID: 1,
		Message: &models.Message{
			ID:   7,
			Date: 1700000000,
			Chat: models.Chat{ID: 99, Type: models.ChatTypePrivate},
			Text: text,
		},
	}
}

func TestDefaultHandler(t *testing.T) {
	t.Parallel()

	group := privateText("group chatter")
	group.Message.Chat.Type = models.ChatTypeGroup

	tests := []struct {
		name       string
		update     *models.Update
		routerErr  error
		wantRouted int
	}{
		{name: "private message", update: privateText("Vaccines cause X"), wantRouted: 1},
		{name: "group message", update: group},
		{name: "non-message update", update: &models.Update{ID: 2}},
		{
			name:       "storage failure is logged",
			update:     privateText("x"),
			routerErr:  apperrors.NewStorageError("down", errors.New("locked")),
			wantRouted: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := &fakeRouter{err: tt.routerErr}
			h := DefaultHandler(HandlerDeps{Logger: logger.Discard(), Router: r})

			h(context.Background(), nil, tt.update)
			require.Len(t, r.routed, tt.wantRouted)
			if tt.wantRouted > 0 {
				assert.Equal(t, inbound.SourceTelegram, r.routed[0].Source)
				assert.Equal(t, "99", r.routed[0].SenderID)
				assert.Equal(t, "7", r.routed[0].DeliveryID)
			}
		})
	}
}

func TestRegisterAllCommands(t *testing.T) {
	t.Parallel()

	cmds := RegisterAllCommands(HandlerDeps{Logger: logger.Discard()})
	require.Contains(t, cmds, "/start")
	assert.Equal(t, "start", cmds["/start"].Pattern)
	assert.NotNil(t, cmds["/start"].Handler)
}
