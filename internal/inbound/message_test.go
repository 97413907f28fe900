package inbound_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checkmate/checkmate/internal/inbound"
)

func validText() inbound.Message {
	return inbound.Message{
		Source:     inbound.SourceWhatsApp,
		SenderID:   "+111",
		DeliveryID: "wamid.1",
		Type:       inbound.TypeText,
		Timestamp:  time.Unix(1700000000, 0),
		Text:       &inbound.TextBody{Body: "Vaccines cause X"},
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(m *inbound.Message)
		wantErr bool
	}{
		{name: "valid text", mutate: func(*inbound.Message) {}},
		{name: "text without body is still valid", mutate: func(m *inbound.Message) { m.Text = nil }},
		{name: "missing sender", mutate: func(m *inbound.Message) { m.SenderID = "" }, wantErr: true},
		{name: "missing delivery id", mutate: func(m *inbound.Message) { m.DeliveryID = "" }, wantErr: true},
		{name: "missing timestamp", mutate: func(m *inbound.Message) { m.Timestamp = time.Time{} }, wantErr: true},
		{name: "image without body", mutate: func(m *inbound.Message) { m.Type = inbound.TypeImage; m.Text = nil }, wantErr: true},
		{
			name: "image with body",
			mutate: func(m *inbound.Message) {
				m.Type = inbound.TypeImage
				m.Image = &inbound.ImageBody{MediaID: "media-1", MimeType: "image/jpeg"}
			},
		},
		{name: "unsupported type passes validation", mutate: func(m *inbound.Message) { m.Type = inbound.TypeSticker; m.Text = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := validText()
			tt.mutate(&m)
			err := inbound.Validate(&m)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsCommand(t *testing.T) {
	t.Parallel()

	m := validText()
	assert.False(t, m.IsCommand())

	m.Text.Body = "/getid"
	assert.True(t, m.IsCommand())

	m.Text = nil
	assert.False(t, m.IsCommand())
	assert.Equal(t, "", m.Body())
}

func TestParseUnixTimestamp(t *testing.T) {
	t.Parallel()

	ts, err := inbound.ParseUnixTimestamp("1700000000")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), ts.Unix())

	_, err = inbound.ParseUnixTimestamp("yesterday")
	assert.Error(t, err)
}

func TestTypeValid(t *testing.T) {
	t.Parallel()

	assert.True(t, inbound.TypeText.Valid())
	assert.True(t, inbound.TypeDocument.Valid())
	assert.False(t, inbound.Type("gif").Valid())
	assert.False(t, inbound.Type("").Valid())
}
