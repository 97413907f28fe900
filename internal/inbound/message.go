// Package inbound defines the normalized message every channel adapter hands
// to the router. Optional payload fields are resolved here, at the boundary,
// so the pipeline never probes loosely-typed payloads.
package inbound

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Type is the declared message type of a delivery.
type Type string

// Message types known to the channels. Only a configurable subset is accepted.
const (
	TypeText     Type = "text"
	TypeImage    Type = "image"
	TypeSticker  Type = "sticker"
	TypeAudio    Type = "audio"
	TypeVideo    Type = "video"
	TypeDocument Type = "document"
	TypeUnknown  Type = "unknown"
)

// Valid reports whether t is one of the known message types.
func (t Type) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeSticker, TypeAudio, TypeVideo, TypeDocument, TypeUnknown:
		return true
	}
	return false
}

// Sources that deliver messages.
const (
	SourceWhatsApp = "whatsapp"
	SourceTelegram = "telegram"
)

// CommandPrefix marks a text body as a debug command.
const CommandPrefix = "/"

// TextBody is the payload of a text delivery.
type TextBody struct {
	Body string
}

// ImageBody is the payload of an image delivery.
type ImageBody struct {
	MediaID  string `validate:"required"`
	MimeType string `validate:"required"`
	Caption  string
}

// Message is one delivery, normalized across channels.
type Message struct {
	Source     string    `validate:"required"`
	SenderID   string    `validate:"required"`
	DeliveryID string    `validate:"required"`
	Type       Type      `validate:"required"`
	Timestamp  time.Time `validate:"required"`

	Text  *TextBody
	Image *ImageBody `validate:"required_if=Type image"`

	Forwarded           *bool
	FrequentlyForwarded *bool
}

// Body returns the text body, or "" when the delivery carries none.
func (m Message) Body() string {
	if m.Text == nil {
		return ""
	}
	return m.Text.Body
}

// IsCommand reports whether the text body is a slash command.
func (m Message) IsCommand() bool {
	return m.Type == TypeText && strings.HasPrefix(m.Body(), CommandPrefix)
}

var validate = validator.New()

// Validate checks the required fields of a normalized message.
func Validate(m *Message) error {
	if m == nil {
		return fmt.Errorf("message is nil")
	}
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("invalid inbound message: %w", err)
	}
	return nil
}

// ParseUnixTimestamp parses a unix-seconds string as sent by the WhatsApp
// Cloud API.
func ParseUnixTimestamp(s string) (time.Time, error) {
	secs, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid unix timestamp %q: %w", s, err)
	}
	return time.Unix(secs, 0).UTC(), nil
}

// Bool returns a pointer to b. Adapters use it for optional flags.
func Bool(b bool) *bool {
	return &b
}
