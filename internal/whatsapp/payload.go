package whatsapp

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/checkmate/checkmate/internal/errors"
	"github.com/checkmate/checkmate/internal/inbound"
)

// WebhookBody is a webhook callback from the Cloud API.
type WebhookBody struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Messages         []Message `json:"messages"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Message is one inbound message as sent by the Cloud API.
type Message struct {
	From      string        `json:"from" validate:"required"`
	ID        string        `json:"id" validate:"required"`
	Timestamp string        `json:"timestamp" validate:"required,number"`
	Type      string        `json:"type" validate:"required"`
	Text      *Text         `json:"text,omitempty"`
	Image     *Image        `json:"image,omitempty" validate:"required_if=Type image"`
	Context   *ForwardState `json:"context,omitempty"`
}

type Text struct {
	Body string `json:"body"`
}

type Image struct {
	ID       string `json:"id" validate:"required"`
	MimeType string `json:"mime_type" validate:"required"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// ForwardState is the "context" object; only the forwarding flags matter here.
type ForwardState struct {
	Forwarded           *bool `json:"forwarded,omitempty"`
	FrequentlyForwarded *bool `json:"frequently_forwarded,omitempty"`
}

var validate = validator.New()

// Messages returns every message of every "messages" change in the payload.
// Status callbacks carry no messages and yield nothing.
func (p *WebhookBody) Messages() []Message {
	var out []Message
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			if change.Field != "" && change.Field != "messages" {
				continue
			}
			out = append(out, change.Value.Messages...)
		}
	}
	return out
}

// ToInbound validates the wire message and normalizes it.
func (m Message) ToInbound() (inbound.Message, error) {
	if err := validate.Struct(m); err != nil {
		return inbound.Message{}, apperrors.NewValidationError(fmt.Sprintf("invalid whatsapp message %q", m.ID), err)
	}

	ts, err := inbound.ParseUnixTimestamp(m.Timestamp)
	if err != nil {
		return inbound.Message{}, apperrors.NewValidationError("invalid whatsapp timestamp", err)
	}

	msg := inbound.Message{
		Source:     inbound.SourceWhatsApp,
		SenderID:   m.From,
		DeliveryID: m.ID,
		Type:       inbound.Type(m.Type),
		Timestamp:  ts,
	}
	if m.Text != nil {
		msg.Text = &inbound.TextBody{Body: m.Text.Body}
	}
	if m.Image != nil {
		msg.Image = &inbound.ImageBody{
			MediaID:  m.Image.ID,
			MimeType: m.Image.MimeType,
			Caption:  m.Image.Caption,
		}
	}
	if m.Context != nil {
		msg.Forwarded = m.Context.Forwarded
		msg.FrequentlyForwarded = m.Context.FrequentlyForwarded
	}
	return msg, nil
}
