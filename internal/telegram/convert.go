package telegram

import (
	"strconv"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/checkmate/checkmate/internal/inbound"
)

// photoMimeType is what Telegram re-encodes every compressed photo to.
const photoMimeType = "image/jpeg"

// ToInbound normalizes a Telegram message. The sender is the chat, since that
// is where replies go; the delivery id is the message id within that chat.
func ToInbound(msg *models.Message) inbound.Message {
	out := inbound.Message{
		Source:     inbound.SourceTelegram,
		SenderID:   strconv.FormatInt(msg.Chat.ID, 10),
		DeliveryID: strconv.Itoa(msg.ID),
		Type:       messageType(msg),
		Timestamp:  time.Unix(int64(msg.Date), 0).UTC(),
		Forwarded:  inbound.Bool(msg.ForwardOrigin != nil),
	}

	switch out.Type {
	case inbound.TypeText:
		out.Text = &inbound.TextBody{Body: msg.Text}
	case inbound.TypeImage:
		// Sizes are ordered smallest first.
		largest := msg.Photo[len(msg.Photo)-1]
		out.Image = &inbound.ImageBody{
			MediaID:  largest.FileID,
			MimeType: photoMimeType,
			Caption:  msg.Caption,
		}
	}
	return out
}

func messageType(msg *models.Message) inbound.Type {
	switch {
	case len(msg.Photo) > 0:
		return inbound.TypeImage
	case msg.Sticker != nil:
		return inbound.TypeSticker
	case msg.Video != nil, msg.VideoNote != nil, msg.Animation != nil:
		return inbound.TypeVideo
	case msg.Audio != nil, msg.Voice != nil:
		return inbound.TypeAudio
	case msg.Document != nil:
		return inbound.TypeDocument
	case msg.Text != "":
		return inbound.TypeText
	default:
		return inbound.TypeUnknown
	}
}
