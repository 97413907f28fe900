// Package fingerprint computes the deduplication key of incoming content:
// the exact string for text, a SHA-256 digest of the decoded bytes for images.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/checkmate/checkmate/internal/inbound"
)

// ErrUnsupportedType is returned for message types that have no fingerprint.
var ErrUnsupportedType = errors.New("unsupported content type")

// Result is the content-derived key used to look up claims.
type Result struct {
	Type inbound.Type
	// Key is the value claims are deduplicated on.
	Key string
	// Digest is the hex SHA-256 of the media bytes. Empty for text.
	Digest string
}

// Compute fingerprints payload according to the message type.
// Text is matched verbatim: case, whitespace and punctuation are significant.
func Compute(t inbound.Type, payload []byte) (Result, error) {
	switch t {
	case inbound.TypeText:
		return Text(string(payload)), nil
	case inbound.TypeImage:
		return Image(payload), nil
	default:
		return Result{}, fmt.Errorf("cannot fingerprint %q: %w", t, ErrUnsupportedType)
	}
}

// Text returns the identity fingerprint of a text body.
func Text(body string) Result {
	return Result{Type: inbound.TypeText, Key: body}
}

// Image returns the digest fingerprint of decoded image bytes.
func Image(data []byte) Result {
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	return Result{Type: inbound.TypeImage, Key: digest, Digest: digest}
}
