// Package errors defines the coded application errors used to classify
// per-delivery failures across the ingestion pipeline.
package errors

import (
	"errors"
	"fmt"
)

// Standard error codes for the application.
const (
	CodeUnknown            = "UNKNOWN"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeUnsupportedType    = "UNSUPPORTED_TYPE"
	CodeEmptyBody          = "EMPTY_BODY"
	CodeMediaDownload      = "MEDIA_DOWNLOAD"
	CodeDuplicateClaim     = "DUPLICATE_CLAIM"
	CodeValidation         = "VALIDATION"
	CodeConfig             = "CONFIG"
	CodeAPI                = "API"
)

// ApplicationError is the interface that all our custom errors implement.
type ApplicationError interface {
	error
	Code() string
	Unwrap() error
}

// Error represents a basic application error.
type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

func (e *Error) Code() string {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the code of the first ApplicationError in err's chain,
// or CodeUnknown if it doesn't carry one.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}

	return CodeUnknown
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return err != nil && Code(err) == code
}

func newError(code, message string, cause error) error {
	return &Error{code: code, message: message, err: cause}
}

// NewStorageError marks a failure of the backing store. It is retryable by
// the transport's redelivery, never by this process.
func NewStorageError(message string, cause error) error {
	return newError(CodeStorageUnavailable, message, cause)
}

// NewUnsupportedTypeError reports a message type outside the allow-list.
func NewUnsupportedTypeError(messageType string) error {
	return newError(CodeUnsupportedType, fmt.Sprintf("unsupported message type %q", messageType), nil)
}

// NewEmptyBodyError reports a text delivery without a body.
func NewEmptyBodyError() error {
	return newError(CodeEmptyBody, "text message has no body", nil)
}

// NewMediaDownloadError reports a failed media fetch from the transport.
func NewMediaDownloadError(mediaID string, cause error) error {
	return newError(CodeMediaDownload, fmt.Sprintf("failed to download media %s", mediaID), cause)
}

// NewDuplicateClaimError describes more than one claim sharing the same
// canonical content. It is logged, never returned to callers.
func NewDuplicateClaimError(messageType string, matches int) error {
	return newError(CodeDuplicateClaim, fmt.Sprintf("%d %s claims share the same content", matches, messageType), nil)
}

func NewValidationError(message string, cause error) error {
	return newError(CodeValidation, message, cause)
}

func NewConfigError(message string, cause error) error {
	return newError(CodeConfig, message, cause)
}

func NewAPIError(message string, cause error) error {
	return newError(CodeAPI, message, cause)
}
