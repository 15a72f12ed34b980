package validation

import (
	"fmt"
	"mime/multipart"

	apperrors "github.com/anime-shed/screenshot-inspector-go/internal/errors"
)

// MissingFieldsMessage is reported when either form field is absent.
const MissingFieldsMessage = "Missing screenshot or business name."

// UploadValidator guards the analysis endpoint's multipart input
type UploadValidator struct {
	maxBytes int64
}

// NewUploadValidator creates a validator rejecting screenshots larger than maxBytes
func NewUploadValidator(maxBytes int64) *UploadValidator {
	return &UploadValidator{maxBytes: maxBytes}
}

// MaxBytes returns the configured screenshot limit
func (v *UploadValidator) MaxBytes() int64 {
	return v.maxBytes
}

// Validate checks field presence first, then the declared upload size.
// Only the size recorded in the multipart header is consulted; the file is not read.
func (v *UploadValidator) Validate(screenshot *multipart.FileHeader, businessName string) error {
	if screenshot == nil || businessName == "" {
		return apperrors.NewValidationError(MissingFieldsMessage, nil)
	}
	if screenshot.Size > v.maxBytes {
		return apperrors.NewPayloadTooLargeError(v.TooLargeMessage(), nil)
	}
	return nil
}

// TooLargeMessage renders the size guard message for the configured limit.
func (v *UploadValidator) TooLargeMessage() string {
	return fmt.Sprintf("Screenshot exceeds %g MB. Compress on the client or use Blob storage.",
		float64(v.maxBytes)/(1024*1024))
}
