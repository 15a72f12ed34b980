package analyzer

import (
	"context"
	"errors"
)

// ErrEmptyReply is returned when the model service answers without any content
var ErrEmptyReply = errors.New("model returned no content")

// ScreenshotAnalyzer sends a compressed screenshot to a vision model and
// returns the model's raw textual reply. The reply is expected to be JSON
// but is not interpreted here.
type ScreenshotAnalyzer interface {
	AnalyzeScreenshot(ctx context.Context, base64Image, businessName string) (string, error)

	// Name identifies the provider in progress notifications and logs
	Name() string
}
