package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/screenshot-inspector-go/internal/analyzer"
	"github.com/anime-shed/screenshot-inspector-go/internal/compressor"
	apperrors "github.com/anime-shed/screenshot-inspector-go/internal/errors"
	"github.com/anime-shed/screenshot-inspector-go/internal/logger"
	"github.com/anime-shed/screenshot-inspector-go/internal/observer"
	"github.com/anime-shed/screenshot-inspector-go/pkg/models"
)

// ScreenshotAnalysisService runs a validated screenshot through compression,
// the model service and reply normalization.
type ScreenshotAnalysisService interface {
	AnalyzeScreenshot(ctx context.Context, screenshot []byte, businessName string) (*models.ScreenshotAnalysis, error)
}

type screenshotAnalysisService struct {
	compressor      compressor.ImageCompressor
	analyzer        analyzer.ScreenshotAnalyzer
	events          observer.Subject
	analysisTimeout time.Duration
}

// NewScreenshotAnalysisService creates the analysis pipeline.
// A zero analysisTimeout leaves the model call bounded only by ctx.
func NewScreenshotAnalysisService(
	imageCompressor compressor.ImageCompressor,
	screenshotAnalyzer analyzer.ScreenshotAnalyzer,
	events observer.Subject,
	analysisTimeout time.Duration,
) ScreenshotAnalysisService {
	return &screenshotAnalysisService{
		compressor:      imageCompressor,
		analyzer:        screenshotAnalyzer,
		events:          events,
		analysisTimeout: analysisTimeout,
	}
}

// AnalyzeScreenshot compresses the screenshot, asks the model for a score and
// normalizes the reply. Every failure is returned as an *apperrors.AppError.
func (s *screenshotAnalysisService) AnalyzeScreenshot(ctx context.Context, screenshot []byte, businessName string) (*models.ScreenshotAnalysis, error) {
	log := logger.FromContext(ctx).WithFields(logrus.Fields{
		"business_name":  businessName,
		"original_bytes": len(screenshot),
		"provider":       s.analyzer.Name(),
	})

	s.events.Publish(ctx, observer.NewAlertEvent(observer.ImageCompression, "Compressing image"))

	compressStart := time.Now()
	compressed, err := s.compressor.Compress(ctx, screenshot)
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to compress screenshot", err)
	}
	log.WithFields(logrus.Fields{
		"width":            compressed.Width,
		"height":           compressed.Height,
		"original_width":   compressed.OriginalWidth,
		"compressed_bytes": len(compressed.Data),
		"compress_ms":      time.Since(compressStart).Milliseconds(),
	}).Debug("Screenshot compressed")

	base64Image := compressed.Base64()

	provider := s.analyzer.Name()
	s.events.Publish(ctx, observer.NewAlertEvent(observer.EventType(provider), "Sending screenshot to "+provider))

	callCtx := ctx
	if s.analysisTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.analysisTimeout)
		defer cancel()
	}

	modelStart := time.Now()
	reply, err := s.analyzer.AnalyzeScreenshot(callCtx, base64Image, businessName)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError("model analysis timed out", err)
		}
		return nil, apperrors.NewUpstreamError("model analysis failed", err)
	}
	log.WithField("model_ms", time.Since(modelStart).Milliseconds()).Debug("Model replied")

	result, err := models.NormalizeAnalysis(reply)
	if err != nil {
		log.WithError(err).WithField("reply_length", len(reply)).Warn("Model reply is not valid JSON")
		return nil, apperrors.NewProcessingError("invalid model reply", err)
	}

	return &result, nil
}
