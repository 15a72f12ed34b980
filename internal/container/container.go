package container

import (
	"context"
	"fmt"
	"net/http"

	"github.com/anime-shed/screenshot-inspector-go/internal/analyzer"
	"github.com/anime-shed/screenshot-inspector-go/internal/compressor"
	"github.com/anime-shed/screenshot-inspector-go/internal/config"
	"github.com/anime-shed/screenshot-inspector-go/internal/factory"
	"github.com/anime-shed/screenshot-inspector-go/internal/logger"
	"github.com/anime-shed/screenshot-inspector-go/internal/observer"
	"github.com/anime-shed/screenshot-inspector-go/internal/service"
	"github.com/anime-shed/screenshot-inspector-go/internal/transport"
	"github.com/anime-shed/screenshot-inspector-go/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config                    *config.Config
	imageCompressor           compressor.ImageCompressor
	screenshotAnalyzer        analyzer.ScreenshotAnalyzer
	publisher                 *observer.EventPublisher
	metrics                   *observer.MetricsObserver
	stream                    *observer.StreamObserver
	screenshotAnalysisService service.ScreenshotAnalysisService
	handler                   http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	components := factory.NewComponentFactory(cfg)

	screenshotAnalyzer, err := components.AnalyzerFactory.CreateAnalyzer(ctx, factory.AnalyzerType(cfg.ModelProvider))
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}
	return newContainer(cfg, components.CompressorFactory.CreateCompressor(), screenshotAnalyzer)
}

func newContainer(cfg *config.Config, imageCompressor compressor.ImageCompressor, screenshotAnalyzer analyzer.ScreenshotAnalyzer) (*Container, error) {
	publisher, err := observer.NewEventPublisher()
	if err != nil {
		return nil, err
	}

	metrics := observer.NewMetricsObserver()
	stream := observer.NewStreamObserver()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(metrics)
	publisher.Subscribe(stream)

	screenshotAnalysisService := service.NewScreenshotAnalysisService(imageCompressor, screenshotAnalyzer, publisher, cfg.AnalysisTimeout)
	validator := validation.NewUploadValidator(cfg.MaxScreenshotBytes)
	handler := transport.NewHandler(screenshotAnalysisService, validator, metrics, stream, cfg)

	return &Container{
		config:                    cfg,
		imageCompressor:           imageCompressor,
		screenshotAnalyzer:        screenshotAnalyzer,
		publisher:                 publisher,
		metrics:                   metrics,
		stream:                    stream,
		screenshotAnalysisService: screenshotAnalysisService,
		handler:                   handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Publisher returns the progress event publisher
func (c *Container) Publisher() *observer.EventPublisher {
	return c.publisher
}

// Analyzer returns the configured model client
func (c *Container) Analyzer() analyzer.ScreenshotAnalyzer {
	return c.screenshotAnalyzer
}
