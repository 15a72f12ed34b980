package factory

import (
	"context"
	"fmt"

	"github.com/anime-shed/screenshot-inspector-go/internal/analyzer"
	"github.com/anime-shed/screenshot-inspector-go/internal/compressor"
	"github.com/anime-shed/screenshot-inspector-go/internal/config"
)

// AnalyzerType represents the supported model providers
type AnalyzerType string

const (
	// OpenAIAnalyzer uses OpenAI vision models
	OpenAIAnalyzer AnalyzerType = config.ProviderOpenAI
	// GeminiAnalyzer uses Google Gemini models
	GeminiAnalyzer AnalyzerType = config.ProviderGemini
)

// AnalyzerFactory creates screenshot analyzers
type AnalyzerFactory interface {
	CreateAnalyzer(ctx context.Context, analyzerType AnalyzerType) (analyzer.ScreenshotAnalyzer, error)
}

// analyzerFactory implements AnalyzerFactory from configuration
type analyzerFactory struct {
	cfg *config.Config
}

// NewAnalyzerFactory creates a new analyzer factory
func NewAnalyzerFactory(cfg *config.Config) AnalyzerFactory {
	return &analyzerFactory{cfg: cfg}
}

// CreateAnalyzer creates an analyzer based on the specified type
func (f *analyzerFactory) CreateAnalyzer(ctx context.Context, analyzerType AnalyzerType) (analyzer.ScreenshotAnalyzer, error) {
	switch analyzerType {
	case OpenAIAnalyzer:
		return analyzer.NewOpenAIAnalyzer(f.cfg.OpenAIAPIKey, f.cfg.OpenAIBaseURL, f.cfg.OpenAIModel), nil
	case GeminiAnalyzer:
		gemini, err := analyzer.NewGeminiAnalyzer(ctx, f.cfg.GeminiAPIKey, f.cfg.GeminiModel, "")
		if err != nil {
			return nil, err
		}
		return gemini, nil
	default:
		return nil, fmt.Errorf("unsupported analyzer type: %s", analyzerType)
	}
}

// CompressorFactory creates image compressors
type CompressorFactory interface {
	CreateCompressor() compressor.ImageCompressor
}

type compressorFactory struct {
	cfg *config.Config
}

// NewCompressorFactory creates a new compressor factory
func NewCompressorFactory(cfg *config.Config) CompressorFactory {
	return &compressorFactory{cfg: cfg}
}

// CreateCompressor builds the JPEG compressor from the configured width, quality and pixel limit
func (f *compressorFactory) CreateCompressor() compressor.ImageCompressor {
	return compressor.NewJPEGCompressor(f.cfg.TargetWidth, f.cfg.JPEGQuality, f.cfg.MaxScreenshotPixels)
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	AnalyzerFactory   AnalyzerFactory
	CompressorFactory CompressorFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		AnalyzerFactory:   NewAnalyzerFactory(cfg),
		CompressorFactory: NewCompressorFactory(cfg),
	}
}
