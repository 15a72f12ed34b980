package service

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anime-shed/screenshot-inspector-go/internal/compressor"
	apperrors "github.com/anime-shed/screenshot-inspector-go/internal/errors"
	"github.com/anime-shed/screenshot-inspector-go/internal/observer"
	"github.com/anime-shed/screenshot-inspector-go/pkg/models"
)

// trace records the order in which collaborators are touched
type trace struct {
	steps []string
}

type stubCompressor struct {
	trace  *trace
	result *compressor.CompressedImage
	err    error
}

func (s *stubCompressor) Compress(ctx context.Context, data []byte) (*compressor.CompressedImage, error) {
	s.trace.steps = append(s.trace.steps, "compress")
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubAnalyzer struct {
	trace       *trace
	reply       string
	err         error
	delay       time.Duration
	gotImage    string
	gotBusiness string
	gotDeadline bool
}

func (s *stubAnalyzer) Name() string { return "OpenAI" }

func (s *stubAnalyzer) AnalyzeScreenshot(ctx context.Context, base64Image, businessName string) (string, error) {
	s.trace.steps = append(s.trace.steps, "analyze")
	s.gotImage = base64Image
	s.gotBusiness = businessName
	_, s.gotDeadline = ctx.Deadline()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.reply, s.err
}

type recordingSubject struct {
	trace  *trace
	events []observer.AlertEvent
}

func (r *recordingSubject) Subscribe(observer.Observer)   {}
func (r *recordingSubject) Unsubscribe(observer.Observer) {}
func (r *recordingSubject) Wait()                         {}
func (r *recordingSubject) Publish(ctx context.Context, event observer.AlertEvent) {
	r.trace.steps = append(r.trace.steps, "event:"+string(event.Type))
	r.events = append(r.events, event)
}

type fixture struct {
	trace      *trace
	compressor *stubCompressor
	analyzer   *stubAnalyzer
	events     *recordingSubject
}

func newFixture(reply string) *fixture {
	tr := &trace{}
	return &fixture{
		trace: tr,
		compressor: &stubCompressor{trace: tr, result: &compressor.CompressedImage{
			Data: []byte("jpeg-bytes"), Width: 800, Height: 600,
		}},
		analyzer: &stubAnalyzer{trace: tr, reply: reply},
		events:   &recordingSubject{trace: tr},
	}
}

func (f *fixture) service(timeout time.Duration) ScreenshotAnalysisService {
	return NewScreenshotAnalysisService(f.compressor, f.analyzer, f.events, timeout)
}

func TestAnalyzeScreenshot_FullPipeline(t *testing.T) {
	f := newFixture(`{"score": 91, "metadata": {"summary": "Fine.", "ownership": {"score": 80, "message": "Matches."}}}`)

	result, err := f.service(time.Second).AnalyzeScreenshot(context.Background(), []byte("png-bytes"), "Acme")
	require.NoError(t, err)

	assert.Equal(t, []string{"event:ImageCompression", "compress", "event:OpenAI", "analyze"}, f.trace.steps)
	assert.Equal(t, "Compressing image", f.events.events[0].Message)
	assert.Equal(t, "Sending screenshot to OpenAI", f.events.events[1].Message)

	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("jpeg-bytes")), f.analyzer.gotImage)
	assert.Equal(t, "Acme", f.analyzer.gotBusiness)
	assert.True(t, f.analyzer.gotDeadline)

	assert.Equal(t, 91.0, result.Score)
	assert.Equal(t, "Fine.", result.Metadata.Summary)
	assert.Equal(t, models.Category{Score: 80, Message: "Matches."}, result.Metadata.Ownership)
	assert.Equal(t, models.DefaultCategory(), result.Metadata.RestrictedItems)
}

func TestAnalyzeScreenshot_ScoreOnlyReplyIsDefaulted(t *testing.T) {
	f := newFixture(`{"score": 7}`)

	result, err := f.service(0).AnalyzeScreenshot(context.Background(), []byte("png"), "Acme")
	require.NoError(t, err)

	assert.Equal(t, 7.0, result.Score)
	assert.Equal(t, models.DefaultSummary, result.Metadata.Summary)
	for _, c := range []models.Category{result.Metadata.RestrictedItems, result.Metadata.ProductPages, result.Metadata.Ownership, result.Metadata.OverallSafety} {
		assert.Equal(t, models.DefaultCategory(), c)
	}
	assert.False(t, f.analyzer.gotDeadline)
}

func TestAnalyzeScreenshot_Failures(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(f *fixture)
		timeout      time.Duration
		expectedType apperrors.ErrorType
		expectSteps  []string
	}{
		{
			name:         "compression fails",
			setup:        func(f *fixture) { f.compressor.err = errors.New("failed to decode image: unknown format") },
			expectedType: apperrors.ErrorTypeProcessing,
			expectSteps:  []string{"event:ImageCompression", "compress"},
		},
		{
			name:         "model call fails",
			setup:        func(f *fixture) { f.analyzer.err = errors.New("connection refused") },
			expectedType: apperrors.ErrorTypeUpstream,
			expectSteps:  []string{"event:ImageCompression", "compress", "event:OpenAI", "analyze"},
		},
		{
			name:         "model call times out",
			setup:        func(f *fixture) { f.analyzer.delay = time.Second },
			timeout:      20 * time.Millisecond,
			expectedType: apperrors.ErrorTypeTimeout,
			expectSteps:  []string{"event:ImageCompression", "compress", "event:OpenAI", "analyze"},
		},
		{
			name:         "reply is not JSON",
			setup:        func(f *fixture) { f.analyzer.reply = "I cannot help with that." },
			expectedType: apperrors.ErrorTypeProcessing,
			expectSteps:  []string{"event:ImageCompression", "compress", "event:OpenAI", "analyze"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(`{"score": 1}`)
			tt.setup(f)

			result, err := f.service(tt.timeout).AnalyzeScreenshot(context.Background(), []byte("png"), "Acme")
			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, apperrors.IsType(err, tt.expectedType), "unexpected error: %v", err)
			assert.Equal(t, http.StatusInternalServerError, apperrors.GetStatusCode(err))
			assert.Equal(t, tt.expectSteps, f.trace.steps)
		})
	}
}
