package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anime-shed/screenshot-inspector-go/internal/config"
)

func testConfig(provider string) *config.Config {
	return &config.Config{
		MaxRequestBodySize: 10 * 1024 * 1024,
		MaxScreenshotBytes: 4718592,
		TargetWidth:        800,
		JPEGQuality:        65,
		ModelProvider:      provider,
		OpenAIAPIKey:       "sk-test",
		OpenAIModel:        "gpt-4o",
		GeminiAPIKey:       "gemini-test",
		GeminiModel:        "gemini-2.5-flash",
	}
}

func TestNewContainer(t *testing.T) {
	tests := []struct {
		provider     string
		expectedName string
	}{
		{provider: config.ProviderOpenAI, expectedName: "OpenAI"},
		{provider: config.ProviderGemini, expectedName: "Gemini"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			c, err := NewContainer(context.Background(), testConfig(tt.provider))
			require.NoError(t, err)

			assert.Equal(t, tt.expectedName, c.Analyzer().Name())
			assert.NotNil(t, c.Publisher())
			assert.Equal(t, tt.provider, c.Config().ModelProvider)

			rec := httptest.NewRecorder()
			c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestNewContainer_UnknownProvider(t *testing.T) {
	_, err := NewContainer(context.Background(), testConfig("llama"))
	assert.Error(t, err)
}
