package analyzer

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/genai"
)

// GeminiAnalyzer uses the Gemini API with the screenshot as inline data.
type GeminiAnalyzer struct {
	client *genai.Client
	model  string
}

// NewGeminiAnalyzer creates a Gemini-backed analyzer. baseURL is only set in tests.
func NewGeminiAnalyzer(ctx context.Context, apiKey, model, baseURL string) (*GeminiAnalyzer, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiAnalyzer{client: client, model: model}, nil
}

// Name implements ScreenshotAnalyzer
func (g *GeminiAnalyzer) Name() string {
	return "Gemini"
}

// AnalyzeScreenshot implements ScreenshotAnalyzer
func (g *GeminiAnalyzer) AnalyzeScreenshot(ctx context.Context, base64Image, businessName string) (string, error) {
	imageData, err := base64.StdEncoding.DecodeString(base64Image)
	if err != nil {
		return "", fmt.Errorf("invalid base64 image: %w", err)
	}

	parts := []*genai.Part{
		genai.NewPartFromText(BuildPrompt(businessName)),
		{InlineData: &genai.Blob{Data: imageData, MIMEType: "image/jpeg"}},
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate content failed: %w", err)
	}

	if len(result.Candidates) == 0 {
		return "", ErrEmptyReply
	}
	return result.Text(), nil
}
