package models

import (
	"encoding/json"
	"fmt"
)

const (
	// CompletedMessage is returned alongside every successful analysis.
	CompletedMessage = "Analysis completed"

	DefaultSummary         = "No summary."
	DefaultCategoryMessage = "N/A"
)

// Category is one scored compliance dimension.
type Category struct {
	Score   float64 `json:"score"`
	Message string  `json:"message"`
}

// Metadata holds the per-dimension breakdown of a screenshot analysis.
type Metadata struct {
	Summary         string   `json:"summary"`
	RestrictedItems Category `json:"restrictedItems"`
	ProductPages    Category `json:"productPages"`
	Ownership       Category `json:"ownership"`
	OverallSafety   Category `json:"overallSafety"`
}

// ScreenshotAnalysis is the normalized scoring record returned to callers.
// Every field is always populated.
type ScreenshotAnalysis struct {
	Score    float64  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// AnalysisResponse is the success envelope of the analysis endpoint.
type AnalysisResponse struct {
	Message            string             `json:"message"`
	ScreenshotAnalysis ScreenshotAnalysis `json:"screenshotAnalysis"`
}

// ErrorResponse is the failure envelope of every endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DefaultCategory is substituted for any missing category.
func DefaultCategory() Category {
	return Category{Score: 0, Message: DefaultCategoryMessage}
}

// NormalizeAnalysis parses a model reply and merges it over the canonical
// defaults. Only JSON syntax errors are reported; anything absent or of the
// wrong type falls back to its default.
func NormalizeAnalysis(reply string) (ScreenshotAnalysis, error) {
	var raw interface{}
	if err := json.Unmarshal([]byte(reply), &raw); err != nil {
		return ScreenshotAnalysis{}, fmt.Errorf("failed to parse model reply as JSON: %w", err)
	}

	root, _ := raw.(map[string]interface{})
	meta, _ := root["metadata"].(map[string]interface{})

	return ScreenshotAnalysis{
		Score: numberOr(root["score"], 0),
		Metadata: Metadata{
			Summary:         stringOr(meta["summary"], DefaultSummary),
			RestrictedItems: categoryOrDefault(meta["restrictedItems"]),
			ProductPages:    categoryOrDefault(meta["productPages"]),
			Ownership:       categoryOrDefault(meta["ownership"]),
			OverallSafety:   categoryOrDefault(meta["overallSafety"]),
		},
	}, nil
}

func categoryOrDefault(v interface{}) Category {
	fields, ok := v.(map[string]interface{})
	if !ok {
		return DefaultCategory()
	}
	return Category{
		Score:   numberOr(fields["score"], 0),
		Message: stringOr(fields["message"], DefaultCategoryMessage),
	}
}

func numberOr(v interface{}, fallback float64) float64 {
	if n, ok := v.(float64); ok {
		return n
	}
	return fallback
}

func stringOr(v interface{}, fallback string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fallback
}
