package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codelens-ai/codelens/pkg/models"
)

// parseCompletion turns raw model output into a structured response for the
// given kind. Models wrap JSON in prose or code fences often enough that we
// extract the outermost object instead of decoding the text directly. Chat
// output is free-form and used as-is.
func parseCompletion(kind models.Kind, text string) (*models.AIResponse, error) {
	resp := &models.AIResponse{Kind: kind}

	if kind == models.KindChat {
		reply := strings.TrimSpace(text)
		if reply == "" {
			return nil, fmt.Errorf("empty chat completion")
		}
		resp.Reply = reply
		return resp, nil
	}

	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	switch kind {
	case models.KindAnalyze:
		var body struct {
			Suggestions []models.Suggestion `json:"suggestions"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("decode analyze result: %w", err)
		}
		if body.Suggestions == nil {
			return nil, fmt.Errorf("analyze result missing suggestions")
		}
		resp.Suggestions = body.Suggestions

	case models.KindGenerateTests:
		var body struct {
			Tests []models.TestCase `json:"tests"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("decode test result: %w", err)
		}
		if body.Tests == nil {
			return nil, fmt.Errorf("test result missing tests")
		}
		resp.Tests = body.Tests

	case models.KindSecurityScan:
		var body struct {
			SecurityScore   *int                   `json:"security_score"`
			Issues          []models.SecurityIssue `json:"issues"`
			Recommendations []string               `json:"recommendations"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("decode security result: %w", err)
		}
		if body.SecurityScore == nil {
			return nil, fmt.Errorf("security result missing score")
		}
		resp.SecurityScore = *body.SecurityScore
		resp.Issues = body.Issues
		resp.Recommendations = body.Recommendations

	case models.KindOptimize:
		var body struct {
			OptimizedCode   string   `json:"optimized_code"`
			Improvements    []string `json:"improvements"`
			PerformanceGain string   `json:"performance_gain"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("decode optimize result: %w", err)
		}
		if body.OptimizedCode == "" {
			return nil, fmt.Errorf("optimize result missing optimized_code")
		}
		resp.OptimizedCode = body.OptimizedCode
		resp.Improvements = body.Improvements
		resp.PerformanceGain = body.PerformanceGain

	default:
		return nil, fmt.Errorf("unhandled kind %q", kind)
	}

	return resp, nil
}

// extractJSON returns the outermost {...} object embedded in text.
func extractJSON(text string) ([]byte, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object in completion")
	}
	return []byte(text[start : end+1]), nil
}
