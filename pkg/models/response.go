package models

// Source records which path produced a response.
type Source string

const (
	SourceLive     Source = "live"
	SourceCached   Source = "cached"
	SourceFallback Source = "fallback"
)

// Suggestion is a single code analysis finding.
type Suggestion struct {
	Type           string `json:"type"`
	Line           int    `json:"line"`
	Severity       string `json:"severity"`
	Message        string `json:"message"`
	Recommendation string `json:"recommendation"`
}

// TestCase is a generated test skeleton.
type TestCase struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Code        string `json:"code"`
	Expected    string `json:"expected"`
	Category    string `json:"category"`
}

// SecurityIssue is a single finding from a security scan.
type SecurityIssue struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Line        int    `json:"line"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion"`
	CWE         string `json:"cwe"`
}

// AIResponse is the single artifact returned across the system boundary.
// Only the fields relevant to Kind are populated; Source always truthfully
// reflects which path produced the content.
type AIResponse struct {
	Kind   Kind   `json:"kind"`
	Source Source `json:"source"`

	// analyze
	Suggestions []Suggestion `json:"suggestions,omitempty"`

	// generate_tests
	Tests []TestCase `json:"tests,omitempty"`

	// security_scan. The score stays in the payload even at zero: a fully
	// vulnerable file is exactly the case the field exists for.
	SecurityScore   int             `json:"security_score"`
	Issues          []SecurityIssue `json:"issues,omitempty"`
	Recommendations []string        `json:"recommendations,omitempty"`

	// optimize
	OptimizedCode   string   `json:"optimized_code,omitempty"`
	Improvements    []string `json:"improvements,omitempty"`
	PerformanceGain string   `json:"performance_gain,omitempty"`

	// chat
	Reply string `json:"response,omitempty"`

	Model string `json:"model,omitempty"`
	Usage *Usage `json:"usage,omitempty"`
}
