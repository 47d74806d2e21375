package models

import "strings"

// Kind identifies an AI feature request type.
type Kind string

const (
	KindChat          Kind = "chat"
	KindAnalyze       Kind = "analyze"
	KindGenerateTests Kind = "generate_tests"
	KindSecurityScan  Kind = "security_scan"
	KindOptimize      Kind = "optimize"
)

// Valid reports whether k is a recognized request kind.
func (k Kind) Valid() bool {
	switch k {
	case KindChat, KindAnalyze, KindGenerateTests, KindSecurityScan, KindOptimize:
		return true
	}
	return false
}

// DefaultLanguage is used when a request omits or misspells the language tag.
const DefaultLanguage = "javascript"

// supportedLanguages is the set of language tags the analyzers understand.
var supportedLanguages = map[string]bool{
	"javascript": true,
	"typescript": true,
	"python":     true,
	"go":         true,
	"java":       true,
	"c":          true,
	"cpp":        true,
	"csharp":     true,
	"ruby":       true,
	"rust":       true,
	"php":        true,
	"swift":      true,
	"kotlin":     true,
	"sql":        true,
	"html":       true,
	"css":        true,
	"shell":      true,
}

// NormalizeLanguage lowercases and trims a language tag, falling back to
// DefaultLanguage for unknown or empty tags.
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if !supportedLanguages[lang] {
		return DefaultLanguage
	}
	return lang
}

// AIRequest is a single AI feature request from the editor boundary.
// Code carries the editor buffer for analysis kinds; Message carries the
// user's question for chat. Context is optional free text (for chat it is
// the surrounding code).
type AIRequest struct {
	Kind      Kind   `json:"kind"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
	Language  string `json:"language,omitempty"`
	Context   string `json:"context,omitempty"`
	ClientKey string `json:"-"`
	SessionID string `json:"-"`
}

// Input returns the primary payload for the request kind.
func (r AIRequest) Input() string {
	if r.Kind == KindChat {
		return r.Message
	}
	return r.Code
}
