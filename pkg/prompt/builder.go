// Package prompt turns AI feature requests into upstream instruction
// payloads and stable cache fingerprints.
package prompt

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/codelens-ai/codelens/pkg/models"
)

// ErrInvalidRequest marks client input that cannot be turned into a prompt.
// It is the only failure the orchestrator surfaces to callers.
var ErrInvalidRequest = errors.New("invalid request")

// Prompt is a fully built upstream instruction payload.
type Prompt struct {
	Kind        models.Kind
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	Fingerprint string
}

// Build validates req and produces a deterministic Prompt. It has no side
// effects: identical logical requests always produce identical prompts and
// fingerprints.
func Build(req models.AIRequest) (Prompt, error) {
	if !req.Kind.Valid() {
		return Prompt{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, req.Kind)
	}

	if req.Kind == models.KindChat {
		if strings.TrimSpace(req.Message) == "" {
			return Prompt{}, fmt.Errorf("%w: no message provided", ErrInvalidRequest)
		}
	} else if strings.TrimSpace(req.Code) == "" {
		return Prompt{}, fmt.Errorf("%w: no code provided", ErrInvalidRequest)
	}

	lang := models.NormalizeLanguage(req.Language)

	p := Prompt{
		Kind:        req.Kind,
		Fingerprint: Fingerprint(req),
	}

	switch req.Kind {
	case models.KindAnalyze:
		p.System = "You are an expert code analyzer specializing in security, performance, and testing. Always respond with valid JSON."
		p.User = analyzePrompt(req.Code, lang)
		p.Temperature = 0.3
		p.MaxTokens = 2000
	case models.KindGenerateTests:
		p.System = "You are an expert test engineer. Generate comprehensive test cases and respond with valid JSON."
		p.User = generateTestsPrompt(req.Code, lang)
		p.Temperature = 0.3
		p.MaxTokens = 2000
	case models.KindSecurityScan:
		p.System = "You are a cybersecurity expert specializing in code security analysis. Always respond with valid JSON."
		p.User = securityScanPrompt(req.Code, lang)
		p.Temperature = 0.2
		p.MaxTokens = 2000
	case models.KindOptimize:
		p.System = "You are an expert software engineer specializing in code optimization. Always respond with valid JSON."
		p.User = optimizePrompt(req.Code, lang)
		p.Temperature = 0.3
		p.MaxTokens = 2000
	case models.KindChat:
		p.System = "You are a helpful AI coding assistant. Provide clear, concise, and actionable advice."
		p.User = chatPrompt(req.Message, req.Context)
		p.Temperature = 0.7
		p.MaxTokens = 1000
	}

	return p, nil
}

// Fingerprint computes a stable digest from the canonicalized request.
// Insignificant whitespace differences do not affect the result.
func Fingerprint(req models.AIRequest) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s",
		req.Kind,
		canonicalize(req.Input()),
		models.NormalizeLanguage(req.Language),
		canonicalize(req.Context),
	)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// canonicalize trims and collapses internal whitespace runs to single spaces.
func canonicalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func analyzePrompt(code, lang string) string {
	return fmt.Sprintf(`Analyze the following %s code and provide suggestions in three categories:

1. SECURITY: Identify potential security vulnerabilities (SQL injection, XSS, etc.)
2. OPTIMIZATION: Suggest performance improvements and better algorithms
3. TESTING: Recommend test cases and edge cases to consider

For each suggestion, provide:
- Type (security/optimization/testing)
- Line number (estimate based on code structure)
- Severity (high/medium/low)
- Description of the issue
- Specific recommendation for improvement

Code to analyze:
`+"```%s\n%s\n```"+`

Respond in JSON format with an array of suggestions:
{"suggestions": [{"type": "security", "line": 9, "severity": "high", "message": "SQL injection vulnerability detected", "recommendation": "Use parameterized queries instead of string concatenation"}]}`,
		lang, lang, code)
}

func generateTestsPrompt(code, lang string) string {
	return fmt.Sprintf(`Generate comprehensive test cases for the following %s code.

Create tests that cover:
1. Normal functionality
2. Edge cases
3. Error conditions
4. Boundary values
5. Invalid inputs

Code to test:
`+"```%s\n%s\n```"+`

Respond with JSON containing test cases:
{"tests": [{"name": "Test function with valid input", "description": "Tests normal functionality", "code": "// Test code here", "expected": "expected result", "category": "unit"}]}`,
		lang, lang, code)
}

func securityScanPrompt(code, lang string) string {
	return fmt.Sprintf(`Perform a comprehensive security analysis of this %s code.

Look for:
1. SQL Injection vulnerabilities
2. Cross-Site Scripting (XSS) issues
3. Authentication/Authorization flaws
4. Input validation problems
5. Cryptographic issues
6. Information disclosure
7. OWASP Top 10 vulnerabilities

Code to analyze:
`+"```%s\n%s\n```"+`

Respond with JSON:
{"security_score": 85, "issues": [{"type": "SQL Injection", "severity": "high", "line": 9, "description": "Direct string concatenation in SQL query", "suggestion": "Use parameterized queries", "cwe": "CWE-89"}], "recommendations": ["Implement input validation", "Use prepared statements"]}`,
		lang, lang, code)
}

func optimizePrompt(code, lang string) string {
	return fmt.Sprintf(`Optimize the following %s code for better performance, readability, and maintainability.

Original code:
`+"```%s\n%s\n```"+`

Provide:
1. Optimized version of the code
2. Explanation of improvements made
3. Performance benefits

Respond in JSON format:
{"optimized_code": "// optimized code here", "improvements": ["Added memoization for better performance", "Improved error handling"], "performance_gain": "Estimated 80%% performance improvement"}`,
		lang, lang, code)
}

func chatPrompt(message, codeContext string) string {
	var b strings.Builder
	b.WriteString("You are an AI coding assistant integrated into a code editor. Help the developer with their question.\n\n")
	fmt.Fprintf(&b, "User question: %s", message)
	if codeContext != "" {
		fmt.Fprintf(&b, "\n\nCurrent code context:\n```\n%s\n```", codeContext)
	}
	b.WriteString("\n\nProvide helpful, concise, and actionable advice. If relevant to the code context, reference specific lines or functions.")
	return b.String()
}
