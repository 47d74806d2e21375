package mcp

import (
	"fmt"
	"strings"

	"github.com/codelens-ai/codelens/pkg/models"
)

// formatResponse renders an AI response as readable text for MCP clients.
func formatResponse(resp *models.AIResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s\n\n", resp.Source)

	switch resp.Kind {
	case models.KindAnalyze:
		if len(resp.Suggestions) == 0 {
			b.WriteString("No suggestions.")
			break
		}
		for _, sug := range resp.Suggestions {
			fmt.Fprintf(&b, "[%s/%s] line %d: %s\n  -> %s\n",
				sug.Type, sug.Severity, sug.Line, sug.Message, sug.Recommendation)
		}
	case models.KindGenerateTests:
		if len(resp.Tests) == 0 {
			b.WriteString("No tests generated.")
			break
		}
		for _, tc := range resp.Tests {
			fmt.Fprintf(&b, "## %s (%s)\n%s\n\n%s\n\nExpected: %s\n\n",
				tc.Name, tc.Category, tc.Description, tc.Code, tc.Expected)
		}
	case models.KindSecurityScan:
		fmt.Fprintf(&b, "Security score: %d/100\n\n", resp.SecurityScore)
		if len(resp.Issues) == 0 {
			b.WriteString("No issues found.\n")
		}
		for _, issue := range resp.Issues {
			fmt.Fprintf(&b, "[%s] %s (line %d, %s)\n  %s\n  -> %s\n",
				issue.Severity, issue.Type, issue.Line, issue.CWE, issue.Description, issue.Suggestion)
		}
		if len(resp.Recommendations) > 0 {
			b.WriteString("\nRecommendations:\n")
			for _, rec := range resp.Recommendations {
				fmt.Fprintf(&b, "  - %s\n", rec)
			}
		}
	case models.KindOptimize:
		b.WriteString("Optimized code:\n\n")
		b.WriteString(resp.OptimizedCode)
		b.WriteString("\n")
		if len(resp.Improvements) > 0 {
			b.WriteString("\nImprovements:\n")
			for _, imp := range resp.Improvements {
				fmt.Fprintf(&b, "  - %s\n", imp)
			}
		}
		if resp.PerformanceGain != "" {
			fmt.Fprintf(&b, "\nPerformance gain: %s\n", resp.PerformanceGain)
		}
	case models.KindChat:
		b.WriteString(resp.Reply)
	}
	return b.String()
}

// formatSummary formats usage summaries as a text table.
func formatSummary(rows []models.UsageSummary) string {
	if len(rows) == 0 {
		return "No usage data found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-15s %-10s %8s %10s %10s %10s\n",
		"Client Key", "Kind", "Source", "Requests", "Prompt", "Completion", "Total")
	b.WriteString(strings.Repeat("-", 90) + "\n")
	for _, r := range rows {
		key := r.ClientKey
		if len(key) > 20 {
			key = key[:8] + "..." + key[len(key)-8:]
		}
		fmt.Fprintf(&b, "%-20s %-15s %-10s %8d %10d %10d %10d\n",
			key, r.Kind, r.Source, r.RequestCount, r.TotalPrompt, r.TotalCompletion, r.TotalTokens)
	}
	return b.String()
}

// formatSessions formats sessions as a text table.
func formatSessions(sessions []models.Session) string {
	if len(sessions) == 0 {
		return "No sessions found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-38s %-20s %-20s %-20s %8s %10s\n",
		"Session ID", "Client Key", "Started", "Last Activity", "Requests", "Tokens")
	b.WriteString(strings.Repeat("-", 120) + "\n")
	for _, s := range sessions {
		key := s.ClientKey
		if len(key) > 20 {
			key = key[:8] + "..." + key[len(key)-8:]
		}
		fmt.Fprintf(&b, "%-38s %-20s %-20s %-20s %8d %10d\n",
			s.ID, key,
			s.StartedAt.Format("2006-01-02 15:04:05"),
			s.LastActivity.Format("2006-01-02 15:04:05"),
			s.RequestCount, s.TotalTokens)
	}
	return b.String()
}

// formatSessionRequests formats session requests as a text table.
func formatSessionRequests(reqs []models.SessionRequest) string {
	if len(reqs) == 0 {
		return "No requests found for this session."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%4s  %-20s %10s %10s %10s %10s\n",
		"Seq", "Time", "Prompt", "Completion", "Total", "Ctx Growth")
	b.WriteString(strings.Repeat("-", 70) + "\n")
	for _, r := range reqs {
		fmt.Fprintf(&b, "%4d  %-20s %10d %10d %10d %+10d\n",
			r.Seq,
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.PromptTokens, r.CompletionTokens, r.TotalTokens, r.ContextGrowth)
	}
	return b.String()
}

// formatQuotaStatus formats quota statuses as a text table.
func formatQuotaStatus(statuses []models.QuotaStatus) string {
	if len(statuses) == 0 {
		return "No quota policies found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-15s %-8s %12s %12s %12s %6s\n",
		"Client Key", "Kind", "Period", "Max Tokens", "Used", "Remaining", "Usage%")
	b.WriteString(strings.Repeat("-", 92) + "\n")
	for _, s := range statuses {
		key := s.Policy.ClientKey
		if len(key) > 20 {
			key = key[:8] + "..." + key[len(key)-8:]
		}
		kind := string(s.Policy.Kind)
		if kind == "" {
			kind = "all"
		}
		pct := float64(0)
		if s.Policy.MaxTokens > 0 {
			pct = float64(s.Used) / float64(s.Policy.MaxTokens) * 100
		}
		fmt.Fprintf(&b, "%-20s %-15s %-8s %12d %12d %12d %5.1f%%\n",
			key, kind, s.Policy.Period, s.Policy.MaxTokens, s.Used, s.Remaining, pct)
	}
	return b.String()
}

// formatCacheStats formats cache stats as text.
func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	return fmt.Sprintf("Cache Statistics\n"+
		"  Entries:  %d\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Hit Rate: %.1f%%\n",
		stats.Entries, stats.Hits, stats.Misses, hitRate)
}

// formatAuditEntries formats audit entries as a text table.
func formatAuditEntries(entries []models.AuditEntry) string {
	if len(entries) == 0 {
		return "No audit entries found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-36s %-15s %-10s %-10s %-20s %8s %8s\n",
		"Request ID", "Kind", "Source", "Key", "Time", "Tokens", "ms")
	b.WriteString(strings.Repeat("-", 115) + "\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%-36s %-15s %-10s %-10s %-20s %8d %8d\n",
			e.RequestID, e.Kind, e.Source, e.ClientKeyPrefix,
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.TotalTokens, e.LatencyMs)
		if e.UpstreamFailure != "" {
			fmt.Fprintf(&b, "      upstream failure: %s\n", e.UpstreamFailure)
		}
	}
	return b.String()
}
