package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/codelens-ai/codelens/pkg/models"
)

// Tool argument structs.

type codeArgs struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type clientKeyArgs struct {
	ClientKey string `json:"client_key"`
}

type sessionDetailArgs struct {
	SessionID string `json:"session_id"`
}

// toolHandler is a function that handles a tool call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

// toolHandlers maps tool names to their handlers.
var toolHandlers = map[string]toolHandler{
	"codelens_analyze":        handleAnalyze,
	"codelens_generate_tests": handleGenerateTests,
	"codelens_security_scan":  handleSecurityScan,
	"codelens_optimize":       handleOptimize,
	"codelens_stats":          handleStats,
	"codelens_sessions":       handleSessions,
	"codelens_session_detail": handleSessionDetail,
	"codelens_quota":          handleQuota,
	"codelens_cache_stats":    handleCacheStats,
	"codelens_audit_search":   handleAuditSearch,
}

func codeToolSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"code"},
		"properties": map[string]any{
			"code": map[string]any{
				"type":        "string",
				"description": "The source code to process",
			},
			"language": map[string]any{
				"type":        "string",
				"description": "Programming language of the code (optional, defaults to javascript)",
			},
		},
	}
}

// allTools is the list of tool definitions exposed via tools/list.
var allTools = []ToolDefinition{
	{
		Name:        "codelens_analyze",
		Description: "Analyze source code for security, optimization, and testing suggestions.",
		InputSchema: codeToolSchema(),
	},
	{
		Name:        "codelens_generate_tests",
		Description: "Generate test cases covering normal, edge, and error scenarios for the given code.",
		InputSchema: codeToolSchema(),
	},
	{
		Name:        "codelens_security_scan",
		Description: "Scan source code for security vulnerabilities and return a score with findings.",
		InputSchema: codeToolSchema(),
	},
	{
		Name:        "codelens_optimize",
		Description: "Suggest an optimized version of the given code with the improvements explained.",
		InputSchema: codeToolSchema(),
	},
	{
		Name:        "codelens_stats",
		Description: "Show aggregated request and token usage statistics, optionally filtered by client key.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"client_key": map[string]any{
					"type":        "string",
					"description": "Filter by client key (optional, omit for all keys)",
				},
			},
		},
	},
	{
		Name:        "codelens_sessions",
		Description: "List tracked chat sessions, optionally filtered by client key.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"client_key": map[string]any{
					"type":        "string",
					"description": "Filter by client key (optional, omit for all keys)",
				},
			},
		},
	},
	{
		Name:        "codelens_session_detail",
		Description: "Show per-request detail for a specific chat session, including context growth.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"session_id"},
			"properties": map[string]any{
				"session_id": map[string]any{
					"type":        "string",
					"description": "The session ID to inspect",
				},
			},
		},
	},
	{
		Name:        "codelens_quota",
		Description: "Show quota status (usage vs limits) for configured policies, optionally filtered by client key.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"client_key": map[string]any{
					"type":        "string",
					"description": "Filter by client key (optional, omit for all keys)",
				},
			},
		},
	},
	{
		Name:        "codelens_cache_stats",
		Description: "Show response cache statistics (entries, hits, misses, hit rate).",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "codelens_audit_search",
		Description: "Search the request/response audit log with optional filters.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"kind": map[string]any{
					"type":        "string",
					"description": "Filter by request kind (optional)",
				},
				"source": map[string]any{
					"type":        "string",
					"description": "Filter by response source: live, cached, or fallback (optional)",
				},
				"since": map[string]any{
					"type":        "string",
					"description": "Start date in YYYY-MM-DD format (optional)",
				},
				"key_prefix": map[string]any{
					"type":        "string",
					"description": "Filter by client key prefix (optional)",
				},
				"session_id": map[string]any{
					"type":        "string",
					"description": "Filter by session ID (optional)",
				},
			},
		},
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

func handleCodeTool(ctx context.Context, s *Server, rawArgs json.RawMessage, kind models.Kind) ToolCallResult {
	var args codeArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	resp, err := s.orch.Handle(ctx, models.AIRequest{
		Kind:     kind,
		Code:     args.Code,
		Language: args.Language,
	})
	if err != nil {
		return errorResult("Error: " + err.Error())
	}
	return textResult(formatResponse(resp))
}

func handleAnalyze(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	return handleCodeTool(ctx, s, rawArgs, models.KindAnalyze)
}

func handleGenerateTests(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	return handleCodeTool(ctx, s, rawArgs, models.KindGenerateTests)
}

func handleSecurityScan(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	return handleCodeTool(ctx, s, rawArgs, models.KindSecurityScan)
}

func handleOptimize(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	return handleCodeTool(ctx, s, rawArgs, models.KindOptimize)
}

func handleStats(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args clientKeyArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	rows, err := s.tracker.Summary(ctx, args.ClientKey)
	if err != nil {
		return errorResult("Error fetching stats: " + err.Error())
	}
	return textResult(formatSummary(rows))
}

func handleSessions(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args clientKeyArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	sessions, err := s.tracker.ListSessions(ctx, args.ClientKey)
	if err != nil {
		return errorResult("Error fetching sessions: " + err.Error())
	}
	return textResult(formatSessions(sessions))
}

func handleSessionDetail(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args sessionDetailArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.SessionID == "" {
		return errorResult("session_id is required")
	}
	reqs, err := s.tracker.SessionRequests(ctx, args.SessionID)
	if err != nil {
		return errorResult("Error fetching session detail: " + err.Error())
	}
	return textResult(formatSessionRequests(reqs))
}

func handleQuota(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.enforcer == nil {
		return textResult("Quota enforcement is not configured.")
	}
	var args clientKeyArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	statuses, err := s.enforcer.Status(ctx, args.ClientKey)
	if err != nil {
		return errorResult("Error fetching quota status: " + err.Error())
	}
	return textResult(formatQuotaStatus(statuses))
}

type auditSearchArgs struct {
	Kind      string `json:"kind"`
	Source    string `json:"source"`
	Since     string `json:"since"`
	KeyPrefix string `json:"key_prefix"`
	SessionID string `json:"session_id"`
}

func handleAuditSearch(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.auditor == nil {
		return textResult("Audit logging is not configured.")
	}
	var args auditSearchArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}

	opts := models.AuditQueryOpts{
		Kind:            models.Kind(args.Kind),
		Source:          models.Source(args.Source),
		ClientKeyPrefix: args.KeyPrefix,
		SessionID:       args.SessionID,
		Limit:           50,
	}
	if args.Since != "" {
		t, err := time.Parse("2006-01-02", args.Since)
		if err != nil {
			return errorResult("Invalid since date (use YYYY-MM-DD): " + err.Error())
		}
		opts.Since = t
	}

	entries, err := s.auditor.Query(ctx, opts)
	if err != nil {
		return errorResult("Error searching audit log: " + err.Error())
	}
	return textResult(formatAuditEntries(entries))
}

func handleCacheStats(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.cache == nil {
		return textResult("Cache is not configured.")
	}
	stats, err := s.cache.Stats()
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatCacheStats(stats))
}
