package models

import "time"

// Usage represents token usage from an upstream completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// UsageRecord tracks a single handled AI request.
type UsageRecord struct {
	ID               int64     `json:"id"`
	RequestID        string    `json:"request_id"`
	ClientKey        string    `json:"client_key"`
	Kind             Kind      `json:"kind"`
	Source           Source    `json:"source"`
	Model            string    `json:"model,omitempty"`
	SessionID        string    `json:"session_id,omitempty"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	LatencyMs        int64     `json:"latency_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// Session groups related chat requests into a conversation.
type Session struct {
	ID           string    `json:"id"`
	ClientKey    string    `json:"client_key"`
	StartedAt    time.Time `json:"started_at"`
	LastActivity time.Time `json:"last_activity"`
	RequestCount int       `json:"request_count"`
	TotalTokens  int       `json:"total_tokens"`
}

// SessionRequest represents a single request within a session, with context growth info.
type SessionRequest struct {
	Seq              int       `json:"seq"`
	CreatedAt        time.Time `json:"created_at"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	ContextGrowth    int       `json:"context_growth"`
}

// UsageSummary aggregates usage across requests.
type UsageSummary struct {
	ClientKey       string `json:"client_key"`
	Kind            Kind   `json:"kind"`
	Source          Source `json:"source"`
	RequestCount    int    `json:"request_count"`
	TotalPrompt     int    `json:"total_prompt"`
	TotalCompletion int    `json:"total_completion"`
	TotalTokens     int    `json:"total_tokens"`
}
