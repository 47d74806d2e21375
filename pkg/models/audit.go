package models

import "time"

// AuditEntry represents a single audited AI request/response pair.
type AuditEntry struct {
	RequestID        string    `json:"request_id"`
	ClientKeyHash    string    `json:"client_key_hash"`
	ClientKeyPrefix  string    `json:"client_key_prefix"`
	Kind             Kind      `json:"kind"`
	Source           Source    `json:"source"`
	Model            string    `json:"model,omitempty"`
	SessionID        string    `json:"session_id,omitempty"`
	Fingerprint      string    `json:"fingerprint"`
	RequestBody      string    `json:"request_body,omitempty"`
	ResponseBody     string    `json:"response_body,omitempty"`
	UpstreamFailure  string    `json:"upstream_failure,omitempty"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	LatencyMs        int64     `json:"latency_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// AuditConfig controls the audit logging subsystem.
type AuditConfig struct {
	Enabled       bool     `yaml:"enabled"`
	DBPath        string   `yaml:"db_path"`
	RetentionDays int      `yaml:"retention_days"`
	Include       []string `yaml:"include"` // "prompts", "responses"
	ExcludeKinds  []string `yaml:"exclude_kinds"`
	MaxBodySize   int      `yaml:"max_body_size"` // bytes
}

// AuditQueryOpts specifies filters for querying audit entries.
type AuditQueryOpts struct {
	Kind            Kind
	Source          Source
	Since           time.Time
	ClientKeyPrefix string
	SessionID       string
	RequestID       string
	Limit           int
}

// AuditStat holds aggregate audit counts for a kind/day combination.
type AuditStat struct {
	Kind  Kind
	Day   string
	Count int
}
