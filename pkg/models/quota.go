package models

// QuotaPeriod defines the time window for a quota policy.
type QuotaPeriod string

const (
	QuotaDaily   QuotaPeriod = "daily"
	QuotaMonthly QuotaPeriod = "monthly"
)

// QuotaPolicy defines max upstream tokens per client key per period.
// An empty Kind applies to all request kinds.
type QuotaPolicy struct {
	ClientKey string      `json:"client_key" yaml:"client_key"`
	Kind      Kind        `json:"kind,omitempty" yaml:"kind,omitempty"`
	MaxTokens int64       `json:"max_tokens" yaml:"max_tokens"`
	Period    QuotaPeriod `json:"period" yaml:"period"`
}

// QuotaStatus shows current usage against a policy.
type QuotaStatus struct {
	Policy    QuotaPolicy `json:"policy"`
	Used      int64       `json:"used"`
	Remaining int64       `json:"remaining"`
}
