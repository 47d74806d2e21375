package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSecurityScoreZeroStaysInPayload(t *testing.T) {
	resp := AIResponse{
		Kind:          KindSecurityScan,
		Source:        SourceFallback,
		SecurityScore: 0,
		Issues: []SecurityIssue{
			{Type: "sql_injection", Severity: "high", Line: 1, CWE: "CWE-89"},
		},
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"security_score":0`) {
		t.Errorf("payload dropped zero security score: %s", raw)
	}
}
