// Package quota enforces per-client token quotas. A key over quota is not
// rejected; the orchestrator degrades it to fallback-only until the period
// rolls over.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codelens-ai/codelens/pkg/models"
	"github.com/codelens-ai/codelens/pkg/tracker"
)

// ErrQuotaExceeded is returned when a client key has used up its token quota.
var ErrQuotaExceeded = errors.New("quota exceeded")

// Enforcer checks upstream token usage against quota policies.
type Enforcer struct {
	policies []models.QuotaPolicy
	tracker  tracker.Tracker
}

// New creates an Enforcer with the given policies and tracker.
func New(policies []models.QuotaPolicy, t tracker.Tracker) *Enforcer {
	return &Enforcer{policies: policies, tracker: t}
}

// Check returns ErrQuotaExceeded if the client key has exceeded any applicable policy.
func (e *Enforcer) Check(ctx context.Context, clientKey string, kind models.Kind) error {
	for _, p := range e.applicablePolicies(clientKey, kind) {
		since := periodStart(p.Period)
		var used int64
		var err error
		if p.Kind != "" {
			used, err = e.tracker.TotalByKeyAndKind(ctx, clientKey, p.Kind, since)
		} else {
			used, err = e.tracker.TotalByKey(ctx, clientKey, since)
		}
		if err != nil {
			return fmt.Errorf("quota check: %w", err)
		}
		if used >= p.MaxTokens {
			return ErrQuotaExceeded
		}
	}
	return nil
}

// Status returns the quota status for a client key across all applicable policies.
func (e *Enforcer) Status(ctx context.Context, clientKey string) ([]models.QuotaStatus, error) {
	policies := e.policiesForKey(clientKey)
	statuses := make([]models.QuotaStatus, 0, len(policies))

	for _, p := range policies {
		since := periodStart(p.Period)
		var used int64
		var err error
		if p.Kind != "" {
			used, err = e.tracker.TotalByKeyAndKind(ctx, clientKey, p.Kind, since)
		} else {
			used, err = e.tracker.TotalByKey(ctx, clientKey, since)
		}
		if err != nil {
			return nil, fmt.Errorf("quota status: %w", err)
		}
		remaining := p.MaxTokens - used
		if remaining < 0 {
			remaining = 0
		}
		statuses = append(statuses, models.QuotaStatus{
			Policy:    p,
			Used:      used,
			Remaining: remaining,
		})
	}
	return statuses, nil
}

// policiesForKey returns all policies matching a client key (ignoring kind filter).
func (e *Enforcer) policiesForKey(clientKey string) []models.QuotaPolicy {
	var result []models.QuotaPolicy
	for _, p := range e.policies {
		if p.ClientKey == "*" || p.ClientKey == clientKey {
			result = append(result, p)
		}
	}
	return result
}

func (e *Enforcer) applicablePolicies(clientKey string, kind models.Kind) []models.QuotaPolicy {
	var result []models.QuotaPolicy
	for _, p := range e.policies {
		if p.ClientKey == "*" || p.ClientKey == clientKey {
			if p.Kind == "" || p.Kind == kind {
				result = append(result, p)
			}
		}
	}
	return result
}

func periodStart(period models.QuotaPeriod) time.Time {
	now := time.Now().UTC()
	switch period {
	case models.QuotaMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	default: // daily
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
}
