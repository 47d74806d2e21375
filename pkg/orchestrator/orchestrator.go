// Package orchestrator coordinates the AI request pipeline: validation,
// cache lookup, quota checks, the upstream call, and rule-based fallback.
// Invalid input is the only failure callers ever see; every degraded path
// still yields a usable response.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/codelens-ai/codelens/pkg/audit"
	"github.com/codelens-ai/codelens/pkg/fallback"
	"github.com/codelens-ai/codelens/pkg/models"
	"github.com/codelens-ai/codelens/pkg/prompt"
	"github.com/codelens-ai/codelens/pkg/quota"
	"github.com/codelens-ai/codelens/pkg/tracker"
	"github.com/codelens-ai/codelens/pkg/upstream"
)

// Completer is the upstream completion dependency.
type Completer interface {
	Configured() bool
	Complete(ctx context.Context, p prompt.Prompt) (*upstream.Result, error)
}

// ResponseCache stores serialized responses keyed by fingerprint.
type ResponseCache interface {
	Get(fingerprint string) ([]byte, bool)
	Put(fingerprint string, response []byte) error
}

// QuotaChecker gates requests against per-client token budgets.
type QuotaChecker interface {
	Check(ctx context.Context, clientKey string, kind models.Kind) error
}

// Auditor records request/response pairs for later inspection.
type Auditor interface {
	Log(ctx context.Context, entry models.AuditEntry) error
}

// Options holds the orchestrator's dependencies. Any of them may be left
// nil; the corresponding stage is skipped.
type Options struct {
	Upstream Completer
	Cache    ResponseCache
	Quota    QuotaChecker
	Tracker  tracker.Tracker
	Audit    Auditor
}

// Orchestrator routes each AI request through cache, upstream, and fallback.
type Orchestrator struct {
	upstream Completer
	cache    ResponseCache
	quota    QuotaChecker
	tracker  tracker.Tracker
	audit    Auditor
}

// New builds an Orchestrator from the given dependencies.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		upstream: opts.Upstream,
		cache:    opts.Cache,
		quota:    opts.Quota,
		tracker:  opts.Tracker,
		audit:    opts.Audit,
	}
}

// Handle processes one AI request. The only error it ever returns wraps
// prompt.ErrInvalidRequest; all other failures degrade to cached or
// fallback responses. Fallback responses are never cached.
func (o *Orchestrator) Handle(ctx context.Context, req models.AIRequest) (*models.AIResponse, error) {
	p, err := prompt.Build(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	requestID := uuid.NewString()

	if o.cache != nil {
		if raw, ok := o.cache.Get(p.Fingerprint); ok {
			var resp models.AIResponse
			if err := json.Unmarshal(raw, &resp); err == nil {
				resp.Kind = req.Kind
				resp.Source = models.SourceCached
				// A cache hit consumes no upstream tokens; carrying the
				// original response's usage forward would bill the client
				// for tokens that were never spent.
				resp.Usage = nil
				o.record(ctx, req, &resp, requestID, p.Fingerprint, time.Since(start), "")
				return &resp, nil
			}
			log.Printf("cache entry for %s is corrupt, ignoring", p.Fingerprint[:12])
		}
	}

	if o.quota != nil && req.ClientKey != "" {
		if err := o.quota.Check(ctx, req.ClientKey, req.Kind); err != nil {
			if errors.Is(err, quota.ErrQuotaExceeded) {
				log.Printf("quota exceeded for client %s, serving fallback", keyPrefix(req.ClientKey))
				return o.degrade(ctx, req, requestID, p.Fingerprint, start, "quota exceeded"), nil
			}
			log.Printf("quota check failed: %v", err)
		}
	}

	if o.upstream == nil || !o.upstream.Configured() {
		return o.degrade(ctx, req, requestID, p.Fingerprint, start, "no upstream credential"), nil
	}

	result, err := o.upstream.Complete(ctx, p)
	if err != nil {
		log.Printf("upstream %s request failed: %v", req.Kind, err)
		return o.degrade(ctx, req, requestID, p.Fingerprint, start, err.Error()), nil
	}

	resp, err := parseCompletion(req.Kind, result.Text)
	if err != nil {
		log.Printf("upstream %s completion unusable: %v", req.Kind, err)
		return o.degrade(ctx, req, requestID, p.Fingerprint, start, err.Error()), nil
	}

	resp.Source = models.SourceLive
	resp.Model = result.Model
	resp.Usage = result.Usage

	if o.cache != nil {
		if raw, err := json.Marshal(resp); err == nil {
			if err := o.cache.Put(p.Fingerprint, raw); err != nil {
				log.Printf("cache store failed: %v", err)
			}
		}
	}

	o.record(ctx, req, resp, requestID, p.Fingerprint, time.Since(start), "")
	return resp, nil
}

// degrade produces a rule-based fallback response and records it. The
// result is intentionally kept out of the cache so a recovered upstream
// is consulted on the next identical request.
func (o *Orchestrator) degrade(ctx context.Context, req models.AIRequest, requestID, fingerprint string, start time.Time, reason string) *models.AIResponse {
	resp := fallback.Generate(req)
	o.record(ctx, req, resp, requestID, fingerprint, time.Since(start), reason)
	return resp
}

func (o *Orchestrator) record(ctx context.Context, req models.AIRequest, resp *models.AIResponse, requestID, fingerprint string, latency time.Duration, failure string) {
	now := time.Now().UTC()

	var promptTokens, completionTokens, totalTokens int
	if resp.Usage != nil {
		promptTokens = resp.Usage.PromptTokens
		completionTokens = resp.Usage.CompletionTokens
		totalTokens = resp.Usage.TotalTokens
	}

	if o.tracker != nil {
		rec := models.UsageRecord{
			RequestID:        requestID,
			ClientKey:        req.ClientKey,
			Kind:             req.Kind,
			Source:           resp.Source,
			Model:            resp.Model,
			SessionID:        req.SessionID,
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      totalTokens,
			LatencyMs:        latency.Milliseconds(),
			CreatedAt:        now,
		}
		if err := o.tracker.Record(ctx, rec); err != nil {
			log.Printf("record usage: %v", err)
		}
	}

	if o.audit != nil {
		hash, prefix := audit.HashClientKey(req.ClientKey)
		reqBody, _ := json.Marshal(req)
		respBody, _ := json.Marshal(resp)
		entry := models.AuditEntry{
			RequestID:        requestID,
			ClientKeyHash:    hash,
			ClientKeyPrefix:  prefix,
			Kind:             req.Kind,
			Source:           resp.Source,
			Model:            resp.Model,
			SessionID:        req.SessionID,
			Fingerprint:      fingerprint,
			RequestBody:      string(reqBody),
			ResponseBody:     string(respBody),
			UpstreamFailure:  failure,
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      totalTokens,
			LatencyMs:        latency.Milliseconds(),
			CreatedAt:        now,
		}
		if err := o.audit.Log(ctx, entry); err != nil {
			log.Printf("audit log: %v", err)
		}
	}
}

func keyPrefix(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}
