package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/codelens-ai/codelens/pkg/models"
	"github.com/codelens-ai/codelens/pkg/prompt"
	"github.com/codelens-ai/codelens/pkg/quota"
	"github.com/codelens-ai/codelens/pkg/tracker"
	"github.com/codelens-ai/codelens/pkg/upstream"
)

type fakeUpstream struct {
	configured bool
	results    []*upstream.Result
	errs       []error
	calls      int
}

func (f *fakeUpstream) Configured() bool { return f.configured }

func (f *fakeUpstream) Complete(ctx context.Context, p prompt.Prompt) (*upstream.Result, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.results) {
		return f.results[i], nil
	}
	if n := len(f.results); n > 0 {
		return f.results[n-1], nil
	}
	return nil, errors.New("no scripted result")
}

func liveResult(text string) *upstream.Result {
	return &upstream.Result{
		Text:  text,
		Model: "gpt-4",
		Usage: &models.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}
}

type mapCache struct {
	m map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{m: make(map[string][]byte)} }

func (c *mapCache) Get(fp string) ([]byte, bool) {
	b, ok := c.m[fp]
	return b, ok
}

func (c *mapCache) Put(fp string, b []byte) error {
	c.m[fp] = b
	return nil
}

type fakeQuota struct {
	err error
}

func (f *fakeQuota) Check(ctx context.Context, clientKey string, kind models.Kind) error {
	return f.err
}

type fakeTracker struct {
	records []models.UsageRecord
}

func (f *fakeTracker) Record(ctx context.Context, rec models.UsageRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeTracker) TotalByKey(ctx context.Context, clientKey string, since time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeTracker) TotalByKeyAndKind(ctx context.Context, clientKey string, kind models.Kind, since time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeTracker) Summary(ctx context.Context, clientKey string) ([]models.UsageSummary, error) {
	return nil, nil
}

func (f *fakeTracker) ResolveSession(ctx context.Context, clientKey, explicitID string, gapTimeout time.Duration) (string, error) {
	return explicitID, nil
}

func (f *fakeTracker) ListSessions(ctx context.Context, clientKey string) ([]models.Session, error) {
	return nil, nil
}

func (f *fakeTracker) SessionRequests(ctx context.Context, sessionID string) ([]models.SessionRequest, error) {
	return nil, nil
}

func (f *fakeTracker) Close() error { return nil }

func TestInvalidRequestNeverReachesUpstream(t *testing.T) {
	up := &fakeUpstream{configured: true}
	o := New(Options{Upstream: up})

	cases := []models.AIRequest{
		{Kind: "bogus", Code: "x"},
		{Kind: models.KindAnalyze, Code: "   "},
		{Kind: models.KindChat, Message: ""},
	}
	for _, req := range cases {
		resp, err := o.Handle(context.Background(), req)
		if !errors.Is(err, prompt.ErrInvalidRequest) {
			t.Errorf("%+v: err = %v, want ErrInvalidRequest", req, err)
		}
		if resp != nil {
			t.Errorf("%+v: got response %+v, want nil", req, resp)
		}
	}
	if up.calls != 0 {
		t.Errorf("upstream called %d times for invalid input", up.calls)
	}
}

func TestLiveResponseByKind(t *testing.T) {
	cases := []struct {
		req   models.AIRequest
		text  string
		check func(t *testing.T, resp *models.AIResponse)
	}{
		{
			req:  models.AIRequest{Kind: models.KindAnalyze, Code: "var x = 1"},
			text: `Here is the analysis: {"suggestions":[{"type":"security","line":3,"severity":"high","message":"issue","recommendation":"fix"}]}`,
			check: func(t *testing.T, resp *models.AIResponse) {
				if len(resp.Suggestions) != 1 || resp.Suggestions[0].Type != "security" {
					t.Errorf("suggestions = %+v", resp.Suggestions)
				}
			},
		},
		{
			req:  models.AIRequest{Kind: models.KindGenerateTests, Code: "function add(a, b) { return a + b }"},
			text: `{"tests":[{"name":"adds","description":"d","code":"c","expected":"3","category":"unit"}]}`,
			check: func(t *testing.T, resp *models.AIResponse) {
				if len(resp.Tests) != 1 || resp.Tests[0].Name != "adds" {
					t.Errorf("tests = %+v", resp.Tests)
				}
			},
		},
		{
			req:  models.AIRequest{Kind: models.KindSecurityScan, Code: "var x = 1"},
			text: `{"security_score":85,"issues":[],"recommendations":["validate input"]}`,
			check: func(t *testing.T, resp *models.AIResponse) {
				if resp.SecurityScore != 85 {
					t.Errorf("score = %d, want 85", resp.SecurityScore)
				}
			},
		},
		{
			req:  models.AIRequest{Kind: models.KindOptimize, Code: "var x = 1"},
			text: `{"optimized_code":"const x = 1","improvements":["use const"],"performance_gain":"minor"}`,
			check: func(t *testing.T, resp *models.AIResponse) {
				if resp.OptimizedCode != "const x = 1" {
					t.Errorf("optimized_code = %q", resp.OptimizedCode)
				}
			},
		},
		{
			req:  models.AIRequest{Kind: models.KindChat, Message: "how do I sort a list?"},
			text: "  Use Array.prototype.sort.  ",
			check: func(t *testing.T, resp *models.AIResponse) {
				if resp.Reply != "Use Array.prototype.sort." {
					t.Errorf("reply = %q", resp.Reply)
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(string(tc.req.Kind), func(t *testing.T) {
			up := &fakeUpstream{configured: true, results: []*upstream.Result{liveResult(tc.text)}}
			o := New(Options{Upstream: up})

			resp, err := o.Handle(context.Background(), tc.req)
			if err != nil {
				t.Fatalf("Handle: %v", err)
			}
			if resp.Kind != tc.req.Kind {
				t.Errorf("kind = %q, want %q", resp.Kind, tc.req.Kind)
			}
			if resp.Source != models.SourceLive {
				t.Errorf("source = %q, want live", resp.Source)
			}
			if resp.Model != "gpt-4" {
				t.Errorf("model = %q", resp.Model)
			}
			tc.check(t, resp)
		})
	}
}

func TestSecondIdenticalRequestServedFromCache(t *testing.T) {
	up := &fakeUpstream{
		configured: true,
		results:    []*upstream.Result{liveResult(`{"suggestions":[{"type":"testing","line":1,"severity":"low","message":"m","recommendation":"r"}]}`)},
	}
	o := New(Options{Upstream: up, Cache: newMapCache()})
	req := models.AIRequest{Kind: models.KindAnalyze, Code: "var x = 1"}

	first, err := o.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("first Handle: %v", err)
	}
	if first.Source != models.SourceLive {
		t.Fatalf("first source = %q, want live", first.Source)
	}

	second, err := o.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("second Handle: %v", err)
	}
	if second.Source != models.SourceCached {
		t.Errorf("second source = %q, want cached", second.Source)
	}
	if len(second.Suggestions) != 1 || second.Suggestions[0].Message != "m" {
		t.Errorf("cached content lost: %+v", second.Suggestions)
	}
	if up.calls != 1 {
		t.Errorf("upstream called %d times, want 1", up.calls)
	}
}

func TestWhitespaceVariantsHitSameCacheEntry(t *testing.T) {
	up := &fakeUpstream{
		configured: true,
		results:    []*upstream.Result{liveResult(`{"suggestions":[]}`)},
	}
	o := New(Options{Upstream: up, Cache: newMapCache()})

	if _, err := o.Handle(context.Background(), models.AIRequest{Kind: models.KindAnalyze, Code: "var x = 1"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	resp, err := o.Handle(context.Background(), models.AIRequest{Kind: models.KindAnalyze, Code: "  var   x = 1\n"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp.Source != models.SourceCached {
		t.Errorf("source = %q, want cached", resp.Source)
	}
	if up.calls != 1 {
		t.Errorf("upstream called %d times, want 1", up.calls)
	}
}

func TestUnconfiguredUpstreamFallsBack(t *testing.T) {
	cache := newMapCache()
	o := New(Options{Upstream: &fakeUpstream{configured: false}, Cache: cache})
	req := models.AIRequest{
		Kind: models.KindSecurityScan,
		Code: `query = "SELECT * FROM users WHERE id = " + userId`,
	}

	resp, err := o.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp.Source != models.SourceFallback {
		t.Errorf("source = %q, want fallback", resp.Source)
	}
	if len(resp.Issues) == 0 {
		t.Error("expected SQL injection finding from rule-based scan")
	}
	if len(cache.m) != 0 {
		t.Error("fallback response must not be cached")
	}
}

func TestUpstreamFailureFallsBackAndIsNotCached(t *testing.T) {
	cache := newMapCache()
	up := &fakeUpstream{
		configured: true,
		errs:       []error{&upstream.Error{Kind: upstream.ErrUnavailable, Status: 503, Message: "down"}},
		results:    []*upstream.Result{nil, liveResult(`{"suggestions":[]}`)},
	}
	o := New(Options{Upstream: up, Cache: cache})
	req := models.AIRequest{Kind: models.KindAnalyze, Code: "var x = 1"}

	first, err := o.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("first Handle: %v", err)
	}
	if first.Source != models.SourceFallback {
		t.Errorf("first source = %q, want fallback", first.Source)
	}
	if len(cache.m) != 0 {
		t.Fatal("fallback response leaked into cache")
	}

	// Upstream recovered: the next identical request must reach it.
	second, err := o.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("second Handle: %v", err)
	}
	if second.Source != models.SourceLive {
		t.Errorf("second source = %q, want live", second.Source)
	}
	if up.calls != 2 {
		t.Errorf("upstream called %d times, want 2", up.calls)
	}
}

func TestMalformedCompletionFallsBack(t *testing.T) {
	up := &fakeUpstream{
		configured: true,
		results:    []*upstream.Result{liveResult("I could not produce JSON, sorry.")},
	}
	o := New(Options{Upstream: up})

	resp, err := o.Handle(context.Background(), models.AIRequest{Kind: models.KindOptimize, Code: "var x = 1"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp.Source != models.SourceFallback {
		t.Errorf("source = %q, want fallback", resp.Source)
	}
}

func TestQuotaExceededDegradesToFallback(t *testing.T) {
	up := &fakeUpstream{configured: true}
	o := New(Options{Upstream: up, Quota: &fakeQuota{err: quota.ErrQuotaExceeded}})

	resp, err := o.Handle(context.Background(), models.AIRequest{
		Kind:      models.KindAnalyze,
		Code:      "var x = 1",
		ClientKey: "ck-over-budget",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp.Source != models.SourceFallback {
		t.Errorf("source = %q, want fallback", resp.Source)
	}
	if up.calls != 0 {
		t.Errorf("upstream called %d times despite exceeded quota", up.calls)
	}
}

func TestCorruptCacheEntryIgnored(t *testing.T) {
	cache := newMapCache()
	req := models.AIRequest{Kind: models.KindAnalyze, Code: "var x = 1"}
	cache.m[prompt.Fingerprint(req)] = []byte("{not json")

	up := &fakeUpstream{configured: true, results: []*upstream.Result{liveResult(`{"suggestions":[]}`)}}
	o := New(Options{Upstream: up, Cache: cache})

	resp, err := o.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp.Source != models.SourceLive {
		t.Errorf("source = %q, want live", resp.Source)
	}
	if up.calls != 1 {
		t.Errorf("upstream called %d times, want 1", up.calls)
	}
}

func TestUsageRecordedPerRequest(t *testing.T) {
	tr := &fakeTracker{}
	up := &fakeUpstream{configured: true, results: []*upstream.Result{liveResult(`{"suggestions":[]}`)}}
	o := New(Options{Upstream: up, Cache: newMapCache(), Tracker: tr})

	req := models.AIRequest{Kind: models.KindAnalyze, Code: "var x = 1", ClientKey: "ck-abc"}
	if _, err := o.Handle(context.Background(), req); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if _, err := o.Handle(context.Background(), req); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(tr.records) != 2 {
		t.Fatalf("got %d usage records, want 2", len(tr.records))
	}
	if tr.records[0].Source != models.SourceLive {
		t.Errorf("first record source = %q, want live", tr.records[0].Source)
	}
	if tr.records[0].TotalTokens != 30 {
		t.Errorf("first record tokens = %d, want 30", tr.records[0].TotalTokens)
	}
	if tr.records[1].Source != models.SourceCached {
		t.Errorf("second record source = %q, want cached", tr.records[1].Source)
	}
	if tr.records[1].TotalTokens != 0 {
		t.Errorf("cached record tokens = %d, want 0", tr.records[1].TotalTokens)
	}
	if tr.records[0].RequestID == "" || tr.records[0].RequestID == tr.records[1].RequestID {
		t.Error("request IDs must be unique and non-empty")
	}
}

func TestCachedHitDoesNotCountAgainstQuota(t *testing.T) {
	tr, err := tracker.New(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("tracker.New: %v", err)
	}
	t.Cleanup(func() { tr.Close() })

	up := &fakeUpstream{configured: true, results: []*upstream.Result{liveResult(`{"suggestions":[]}`)}}
	o := New(Options{Upstream: up, Cache: newMapCache(), Tracker: tr})
	req := models.AIRequest{Kind: models.KindAnalyze, Code: "var x = 1", ClientKey: "ck-abc"}
	since := time.Now().UTC().Add(-time.Minute)

	first, err := o.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("first Handle: %v", err)
	}
	if first.Usage == nil || first.Usage.TotalTokens != 30 {
		t.Fatalf("live usage = %+v, want 30 total tokens", first.Usage)
	}

	second, err := o.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("second Handle: %v", err)
	}
	if second.Source != models.SourceCached {
		t.Fatalf("second source = %q, want cached", second.Source)
	}
	if second.Usage != nil {
		t.Errorf("cached response reports usage %+v, want none", second.Usage)
	}

	total, err := tr.TotalByKey(context.Background(), "ck-abc", since)
	if err != nil {
		t.Fatalf("TotalByKey: %v", err)
	}
	if total != 30 {
		t.Errorf("total tokens after cache hit = %d, want 30 (live request only)", total)
	}
}

func TestParseCompletionRejectsMissingFields(t *testing.T) {
	cases := []struct {
		kind models.Kind
		text string
	}{
		{models.KindAnalyze, `{"wrong":"shape"}`},
		{models.KindGenerateTests, `{"suggestions":[]}`},
		{models.KindSecurityScan, `{"issues":[]}`},
		{models.KindOptimize, `{"improvements":[]}`},
		{models.KindChat, "   "},
		{models.KindAnalyze, "no braces at all"},
	}
	for _, tc := range cases {
		if _, err := parseCompletion(tc.kind, tc.text); err == nil {
			t.Errorf("parseCompletion(%s, %q): expected error", tc.kind, tc.text)
		}
	}
}
