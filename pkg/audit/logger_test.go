package audit

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/codelens-ai/codelens/pkg/models"
)

func newTestLogger(t *testing.T, cfg models.AuditConfig) *Logger {
	t.Helper()
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(t.TempDir(), "audit.db")
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = 30
	}
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func sampleEntry(id string, kind models.Kind) models.AuditEntry {
	hash, prefix := HashClientKey("ck-test-key-123")
	return models.AuditEntry{
		RequestID:       id,
		ClientKeyHash:   hash,
		ClientKeyPrefix: prefix,
		Kind:            kind,
		Source:          models.SourceLive,
		Model:           "gpt-4",
		Fingerprint:     "fp-" + id,
		RequestBody:     `{"code":"var x = 1"}`,
		ResponseBody:    `{"suggestions":[]}`,
		TotalTokens:     42,
		LatencyMs:       120,
		CreatedAt:       time.Now().UTC(),
	}
}

func TestLogAndQuery(t *testing.T) {
	l := newTestLogger(t, models.AuditConfig{
		Enabled: true,
		Include: []string{"prompts", "responses"},
	})
	ctx := context.Background()

	if err := l.Log(ctx, sampleEntry("req-1", models.KindAnalyze)); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := l.Log(ctx, sampleEntry("req-2", models.KindChat)); err != nil {
		t.Fatalf("Log: %v", err)
	}

	entries, err := l.Query(ctx, models.AuditQueryOpts{Kind: models.KindAnalyze})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.RequestID != "req-1" {
		t.Errorf("RequestID = %q, want req-1", e.RequestID)
	}
	if e.RequestBody == "" || e.ResponseBody == "" {
		t.Error("expected bodies to be stored when included")
	}
	if e.Model != "gpt-4" {
		t.Errorf("Model = %q", e.Model)
	}
}

func TestQueryByRequestID(t *testing.T) {
	l := newTestLogger(t, models.AuditConfig{Enabled: true})
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := l.Log(ctx, sampleEntry(id, models.KindChat)); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	entries, err := l.Query(ctx, models.AuditQueryOpts{RequestID: "b"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 || entries[0].RequestID != "b" {
		t.Fatalf("got %+v, want single entry b", entries)
	}
}

func TestBodiesExcludedByDefault(t *testing.T) {
	l := newTestLogger(t, models.AuditConfig{Enabled: true})
	ctx := context.Background()

	if err := l.Log(ctx, sampleEntry("req-1", models.KindAnalyze)); err != nil {
		t.Fatalf("Log: %v", err)
	}

	entries, err := l.Query(ctx, models.AuditQueryOpts{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].RequestBody != "" || entries[0].ResponseBody != "" {
		t.Error("expected bodies to be dropped when not included")
	}
}

func TestExcludeKinds(t *testing.T) {
	l := newTestLogger(t, models.AuditConfig{
		Enabled:      true,
		ExcludeKinds: []string{"chat"},
	})
	ctx := context.Background()

	if err := l.Log(ctx, sampleEntry("req-1", models.KindChat)); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := l.Log(ctx, sampleEntry("req-2", models.KindAnalyze)); err != nil {
		t.Fatalf("Log: %v", err)
	}

	entries, err := l.Query(ctx, models.AuditQueryOpts{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 || entries[0].Kind != models.KindAnalyze {
		t.Fatalf("got %+v, want only the analyze entry", entries)
	}
}

func TestMaxBodySizeTruncation(t *testing.T) {
	l := newTestLogger(t, models.AuditConfig{
		Enabled:     true,
		Include:     []string{"prompts"},
		MaxBodySize: 16,
	})
	ctx := context.Background()

	e := sampleEntry("req-1", models.KindAnalyze)
	e.RequestBody = strings.Repeat("x", 100)
	if err := l.Log(ctx, e); err != nil {
		t.Fatalf("Log: %v", err)
	}

	entries, err := l.Query(ctx, models.AuditQueryOpts{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got := len(entries[0].RequestBody); got != 16 {
		t.Errorf("request body length = %d, want 16", got)
	}
}

func TestCleanup(t *testing.T) {
	l := newTestLogger(t, models.AuditConfig{
		Enabled:       true,
		RetentionDays: 7,
	})
	ctx := context.Background()

	old := sampleEntry("req-old", models.KindAnalyze)
	old.CreatedAt = time.Now().UTC().AddDate(0, 0, -10)
	if err := l.Log(ctx, old); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := l.Log(ctx, sampleEntry("req-new", models.KindAnalyze)); err != nil {
		t.Fatalf("Log: %v", err)
	}

	deleted, err := l.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	entries, err := l.Query(ctx, models.AuditQueryOpts{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 || entries[0].RequestID != "req-new" {
		t.Fatalf("got %+v, want only req-new", entries)
	}
}

func TestStats(t *testing.T) {
	l := newTestLogger(t, models.AuditConfig{Enabled: true})
	ctx := context.Background()

	for i, kind := range []models.Kind{models.KindChat, models.KindChat, models.KindAnalyze} {
		e := sampleEntry(string(rune('a'+i)), kind)
		if err := l.Log(ctx, e); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	stats, err := l.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	counts := make(map[models.Kind]int)
	for _, s := range stats {
		counts[s.Kind] += s.Count
	}
	if counts[models.KindChat] != 2 || counts[models.KindAnalyze] != 1 {
		t.Errorf("counts = %v, want chat=2 analyze=1", counts)
	}
}

func TestHashClientKey(t *testing.T) {
	hash, prefix := HashClientKey("ck-secret-key-abcdef")
	if len(hash) != 64 {
		t.Errorf("hash length = %d, want 64", len(hash))
	}
	if prefix != "ck-secre" {
		t.Errorf("prefix = %q, want ck-secre", prefix)
	}

	hash2, _ := HashClientKey("ck-secret-key-abcdef")
	if hash != hash2 {
		t.Error("hash not deterministic")
	}

	_, shortPrefix := HashClientKey("abc")
	if shortPrefix != "abc" {
		t.Errorf("short prefix = %q, want abc", shortPrefix)
	}
}
