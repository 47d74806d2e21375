package tracker

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codelens-ai/codelens/pkg/models"
)

// Tracker records and queries per-request usage.
type Tracker interface {
	// Record stores a usage record.
	Record(ctx context.Context, rec models.UsageRecord) error
	// TotalByKey returns total upstream tokens used by a client key since a given time.
	TotalByKey(ctx context.Context, clientKey string, since time.Time) (int64, error)
	// TotalByKeyAndKind returns total upstream tokens used by a client key
	// for one request kind since a given time.
	TotalByKeyAndKind(ctx context.Context, clientKey string, kind models.Kind, since time.Time) (int64, error)
	// Summary returns aggregated usage summaries, optionally filtered by client key.
	Summary(ctx context.Context, clientKey string) ([]models.UsageSummary, error)
	// ResolveSession returns a session ID for the given client key, using the
	// explicit session ID if provided, otherwise auto-detecting by time gap.
	ResolveSession(ctx context.Context, clientKey, explicitID string, gapTimeout time.Duration) (string, error)
	// ListSessions returns all chat sessions, optionally filtered by client key.
	ListSessions(ctx context.Context, clientKey string) ([]models.Session, error)
	// SessionRequests returns per-request detail for a session with context growth.
	SessionRequests(ctx context.Context, sessionID string) ([]models.SessionRequest, error)
	// Close releases resources.
	Close() error
}

// SQLiteTracker implements Tracker with a SQLite database.
type SQLiteTracker struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS usage_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL,
	client_key TEXT NOT NULL,
	kind TEXT NOT NULL,
	source TEXT NOT NULL,
	model TEXT NOT NULL DEFAULT '',
	session_id TEXT NOT NULL DEFAULT '',
	prompt_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	total_tokens INTEGER NOT NULL,
	latency_ms INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_usage_key_time ON usage_records(client_key, created_at);
CREATE INDEX IF NOT EXISTS idx_usage_kind ON usage_records(kind);
`

const createSessionsTable = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	client_key TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	last_activity DATETIME NOT NULL,
	request_count INTEGER NOT NULL DEFAULT 0,
	total_tokens INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sessions_key ON sessions(client_key);
`

// New creates a SQLiteTracker and runs auto-migration.
func New(dbPath string) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open tracker db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tracker db: %w", err)
	}

	if _, err := db.Exec(createSessionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sessions table: %w", err)
	}

	return &SQLiteTracker{db: db}, nil
}

// generateSessionID creates a session ID like sess_20260830_a3f9c2.
func generateSessionID() string {
	b := make([]byte, 3)
	rand.Read(b)
	return fmt.Sprintf("sess_%s_%s", time.Now().UTC().Format("20060102"), hex.EncodeToString(b))
}

// Record stores a usage record and updates session counters.
func (t *SQLiteTracker) Record(ctx context.Context, rec models.UsageRecord) error {
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO usage_records (request_id, client_key, kind, source, model, session_id,
		 prompt_tokens, completion_tokens, total_tokens, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.ClientKey, string(rec.Kind), string(rec.Source), rec.Model, rec.SessionID,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.LatencyMs, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}

	if rec.SessionID != "" {
		_, err = t.db.ExecContext(ctx,
			`UPDATE sessions SET last_activity = ?, request_count = request_count + 1, total_tokens = total_tokens + ? WHERE id = ?`,
			rec.CreatedAt, rec.TotalTokens, rec.SessionID,
		)
		if err != nil {
			return fmt.Errorf("update session counters: %w", err)
		}
	}

	return nil
}

// ResolveSession returns a session ID. If explicitID is non-empty, it ensures
// the session row exists and returns it. Otherwise it finds the most recent
// session for the client key and reuses it if within gapTimeout, or creates a new one.
func (t *SQLiteTracker) ResolveSession(ctx context.Context, clientKey, explicitID string, gapTimeout time.Duration) (string, error) {
	now := time.Now().UTC()

	if explicitID != "" {
		_, err := t.db.ExecContext(ctx,
			`INSERT INTO sessions (id, client_key, started_at, last_activity) VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO NOTHING`,
			explicitID, clientKey, now, now,
		)
		if err != nil {
			return "", fmt.Errorf("ensure session: %w", err)
		}
		return explicitID, nil
	}

	var lastID string
	var lastActivity time.Time
	err := t.db.QueryRowContext(ctx,
		`SELECT id, last_activity FROM sessions WHERE client_key = ? ORDER BY last_activity DESC LIMIT 1`,
		clientKey,
	).Scan(&lastID, &lastActivity)

	if err == nil && now.Sub(lastActivity) <= gapTimeout {
		return lastID, nil
	}

	newID := generateSessionID()
	_, err = t.db.ExecContext(ctx,
		`INSERT INTO sessions (id, client_key, started_at, last_activity) VALUES (?, ?, ?, ?)`,
		newID, clientKey, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return newID, nil
}

// ListSessions returns all chat sessions, optionally filtered by client key.
func (t *SQLiteTracker) ListSessions(ctx context.Context, clientKey string) ([]models.Session, error) {
	query := `SELECT id, client_key, started_at, last_activity, request_count, total_tokens FROM sessions`
	var args []any
	if clientKey != "" {
		query += ` WHERE client_key = ?`
		args = append(args, clientKey)
	}
	query += ` ORDER BY started_at DESC`

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.ClientKey, &s.StartedAt, &s.LastActivity, &s.RequestCount, &s.TotalTokens); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// SessionRequests returns per-request detail for a session with context growth.
func (t *SQLiteTracker) SessionRequests(ctx context.Context, sessionID string) ([]models.SessionRequest, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT created_at, prompt_tokens, completion_tokens, total_tokens
		 FROM usage_records WHERE session_id = ? ORDER BY created_at ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("session requests: %w", err)
	}
	defer rows.Close()

	var reqs []models.SessionRequest
	var prevPrompt int
	seq := 0
	for rows.Next() {
		var r models.SessionRequest
		if err := rows.Scan(&r.CreatedAt, &r.PromptTokens, &r.CompletionTokens, &r.TotalTokens); err != nil {
			return nil, fmt.Errorf("scan session request: %w", err)
		}
		seq++
		r.Seq = seq
		if seq > 1 {
			r.ContextGrowth = r.PromptTokens - prevPrompt
		}
		prevPrompt = r.PromptTokens
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

// TotalByKey returns total upstream tokens used by a client key since a given time.
func (t *SQLiteTracker) TotalByKey(ctx context.Context, clientKey string, since time.Time) (int64, error) {
	var total int64
	err := t.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_tokens), 0) FROM usage_records WHERE client_key = ? AND created_at >= ?`,
		clientKey, since,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total usage: %w", err)
	}
	return total, nil
}

// TotalByKeyAndKind returns total upstream tokens used by a client key and kind since a given time.
func (t *SQLiteTracker) TotalByKeyAndKind(ctx context.Context, clientKey string, kind models.Kind, since time.Time) (int64, error) {
	var total int64
	err := t.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_tokens), 0) FROM usage_records WHERE client_key = ? AND kind = ? AND created_at >= ?`,
		clientKey, string(kind), since,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total usage by kind: %w", err)
	}
	return total, nil
}

// Summary returns aggregated usage grouped by client key, kind, and source.
func (t *SQLiteTracker) Summary(ctx context.Context, clientKey string) ([]models.UsageSummary, error) {
	query := `SELECT client_key, kind, source, COUNT(*), SUM(prompt_tokens), SUM(completion_tokens), SUM(total_tokens)
		 FROM usage_records`
	var args []any
	if clientKey != "" {
		query += ` WHERE client_key = ?`
		args = append(args, clientKey)
	}
	query += ` GROUP BY client_key, kind, source ORDER BY client_key, kind, source`

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.UsageSummary
	for rows.Next() {
		var s models.UsageSummary
		if err := rows.Scan(&s.ClientKey, &s.Kind, &s.Source, &s.RequestCount, &s.TotalPrompt, &s.TotalCompletion, &s.TotalTokens); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Close releases the database connection.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}
