// Package usage records per-turn LLM telemetry. Records are append-only and
// written only for successful reasoning calls; failed attempts show up in
// provider health, not here.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/shoptalk/internal/db"
)

// Record is one reasoning call's telemetry row.
type Record struct {
	ID             string
	TenantID       string
	ConversationID string
	Provider       string
	Model          string
	InputTokens    int
	OutputTokens   int
	CostUSD        float64
	LatencyMillis  int64
	Success        bool
	CreatedAt      time.Time
}

// Summary aggregates usage for reporting.
type Summary struct {
	TenantID     string
	Calls        int
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// Store persists usage records in SQLite.
type Store struct {
	db *db.DB
}

func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Write appends one record. The id is assigned here if empty.
func (s *Store) Write(ctx context.Context, r Record) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_records
			(id, tenant_id, conversation_id, provider, model, input_tokens,
			 output_tokens, cost_usd, latency_ms, success, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TenantID, r.ConversationID, r.Provider, r.Model,
		r.InputTokens, r.OutputTokens, r.CostUSD, r.LatencyMillis,
		boolToInt(r.Success), r.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("writing usage record: %w", err)
	}
	return nil
}

// ByTenant returns aggregate usage per tenant since the cutoff. An empty
// tenantID aggregates all tenants.
func (s *Store) ByTenant(ctx context.Context, tenantID string, since time.Time) ([]Summary, error) {
	query := `
		SELECT tenant_id, COUNT(*), COALESCE(SUM(input_tokens), 0),
		       COALESCE(SUM(output_tokens), 0), COALESCE(SUM(cost_usd), 0)
		FROM usage_records
		WHERE created_at >= ?`
	args := []any{since.UTC().Format(time.RFC3339)}
	if tenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, tenantID)
	}
	query += ` GROUP BY tenant_id ORDER BY SUM(cost_usd) DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying usage summary: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.TenantID, &sum.Calls, &sum.InputTokens, &sum.OutputTokens, &sum.CostUSD); err != nil {
			return nil, fmt.Errorf("scanning usage summary: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Recent returns the latest records for a tenant, newest first.
func (s *Store) Recent(ctx context.Context, tenantID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, conversation_id, provider, model, input_tokens,
		       output_tokens, cost_usd, latency_ms, success, created_at
		FROM usage_records
		WHERE tenant_id = ?
		ORDER BY created_at DESC LIMIT ?`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying usage records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r       Record
			success int
			created string
		)
		err := rows.Scan(&r.ID, &r.TenantID, &r.ConversationID, &r.Provider, &r.Model,
			&r.InputTokens, &r.OutputTokens, &r.CostUSD, &r.LatencyMillis, &success, &created)
		if err != nil {
			return nil, fmt.Errorf("scanning usage record: %w", err)
		}
		r.Success = success != 0
		r.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
