package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ziadkadry99/shoptalk/internal/db"
)

// ErrNotFound is returned when a conversation id has no row.
var ErrNotFound = errors.New("conversation not found")

// Store persists conversations in SQLite.
type Store struct {
	db *db.DB
}

func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Get loads one conversation by id.
func (s *Store) Get(ctx context.Context, id string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, customer_id, state, flow, step, awaiting_slot,
		       awaiting_response, menu, metadata, low_confidence, active,
		       last_activity, created_at
		FROM conversations WHERE id = ?`, id)
	return scanConversation(row)
}

// GetOrCreate loads the conversation, creating an IDLE row on first contact.
func (s *Store) GetOrCreate(ctx context.Context, id, tenantID, customerID string) (*Conversation, error) {
	conv, err := s.Get(ctx, id)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	conv = &Conversation{
		ID:           id,
		TenantID:     tenantID,
		CustomerID:   customerID,
		State:        StateIdle,
		Metadata:     map[string]string{},
		Active:       true,
		LastActivity: now,
		CreatedAt:    now,
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, tenant_id, customer_id, state, last_activity, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.TenantID, conv.CustomerID, string(conv.State),
		conv.LastActivity.Format(time.RFC3339), conv.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	return conv, nil
}

// Save writes the full mutable state of the conversation back to its row.
func (s *Store) Save(ctx context.Context, c *Conversation) error {
	menuJSON, err := json.Marshal(menuOrEmpty(c.Menu))
	if err != nil {
		return fmt.Errorf("encoding menu: %w", err)
	}
	metaJSON, err := json.Marshal(metaOrEmpty(c.Metadata))
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations
		SET state = ?, flow = ?, step = ?, awaiting_slot = ?, awaiting_response = ?,
		    menu = ?, metadata = ?, low_confidence = ?, active = ?, last_activity = ?
		WHERE id = ?`,
		string(c.State), c.Flow, c.Step, c.AwaitingSlot, boolToInt(c.AwaitingResponse),
		string(menuJSON), string(metaJSON), c.LowConfidence, boolToInt(c.Active),
		c.LastActivity.Format(time.RFC3339), c.ID)
	if err != nil {
		return fmt.Errorf("saving conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SweepIdle marks conversations inactive when their last activity is older
// than the cutoff. Rows are never deleted.
func (s *Store) SweepIdle(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET active = 0
		WHERE active = 1 AND last_activity < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweeping idle conversations: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (*Conversation, error) {
	var (
		c                  Conversation
		state              string
		awaiting, active   int
		menuJSON, metaJSON string
		lastAct, created   string
	)
	err := row.Scan(&c.ID, &c.TenantID, &c.CustomerID, &state, &c.Flow, &c.Step,
		&c.AwaitingSlot, &awaiting, &menuJSON, &metaJSON, &c.LowConfidence,
		&active, &lastAct, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}

	c.State = State(state)
	c.AwaitingResponse = awaiting != 0
	c.Active = active != 0
	if err := json.Unmarshal([]byte(menuJSON), &c.Menu); err != nil {
		return nil, fmt.Errorf("decoding menu: %w", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &c.Metadata); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	if c.Metadata == nil {
		c.Metadata = map[string]string{}
	}
	c.LastActivity = parseTime(lastAct)
	c.CreatedAt = parseTime(created)
	return &c, nil
}

// parseTime accepts both RFC3339 (what Save writes) and the SQLite
// datetime('now') default format used on insert.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02 15:04:05", s)
	return t
}

func menuOrEmpty(m []MenuOption) []MenuOption {
	if m == nil {
		return []MenuOption{}
	}
	return m
}

func metaOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
