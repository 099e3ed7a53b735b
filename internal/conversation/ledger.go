package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ziadkadry99/shoptalk/internal/db"
)

// Ledger is the idempotency record for at-least-once message delivery. A
// duplicate message id replays the recorded reply instead of re-running any
// business side effects.
type Ledger struct {
	db *db.DB
}

func NewLedger(database *db.DB) *Ledger {
	return &Ledger{db: database}
}

// Seen reports whether the message id was already processed, returning the
// reply recorded for it.
func (l *Ledger) Seen(ctx context.Context, messageID string) (string, bool, error) {
	var reply string
	err := l.db.QueryRowContext(ctx,
		`SELECT reply FROM processed_messages WHERE message_id = ?`, messageID).Scan(&reply)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("checking message ledger: %w", err)
	}
	return reply, true, nil
}

// CountForConversation returns how many messages were processed for a
// conversation, which doubles as the conversation depth.
func (l *Ledger) CountForConversation(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM processed_messages WHERE conversation_id = ?`, conversationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting processed messages: %w", err)
	}
	return n, nil
}

// Record marks a message id as processed. Recording the same id twice is a
// no-op; the first recorded reply wins.
func (l *Ledger) Record(ctx context.Context, messageID, conversationID, reply string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO processed_messages (message_id, conversation_id, reply)
		VALUES (?, ?, ?)
		ON CONFLICT(message_id) DO NOTHING`,
		messageID, conversationID, reply)
	if err != nil {
		return fmt.Errorf("recording processed message: %w", err)
	}
	return nil
}
