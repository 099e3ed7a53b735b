package flows

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ziadkadry99/shoptalk/internal/db"
)

// OrderStatus is the order lifecycle.
type OrderStatus string

const (
	OrderPending         OrderStatus = "pending"
	OrderAwaitingPayment OrderStatus = "awaiting_payment"
	OrderPaid            OrderStatus = "paid"
	OrderFailed          OrderStatus = "failed"
	OrderCancelled       OrderStatus = "cancelled"
)

// ErrOrderNotFound is returned when no order matches.
var ErrOrderNotFound = errors.New("order not found")

// Order is one checkout's persisted record.
type Order struct {
	ID             string
	TenantID       string
	ConversationID string
	ItemID         string
	Quantity       int
	Amount         float64
	Currency       string
	Status         OrderStatus
	PaymentRef     string
}

// OrderStore persists orders in SQLite.
type OrderStore struct {
	db *db.DB
}

func NewOrderStore(database *db.DB) *OrderStore {
	return &OrderStore{db: database}
}

// Create inserts a new order, assigning an id when empty.
func (s *OrderStore) Create(ctx context.Context, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = OrderPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, tenant_id, conversation_id, item_id, quantity, amount, currency, status, payment_ref)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.TenantID, o.ConversationID, o.ItemID, o.Quantity, o.Amount,
		o.Currency, string(o.Status), o.PaymentRef)
	if err != nil {
		return fmt.Errorf("creating order: %w", err)
	}
	return nil
}

// SetPaymentRef records the gateway reference and moves the order to
// awaiting_payment.
func (s *OrderStore) SetPaymentRef(ctx context.Context, orderID, ref string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders SET payment_ref = ?, status = ?, updated_at = datetime('now')
		WHERE id = ?`, ref, string(OrderAwaitingPayment), orderID)
	if err != nil {
		return fmt.Errorf("setting payment reference: %w", err)
	}
	return nil
}

// ResolvePayment updates the order matching a payment reference and returns
// it. Used by the payment-result callback.
func (s *OrderStore) ResolvePayment(ctx context.Context, paymentRef string, status OrderStatus) (*Order, error) {
	o, err := s.byPaymentRef(ctx, paymentRef)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = datetime('now') WHERE id = ?`,
		string(status), o.ID)
	if err != nil {
		return nil, fmt.Errorf("updating order status: %w", err)
	}
	o.Status = status
	return o, nil
}

// Get loads one order by id.
func (s *OrderStore) Get(ctx context.Context, id string) (*Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, conversation_id, item_id, quantity, amount, currency, status, payment_ref
		FROM orders WHERE id = ?`, id)
	return scanOrder(row)
}

// LatestForConversation returns the most recent order in a conversation.
func (s *OrderStore) LatestForConversation(ctx context.Context, conversationID string) (*Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, conversation_id, item_id, quantity, amount, currency, status, payment_ref
		FROM orders WHERE conversation_id = ?
		ORDER BY created_at DESC LIMIT 1`, conversationID)
	return scanOrder(row)
}

func (s *OrderStore) byPaymentRef(ctx context.Context, ref string) (*Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, conversation_id, item_id, quantity, amount, currency, status, payment_ref
		FROM orders WHERE payment_ref = ?`, ref)
	return scanOrder(row)
}

func scanOrder(row *sql.Row) (*Order, error) {
	var (
		o      Order
		status string
	)
	err := row.Scan(&o.ID, &o.TenantID, &o.ConversationID, &o.ItemID, &o.Quantity,
		&o.Amount, &o.Currency, &status, &o.PaymentRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning order: %w", err)
	}
	o.Status = OrderStatus(status)
	return &o, nil
}

// BookingRecord is one confirmed appointment.
type BookingRecord struct {
	ID             string
	TenantID       string
	ConversationID string
	ServiceID      string
	ServiceName    string
	Date           string // 2006-01-02
	Time           string // 15:04
}

// BookingStore persists bookings in SQLite.
type BookingStore struct {
	db *db.DB
}

func NewBookingStore(database *db.DB) *BookingStore {
	return &BookingStore{db: database}
}

// Create inserts a confirmed booking.
func (s *BookingStore) Create(ctx context.Context, b *BookingRecord) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bookings (id, tenant_id, conversation_id, service_id, service_name, booking_date, booking_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.TenantID, b.ConversationID, b.ServiceID, b.ServiceName, b.Date, b.Time)
	if err != nil {
		return fmt.Errorf("creating booking: %w", err)
	}
	return nil
}

// ForConversation returns bookings made in a conversation, newest first.
func (s *BookingStore) ForConversation(ctx context.Context, conversationID string) ([]BookingRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, conversation_id, service_id, service_name, booking_date, booking_time
		FROM bookings WHERE conversation_id = ? ORDER BY created_at DESC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying bookings: %w", err)
	}
	defer rows.Close()

	var out []BookingRecord
	for rows.Next() {
		var b BookingRecord
		if err := rows.Scan(&b.ID, &b.TenantID, &b.ConversationID, &b.ServiceID,
			&b.ServiceName, &b.Date, &b.Time); err != nil {
			return nil, fmt.Errorf("scanning booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
