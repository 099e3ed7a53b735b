// Package payments defines the uniform payment-gateway contract the checkout
// flow invokes. Concrete provider integrations live behind the Gateway
// interface; the core only initiates checkouts and consumes result callbacks.
package payments

import (
	"context"
	"fmt"
	"sync"
)

// Status is the lifecycle of one checkout reference.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

// Checkout is what a gateway hands back when a checkout is initiated. Prompt
// is the redirect URL or payment instruction relayed to the customer.
type Checkout struct {
	Reference string
	Prompt    string
}

// Result is the asynchronous payment outcome delivered via webhook.
type Result struct {
	Reference string
	Status    Status
}

// Gateway initiates checkouts with an external payment provider.
type Gateway interface {
	InitiateCheckout(ctx context.Context, tenantID, orderRef string, amount float64, currency string) (Checkout, error)
}

// StubGateway is the default local implementation: it fabricates a reference
// and records every initiation. Used in tests and local runs without a real
// payment provider.
type StubGateway struct {
	mu    sync.Mutex
	seq   int
	Calls []StubCall
	Err   error
}

type StubCall struct {
	TenantID string
	OrderRef string
	Amount   float64
	Currency string
}

func NewStubGateway() *StubGateway {
	return &StubGateway{}
}

func (g *StubGateway) InitiateCheckout(ctx context.Context, tenantID, orderRef string, amount float64, currency string) (Checkout, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return Checkout{}, g.Err
	}
	g.seq++
	g.Calls = append(g.Calls, StubCall{TenantID: tenantID, OrderRef: orderRef, Amount: amount, Currency: currency})
	ref := fmt.Sprintf("pay-%s-%d", orderRef, g.seq)
	return Checkout{
		Reference: ref,
		Prompt:    fmt.Sprintf("Complete your payment of %.2f %s at https://pay.example/%s", amount, currency, ref),
	}, nil
}
