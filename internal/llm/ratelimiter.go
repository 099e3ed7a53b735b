package llm

import (
	"context"
	"sync"
	"time"
)

// retryInterval is how long a blocked completion waits before checking the
// bucket again. Conversation turns are interactive, so keep it short.
const retryInterval = 100 * time.Millisecond

// RateLimitedProvider throttles completion calls against one upstream client.
// Every tenant's traffic shares the same bucket, so the rpm ceiling should
// match the account-level quota of the provider, not a per-tenant figure.
type RateLimitedProvider struct {
	provider Provider
	rpm      int

	mu       sync.Mutex
	tokens   int
	lastFill time.Time
}

// NewRateLimitedProvider caps the wrapped provider at rpm completions per
// minute. The bucket starts full so a burst right after startup goes through.
func NewRateLimitedProvider(provider Provider, rpm int) Provider {
	return &RateLimitedProvider{
		provider: provider,
		rpm:      rpm,
		tokens:   rpm,
		lastFill: time.Now(),
	}
}

func (r *RateLimitedProvider) Name() string {
	return r.provider.Name()
}

// Complete blocks until a token is available, then forwards the request.
// Cancelling the turn's context releases the waiter.
func (r *RateLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	return r.provider.Complete(ctx, req)
}

func (r *RateLimitedProvider) acquire(ctx context.Context) error {
	for {
		if r.takeToken() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

func (r *RateLimitedProvider) takeToken() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	refill := int(now.Sub(r.lastFill).Seconds() * float64(r.rpm) / 60.0)
	if refill > 0 {
		r.tokens = min(r.tokens+refill, r.rpm)
		r.lastFill = now
	}

	if r.tokens == 0 {
		return false
	}
	r.tokens--
	return true
}
