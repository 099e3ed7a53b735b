package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ProviderExhaustedError is returned when every candidate in a failover
// chain has failed. The caller must degrade gracefully; the failover client
// never fabricates a response.
type ProviderExhaustedError struct {
	Attempts []AttemptError
}

// AttemptError records one failed candidate attempt.
type AttemptError struct {
	Ref ModelRef
	Err error
}

func (e *ProviderExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Ref.Key(), a.Err))
	}
	return fmt.Sprintf("all %d provider candidates failed: %s", len(e.Attempts), strings.Join(parts, "; "))
}

// FailoverResult carries the successful response plus which candidate
// produced it and how long the attempt took.
type FailoverResult struct {
	Response *CompletionResponse
	Ref      ModelRef
	Latency  time.Duration
}

// FailoverClient tries an ordered list of (provider, model) candidates,
// enforcing a fixed per-attempt timeout and recording every outcome in the
// health tracker. Candidates flagged unhealthy are skipped unless they are
// the last remaining option, so a tenant is never starved of service.
type FailoverClient struct {
	registry       Registry
	health         *HealthTracker
	attemptTimeout time.Duration
	logger         *slog.Logger
}

// NewFailoverClient creates a failover client over the given provider
// registry and health tracker.
func NewFailoverClient(registry Registry, health *HealthTracker, attemptTimeout time.Duration, logger *slog.Logger) *FailoverClient {
	if attemptTimeout <= 0 {
		attemptTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FailoverClient{
		registry:       registry,
		health:         health,
		attemptTimeout: attemptTimeout,
		logger:         logger.With("component", "failover"),
	}
}

// Health exposes the tracker handle for ops surfaces.
func (c *FailoverClient) Health() *HealthTracker { return c.health }

// Complete attempts the candidates in order and returns the first success.
func (c *FailoverClient) Complete(ctx context.Context, candidates []ModelRef, req CompletionRequest) (*FailoverResult, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no provider candidates given")
	}

	var attempts []AttemptError
	for i, ref := range candidates {
		last := i == len(candidates)-1
		if !last && !c.health.Healthy(ref) {
			c.logger.Info("skipping unhealthy candidate", "candidate", ref.Key())
			continue
		}

		provider, ok := c.registry[ref.Provider]
		if !ok {
			err := fmt.Errorf("provider %q not configured", ref.Provider)
			attempts = append(attempts, AttemptError{Ref: ref, Err: err})
			c.health.Record(ref, false)
			continue
		}

		attemptReq := req
		attemptReq.Model = ref.Model

		start := time.Now()
		attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
		resp, err := provider.Complete(attemptCtx, attemptReq)
		cancel()
		latency := time.Since(start)

		if err != nil {
			c.health.Record(ref, false)
			attempts = append(attempts, AttemptError{Ref: ref, Err: err})
			c.logger.Warn("provider attempt failed",
				"candidate", ref.Key(), "latency", latency, "error", err)
			continue
		}

		c.health.Record(ref, true)
		return &FailoverResult{Response: resp, Ref: ref, Latency: latency}, nil
	}

	return nil, &ProviderExhaustedError{Attempts: attempts}
}
