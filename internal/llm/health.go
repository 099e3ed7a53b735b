package llm

import (
	"sort"
	"sync"
)

// HealthTracker keeps rolling success/failure outcomes per (provider, model)
// pair. It is process-scoped: state resets on restart or an explicit Reset.
// A pair is flagged unhealthy when its failure rate over the trailing window
// exceeds the threshold, and never before the minimum sample size is reached.
type HealthTracker struct {
	mu               sync.Mutex
	windowSize       int
	minSamples       int
	failureThreshold float64
	entries          map[ModelRef]*healthWindow
}

// healthWindow is a fixed-size ring of attempt outcomes (true = success).
type healthWindow struct {
	outcomes []bool
	next     int
	count    int
}

func (w *healthWindow) record(ok bool) {
	if w.count < len(w.outcomes) {
		w.outcomes[w.count] = ok
		w.count++
		return
	}
	w.outcomes[w.next] = ok
	w.next = (w.next + 1) % len(w.outcomes)
}

func (w *healthWindow) tally() (successes, failures int) {
	for i := 0; i < w.count; i++ {
		if w.outcomes[i] {
			successes++
		} else {
			failures++
		}
	}
	return successes, failures
}

// HealthStatus is a read-only view of one tracked pair.
type HealthStatus struct {
	Ref       ModelRef `json:"ref"`
	Successes int      `json:"successes"`
	Failures  int      `json:"failures"`
	Healthy   bool     `json:"healthy"`
}

// NewHealthTracker creates a tracker with the given rolling window size,
// minimum sample count, and failure-rate threshold (0..1).
func NewHealthTracker(windowSize, minSamples int, failureThreshold float64) *HealthTracker {
	if windowSize <= 0 {
		windowSize = 20
	}
	if minSamples <= 0 {
		minSamples = 10
	}
	return &HealthTracker{
		windowSize:       windowSize,
		minSamples:       minSamples,
		failureThreshold: failureThreshold,
		entries:          map[ModelRef]*healthWindow{},
	}
}

// Record adds one attempt outcome for the given pair.
func (t *HealthTracker) Record(ref ModelRef, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, found := t.entries[ref]
	if !found {
		w = &healthWindow{outcomes: make([]bool, t.windowSize)}
		t.entries[ref] = w
	}
	w.record(ok)
}

// Healthy reports whether the pair is currently considered healthy.
// Pairs with fewer than the minimum samples are always healthy.
func (t *HealthTracker) Healthy(ref ModelRef) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, found := t.entries[ref]
	if !found {
		return true
	}
	successes, failures := w.tally()
	total := successes + failures
	if total < t.minSamples {
		return true
	}
	return float64(failures)/float64(total) <= t.failureThreshold
}

// Status returns the current counts for one pair.
func (t *HealthTracker) Status(ref ModelRef) HealthStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := HealthStatus{Ref: ref, Healthy: true}
	w, found := t.entries[ref]
	if !found {
		return st
	}
	st.Successes, st.Failures = w.tally()
	total := st.Successes + st.Failures
	if total >= t.minSamples {
		st.Healthy = float64(st.Failures)/float64(total) <= t.failureThreshold
	}
	return st
}

// Snapshot returns the status of every tracked pair, ordered by key.
func (t *HealthTracker) Snapshot() []HealthStatus {
	t.mu.Lock()
	refs := make([]ModelRef, 0, len(t.entries))
	for ref := range t.entries {
		refs = append(refs, ref)
	}
	t.mu.Unlock()

	sort.Slice(refs, func(i, j int) bool { return refs[i].Key() < refs[j].Key() })

	out := make([]HealthStatus, 0, len(refs))
	for _, ref := range refs {
		out = append(out, t.Status(ref))
	}
	return out
}

// Reset clears all recorded outcomes. Intended for operator use.
func (t *HealthTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = map[ModelRef]*healthWindow{}
}
