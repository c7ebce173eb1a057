package metrics

import "sync/atomic"

// MetricID identifies one counter slot.
type MetricID uint16

const (
	// MetricCheckSuccess counts auth status checks ending authenticated.
	MetricCheckSuccess MetricID = iota
	// MetricCheckInvalid counts checks that ended with a rejected or
	// expired primary session.
	MetricCheckInvalid
	// MetricCheckFailure counts transport/backend failures inside the
	// verification pipeline.
	MetricCheckFailure
	// MetricCheckSkipped counts checks skipped by the in-flight guard or
	// the cooldown limiter.
	MetricCheckSkipped
	// MetricBreakerOpen counts checks refused by the open circuit breaker.
	MetricBreakerOpen
	// MetricBridgeSuccess counts successful secondary bridge logins.
	MetricBridgeSuccess
	// MetricBridgeFailure counts failed secondary bridge attempts.
	MetricBridgeFailure
	// MetricBridgeSkipped counts bridge attempts skipped by the in-flight
	// guard, the cooldown limiter, or the retry ceiling.
	MetricBridgeSkipped
	// MetricValidateInvalid counts stored secondary credentials rejected
	// by validation.
	MetricValidateInvalid
	// MetricLogout counts logouts.
	MetricLogout
	// MetricLoginFlowStarted counts interactive login flows opened.
	MetricLoginFlowStarted
	// MetricLoginFlowCompleted counts interactive login flows that reached
	// the redirect handoff.
	MetricLoginFlowCompleted
	// MetricLoginFlowCancelled counts interactive login flows abandoned by
	// the user or blocked by the host.
	MetricLoginFlowCancelled

	// MetricIDCount is the number of counter slots.
	MetricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Config controls metric collection. When Enabled is false all operations
// are no-ops.
type Config struct {
	Enabled bool
}

// Metrics holds the counter slots. The zero value is a disabled instance.
type Metrics struct {
	enabled  bool
	counters [MetricIDCount]paddedCounter
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Counters map[MetricID]uint64
}

// New creates a [Metrics] instance.
func New(cfg Config) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc atomically increments the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Get returns the current value of the counter for id.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot returns a deep copy of all counters.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{Counters: make(map[MetricID]uint64, MetricIDCount)}
	if m == nil || !m.enabled {
		return snap
	}
	for id := MetricID(0); id < MetricIDCount; id++ {
		snap.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return snap
}
