package monauth

import internalmetrics "github.com/darelisme/monauth/internal/metrics"

// MetricID identifies a counter in the in-process metrics system.
type MetricID = internalmetrics.MetricID

// Counter identifiers re-exported for consumers and exporters.
const (
	MetricCheckSuccess      = internalmetrics.MetricCheckSuccess
	MetricCheckInvalid      = internalmetrics.MetricCheckInvalid
	MetricCheckFailure      = internalmetrics.MetricCheckFailure
	MetricCheckSkipped      = internalmetrics.MetricCheckSkipped
	MetricBreakerOpen       = internalmetrics.MetricBreakerOpen
	MetricBridgeSuccess     = internalmetrics.MetricBridgeSuccess
	MetricBridgeFailure     = internalmetrics.MetricBridgeFailure
	MetricBridgeSkipped     = internalmetrics.MetricBridgeSkipped
	MetricValidateInvalid   = internalmetrics.MetricValidateInvalid
	MetricLogout            = internalmetrics.MetricLogout
	MetricLoginFlowStarted  = internalmetrics.MetricLoginFlowStarted
	MetricLoginFlowDone     = internalmetrics.MetricLoginFlowCompleted
	MetricLoginFlowCanceled = internalmetrics.MetricLoginFlowCancelled
)

// Metrics holds atomic counters for coordinator activity.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance. When cfg.Enabled is false all
// operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{Enabled: cfg.Enabled})
}

// Metrics returns the coordinator's counter set, shared with collaborating
// packages such as loginflow.
func (c *Coordinator) Metrics() *Metrics {
	return c.metrics
}

// MetricsSnapshot returns a copy of the coordinator's counters.
func (c *Coordinator) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return c.metrics.Snapshot()
}

func (c *Coordinator) metricInc(id MetricID) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Inc(id)
}
