// Package prometheus renders coordinator metrics in Prometheus text
// exposition format.
package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	monauth "github.com/darelisme/monauth"
)

type metricsSource interface {
	MetricsSnapshot() monauth.MetricsSnapshot
}

type counterDef struct {
	id   monauth.MetricID
	name string
	help string
}

var counterDefs = []counterDef{
	{monauth.MetricCheckSuccess, "monauth_check_success_total", "Auth status checks that ended authenticated."},
	{monauth.MetricCheckInvalid, "monauth_check_invalid_total", "Auth status checks that rejected the primary session."},
	{monauth.MetricCheckFailure, "monauth_check_failure_total", "Transport or backend failures inside the verification pipeline."},
	{monauth.MetricCheckSkipped, "monauth_check_skipped_total", "Auth status checks skipped by the in-flight guard or cooldown."},
	{monauth.MetricBreakerOpen, "monauth_breaker_open_total", "Auth status checks refused by the open circuit breaker."},
	{monauth.MetricBridgeSuccess, "monauth_bridge_success_total", "Successful secondary bridge logins."},
	{monauth.MetricBridgeFailure, "monauth_bridge_failure_total", "Failed secondary bridge attempts."},
	{monauth.MetricBridgeSkipped, "monauth_bridge_skipped_total", "Bridge attempts skipped by guards, cooldown, or the retry ceiling."},
	{monauth.MetricValidateInvalid, "monauth_validate_invalid_total", "Stored secondary credentials rejected by validation."},
	{monauth.MetricLogout, "monauth_logout_total", "Logouts."},
	{monauth.MetricLoginFlowStarted, "monauth_login_flow_started_total", "Interactive login flows opened."},
	{monauth.MetricLoginFlowDone, "monauth_login_flow_completed_total", "Interactive login flows that reached the redirect handoff."},
	{monauth.MetricLoginFlowCanceled, "monauth_login_flow_cancelled_total", "Interactive login flows abandoned or blocked."},
}

// Exporter renders a [monauth.Coordinator]'s counters.
type Exporter struct {
	source metricsSource
}

// NewExporter creates an exporter reading from the given coordinator.
func NewExporter(coordinator *monauth.Coordinator) *Exporter {
	return &Exporter{source: coordinator}
}

// NewExporterFromSource creates an exporter from a custom snapshot source.
func NewExporterFromSource(source metricsSource) *Exporter {
	return &Exporter{source: source}
}

// Handler returns an http.Handler that serves the metrics.
func (e *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(e.Render()))
	})
}

// Render writes the current counters in text exposition format.
func (e *Exporter) Render() string {
	if e == nil || e.source == nil {
		return ""
	}
	snapshot := e.source.MetricsSnapshot()

	var b strings.Builder
	b.Grow(4096)
	for _, def := range counterDefs {
		writeCounter(&b, def.name, def.help, snapshot.Counters[def.id])
	}
	return b.String()
}

func writeCounter(b *strings.Builder, name, help string, value uint64) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteByte('\n')
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteString(" counter\n")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}
