// Package observe provides the bridge's observability primitives:
// OpenTelemetry metric instruments and the SDK providers backing them.
//
// The bridge is a one-shot CLI, so metrics are not exported to a scrape
// endpoint; [Init] installs a ManualReader whose final collection is logged
// as a session summary at shutdown. Tests use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// meterName is the instrumentation scope name used for all bridge metrics.
const meterName = "github.com/mcpbridge/mcpbridge"

// latencyBuckets defines histogram boundaries (in seconds) covering both
// sub-second tool calls and multi-second model completions.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// Metrics holds all OpenTelemetry instruments for the bridge. All fields
// are safe for concurrent use — the underlying OTel types handle their own
// synchronisation.
type Metrics struct {
	// LLMDuration tracks model completion latency.
	LLMDuration metric.Float64Histogram

	// ToolDuration tracks tool invocation latency.
	ToolDuration metric.Float64Histogram

	// LLMRequests counts model API calls. Use with attributes:
	//   attribute.String("status", "ok" | "error")
	LLMRequests metric.Int64Counter

	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// SessionTurns counts completed model turns per session outcome.
	SessionTurns metric.Int64Counter
}

// NewMetrics creates a fully initialised [Metrics] using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.LLMDuration, err = m.Float64Histogram("mcpbridge.llm.duration",
		metric.WithDescription("Latency of model completions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolDuration, err = m.Float64Histogram("mcpbridge.tool.duration",
		metric.WithDescription("Latency of tool invocations."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMRequests, err = m.Int64Counter("mcpbridge.llm.requests",
		metric.WithDescription("Total model API requests by status."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("mcpbridge.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.SessionTurns, err = m.Int64Counter("mcpbridge.session.turns",
		metric.WithDescription("Total completed model turns."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process-wide [Metrics] backed by the global meter
// provider. Instruments created before [Init] runs record into the OTel
// no-op provider, which is safe.
func Default() *Metrics {
	defaultOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			// Instrument names are constants, so this only happens with a
			// misbehaving provider; fall back to no-op instruments.
			m, _ = NewMetrics(noop.NewMeterProvider())
		}
		defaultMetrics = m
	})
	return defaultMetrics
}
