package observe

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Init installs the OTel SDK providers for one bridge run:
//
//   - A [sdkmetric.MeterProvider] with a ManualReader. Nothing is exported
//     while the session runs; the shutdown function collects the reader once
//     and logs a metrics summary at debug level.
//   - A [sdktrace.TracerProvider] without an exporter — spans are recorded
//     so in-process consumers and tests can observe them, but nothing is
//     shipped anywhere.
//
// Both providers are registered as the global OTel providers. Returns a
// shutdown function to defer from main().
func Init(ctx context.Context, serviceVersion string) (shutdown func(context.Context) error, err error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("mcpbridge"),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(meterProvider)

	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tracerProvider)

	return func(ctx context.Context) error {
		logSummary(ctx, reader)
		return errors.Join(
			meterProvider.Shutdown(ctx),
			tracerProvider.Shutdown(ctx),
		)
	}, nil
}

// logSummary collects the manual reader once and logs counter totals, the
// bridge's substitute for a scrape endpoint it will never live long enough
// to serve.
func logSummary(ctx context.Context, reader *sdkmetric.ManualReader) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		slog.Debug("metrics collection failed", "error", err)
		return
	}

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				var total int64
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
				slog.Debug("session metric", "name", m.Name, "total", total)
			case metricdata.Histogram[float64]:
				var count uint64
				var sum float64
				for _, dp := range data.DataPoints {
					count += dp.Count
					sum += dp.Sum
				}
				slog.Debug("session metric", "name", m.Name, "count", count, "sum_seconds", sum)
			}
		}
	}
}
