// Package observability provides OpenTelemetry metrics for filestream
// stages: files listed, opened and skipped, items emitted, bytes read, read
// failures and checkpoint saves.
//
// Export to an OTLP collector:
//
//	mp, err := observability.InitMeter(ctx, &observability.MeterConfig{Endpoint: "localhost:4318"}, log)
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(mp.Meter(observability.MeterName))
//	lines.WithMetrics(metrics)
//
// A nil *Metrics records nothing, so stages run unchanged without it.
package observability
