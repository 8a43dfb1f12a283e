// Package metrictest records filestream metrics in memory so tests can
// assert on them.
package metrictest

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/kbukum/filestream/observability"
)

// Reader collects the metrics recorded through the Metrics returned by New.
type Reader struct {
	t      testing.TB
	reader *sdkmetric.ManualReader
}

// New returns Metrics backed by an in-memory reader.
func New(t testing.TB) (*observability.Metrics, *Reader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := observability.NewMetrics(mp.Meter(observability.MeterName))
	if err != nil {
		t.Fatalf("creating metrics: %v", err)
	}
	return m, &Reader{t: t, reader: reader}
}

// Sum returns the total of the integer counter name over the data points
// carrying every attribute in attrs.
func (r *Reader) Sum(name string, attrs ...attribute.KeyValue) int64 {
	r.t.Helper()
	var rm metricdata.ResourceMetrics
	if err := r.reader.Collect(context.Background(), &rm); err != nil {
		r.t.Fatalf("collecting metrics: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				r.t.Fatalf("%s is %T, not an int64 sum", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				if matches(dp.Attributes, attrs) {
					total += dp.Value
				}
			}
		}
	}
	return total
}

// Count returns the number of recordings of the histogram name over the
// data points carrying every attribute in attrs.
func (r *Reader) Count(name string, attrs ...attribute.KeyValue) uint64 {
	r.t.Helper()
	var rm metricdata.ResourceMetrics
	if err := r.reader.Collect(context.Background(), &rm); err != nil {
		r.t.Fatalf("collecting metrics: %v", err)
	}
	var total uint64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			hist, ok := m.Data.(metricdata.Histogram[float64])
			if !ok {
				r.t.Fatalf("%s is %T, not a float64 histogram", name, m.Data)
			}
			for _, dp := range hist.DataPoints {
				if matches(dp.Attributes, attrs) {
					total += dp.Count
				}
			}
		}
	}
	return total
}

func matches(set attribute.Set, attrs []attribute.KeyValue) bool {
	for _, kv := range attrs {
		v, ok := set.Value(kv.Key)
		if !ok || v.Emit() != kv.Value.Emit() {
			return false
		}
	}
	return true
}
