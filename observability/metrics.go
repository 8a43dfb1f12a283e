package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names.
const (
	MetricFilesListed        = "filestream.files.listed"
	MetricFilesOpened        = "filestream.files.opened"
	MetricFilesSkipped       = "filestream.files.skipped"
	MetricReadFailures       = "filestream.read.failures"
	MetricItemsEmitted       = "filestream.items.emitted"
	MetricBytesRead          = "filestream.bytes.read"
	MetricCheckpointSaves    = "filestream.checkpoint.saves"
	MetricCheckpointDuration = "filestream.checkpoint.duration"
)

// Attribute keys.
const (
	AttrStage    = "stage"
	AttrProtocol = "protocol"
	AttrReason   = "reason"
	AttrCode     = "code"
	AttrStatus   = "status"
)

// Skip reasons recorded by RecordSkipped.
const (
	ReasonOpenFailed   = "open_failed"
	ReasonReadFailed   = "read_failed"
	ReasonResumeFailed = "resume_failed"
)

// Metrics holds the instruments recorded by filestream stages.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	filesListed        metric.Int64Counter
	filesOpened        metric.Int64Counter
	filesSkipped       metric.Int64Counter
	readFailures       metric.Int64Counter
	itemsEmitted       metric.Int64Counter
	bytesRead          metric.Int64Counter
	checkpointSaves    metric.Int64Counter
	checkpointDuration metric.Float64Histogram
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.filesListed, MetricFilesListed, "Files matched by a listing", "{file}"},
		{&m.filesOpened, MetricFilesOpened, "Files opened for reading", "{file}"},
		{&m.filesSkipped, MetricFilesSkipped, "Files skipped after an open or read failure", "{file}"},
		{&m.readFailures, MetricReadFailures, "Reads that failed the pull", "{file}"},
		{&m.itemsEmitted, MetricItemsEmitted, "Items emitted by a stage", "{item}"},
		{&m.bytesRead, MetricBytesRead, "Decoded bytes read by whole-file reads", "By"},
		{&m.checkpointSaves, MetricCheckpointSaves, "Checkpoint saves by outcome", "{save}"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("creating %s counter: %w", c.name, err)
		}
		*c.dst = counter
	}

	duration, err := meter.Float64Histogram(MetricCheckpointDuration,
		metric.WithDescription("Duration of checkpoint saves in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricCheckpointDuration, err)
	}
	m.checkpointDuration = duration
	return &m, nil
}

// RecordListed records the size of a listing.
func (m *Metrics) RecordListed(ctx context.Context, protocol string, n int) {
	if m == nil {
		return
	}
	m.filesListed.Add(ctx, int64(n), metric.WithAttributes(attribute.String(AttrProtocol, protocol)))
}

// RecordOpened records a file opened by stage.
func (m *Metrics) RecordOpened(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	m.filesOpened.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrStage, stage)))
}

// RecordSkipped records a file stage gave up on.
func (m *Metrics) RecordSkipped(ctx context.Context, stage, reason string) {
	if m == nil {
		return
	}
	m.filesSkipped.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrStage, stage),
		attribute.String(AttrReason, reason),
	))
}

// RecordReadFailure records a failure returned to the caller, by error code.
func (m *Metrics) RecordReadFailure(ctx context.Context, stage, code string) {
	if m == nil {
		return
	}
	m.readFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrStage, stage),
		attribute.String(AttrCode, code),
	))
}

// RecordEmitted records an item emitted by stage.
func (m *Metrics) RecordEmitted(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	m.itemsEmitted.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrStage, stage)))
}

// RecordBytes records n bytes read by stage.
func (m *Metrics) RecordBytes(ctx context.Context, stage string, n int) {
	if m == nil {
		return
	}
	m.bytesRead.Add(ctx, int64(n), metric.WithAttributes(attribute.String(AttrStage, stage)))
}

// RecordCheckpointSave records a save attempt sequence and how long it took.
func (m *Metrics) RecordCheckpointSave(ctx context.Context, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "failed"
	}
	attrs := metric.WithAttributes(attribute.String(AttrStatus, status))
	m.checkpointSaves.Add(ctx, 1, attrs)
	m.checkpointDuration.Record(ctx, d.Seconds(), attrs)
}
