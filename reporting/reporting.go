// Package reporting delivers failures of secondary catalog operations to
// logs and metrics.
package reporting

import (
	"context"

	apperrors "catalog-service/errors"
	"catalog-service/pkg/aws"

	"go.uber.org/zap"
)

// Reporter receives operation failures. catalog.Engine accepts any Reporter.
type Reporter interface {
	Report(ctx context.Context, err *apperrors.OperationError)
}

// LogReporter writes each failure as a structured log entry.
type LogReporter struct {
	log *zap.Logger
}

func NewLogReporter(log *zap.Logger) *LogReporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogReporter{log: log}
}

func (r *LogReporter) Report(_ context.Context, err *apperrors.OperationError) {
	if err == nil {
		return
	}
	fields := []zap.Field{
		zap.String("operation", err.Operation),
		zap.String("class", err.Class),
		zap.String("severity", string(err.Severity)),
		zap.String("error", err.Message),
		zap.Time("occurred_at", err.OccurredAt),
	}
	for k, v := range err.Context {
		fields = append(fields, zap.String("ctx_"+k, v))
	}
	switch err.Severity {
	case apperrors.SeverityError:
		r.log.Error("Catalog operation failure reported", fields...)
	case apperrors.SeverityWarning:
		r.log.Warn("Catalog operation failure reported", fields...)
	default:
		r.log.Info("Catalog operation failure reported", fields...)
	}
}

// MetricsRecorder is the part of aws.MetricsClient used for failure counts.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

// MetricsReporter counts failures per operation and severity.
type MetricsReporter struct {
	metrics MetricsRecorder
	log     *zap.Logger
}

func NewMetricsReporter(metrics MetricsRecorder, log *zap.Logger) *MetricsReporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &MetricsReporter{metrics: metrics, log: log}
}

func (r *MetricsReporter) Report(ctx context.Context, err *apperrors.OperationError) {
	if err == nil {
		return
	}
	dims := map[string]string{
		"Operation": err.Operation,
		"Severity":  string(err.Severity),
	}
	if mErr := r.metrics.RecordCount(context.WithoutCancel(ctx), aws.MetricOperationFailures, dims); mErr != nil {
		r.log.Warn("Failed to record failure metric", zap.Error(mErr), zap.String("operation", err.Operation))
	}
}

// Multi fans a failure out to several reporters in order.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, err *apperrors.OperationError) {
	for _, r := range m {
		if r != nil {
			r.Report(ctx, err)
		}
	}
}
