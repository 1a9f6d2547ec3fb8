package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	jobTransitionCounter metric.Int64Counter
	jobSweptCounter      metric.Int64Counter
	uploadBytesHistogram metric.Int64Histogram
	uploadRejectCounter  metric.Int64Counter
	auditFailureCounter  metric.Int64Counter
)

// InitDomainMetrics creates the job, upload and audit instruments on the
// global meter provider. Call it after SetupMetrics.
func InitDomainMetrics() error {
	meter := otel.Meter("datapilot")

	var err error
	if jobTransitionCounter, err = meter.Int64Counter(
		"datapilot.jobs.transitions",
		metric.WithDescription("Job status transitions committed"),
		metric.WithUnit("{transition}"),
	); err != nil {
		return err
	}
	if jobSweptCounter, err = meter.Int64Counter(
		"datapilot.jobs.swept",
		metric.WithDescription("Processing jobs failed by the stuck-job sweep"),
		metric.WithUnit("{job}"),
	); err != nil {
		return err
	}
	if uploadBytesHistogram, err = meter.Int64Histogram(
		"datapilot.datasets.uploaded_bytes",
		metric.WithDescription("Size of accepted dataset uploads"),
		metric.WithUnit("By"),
	); err != nil {
		return err
	}
	if uploadRejectCounter, err = meter.Int64Counter(
		"datapilot.datasets.rejected",
		metric.WithDescription("Dataset uploads rejected before storage"),
		metric.WithUnit("{upload}"),
	); err != nil {
		return err
	}
	if auditFailureCounter, err = meter.Int64Counter(
		"datapilot.audit.failures",
		metric.WithDescription("Audit log writes that failed"),
		metric.WithUnit("{write}"),
	); err != nil {
		return err
	}
	return nil
}

func RecordJobTransition(ctx context.Context, jobType, from, to string) {
	if jobTransitionCounter != nil {
		jobTransitionCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("job.type", jobType),
			attribute.String("from", from),
			attribute.String("to", to),
		))
	}
}

func RecordJobsSwept(ctx context.Context, n int) {
	if jobSweptCounter != nil && n > 0 {
		jobSweptCounter.Add(ctx, int64(n))
	}
}

func RecordUpload(ctx context.Context, fileType string, size int64) {
	if uploadBytesHistogram != nil {
		uploadBytesHistogram.Record(ctx, size, metric.WithAttributes(attribute.String("file_type", fileType)))
	}
}

func RecordUploadRejected(ctx context.Context, reason string) {
	if uploadRejectCounter != nil {
		uploadRejectCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}

func RecordAuditFailure(ctx context.Context, action string) {
	if auditFailureCounter != nil {
		auditFailureCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
	}
}
