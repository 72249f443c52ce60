package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/enrollment-ledger/pkg/errors"
	"github.com/noah-isme/enrollment-ledger/pkg/events"
)

const tracerName = "github.com/noah-isme/enrollment-ledger/internal/service"

// operationRecorder receives the outcome of every engine operation.
type operationRecorder interface {
	ObserveOperation(operation, outcome string, duration time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) ObserveOperation(string, string, time.Duration) {}

// instrumentation wraps engine operations in a span and an outcome metric.
type instrumentation struct {
	tracer  trace.Tracer
	metrics operationRecorder
}

func newInstrumentation(metrics operationRecorder) instrumentation {
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return instrumentation{tracer: otel.Tracer(tracerName), metrics: metrics}
}

// start opens a span for operation. The returned func must be called with
// the operation's final error.
func (i instrumentation) start(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	started := time.Now()
	ctx, span := i.tracer.Start(ctx, "ledger."+operation, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		outcome := outcomeOf(err)
		span.SetAttributes(attribute.String("ledger.outcome", outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
		i.metrics.ObserveOperation(operation, outcome, time.Since(started))
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case appErrors.ErrNotFound.Code:
			return "not_found"
		case appErrors.ErrConflict.Code:
			return "conflict"
		case appErrors.ErrValidation.Code:
			return "invalid"
		case appErrors.ErrUnavailable.Code:
			return "unavailable"
		}
	}
	return "error"
}

// publishAfterCommit delivers event once state is durable. Failures are
// logged and never reported to the caller.
func publishAfterCommit(ctx context.Context, publisher events.Publisher, logger *zap.Logger, event events.Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn("publish ledger event",
			zap.String("event_type", event.Type),
			zap.String("student_id", event.StudentID),
			zap.String("course_id", event.CourseID),
			zap.Error(err),
		)
	}
}
