package core

import (
	"context"
	"time"

	"pharmxchain/pkg/domain"
)

// Logger is the slog-shaped logging surface consumed by the service; a
// *slog.Logger satisfies it directly.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NopLogger returns a logger that discards everything.
func NopLogger() Logger { return noopLogger{} }

// MetricsRecorder observes service operation outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// TraceSpan finalizes a single traced operation.
type TraceSpan interface {
	End(err error)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

type noopTracer struct{}

type noopSpan struct{}

func (noopSpan) End(error) {}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

// AlertSink receives low-inventory notifications raised by transfers and
// dispensing. Implementations must not block the calling operation.
type AlertSink interface {
	Notify(ctx context.Context, alert domain.LowStockAlert)
}

type noopAlerts struct{}

func (noopAlerts) Notify(context.Context, domain.LowStockAlert) {}

// LogAlertSink forwards low-inventory alerts to a logger.
type LogAlertSink struct {
	Logger Logger
}

// Notify implements AlertSink.
func (s LogAlertSink) Notify(_ context.Context, alert domain.LowStockAlert) {
	if s.Logger == nil {
		return
	}
	s.Logger.Warn("low inventory",
		"holder", alert.Holder,
		"medicine_id", alert.MedicineID,
		"batch_id", alert.BatchID,
		"balance", alert.Balance,
		"threshold", alert.Threshold,
	)
}
