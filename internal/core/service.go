// Package core implements the chain-of-custody service: the medicine and
// batch registry, the conservation-checked inventory ledger, the append-only
// supply-chain event log, and the read-only projections over them.
package core

import (
	"context"
	"time"

	"pharmxchain/pkg/domain"
)

// Service exposes the transactional custody operations. Role and activation
// checks run against the injected directory before a transaction starts;
// everything that touches ledger state happens inside a single store
// transaction that either fully commits or leaves no trace.
type Service struct {
	store     PersistentStore
	directory Directory
	logger    Logger
	metrics   MetricsRecorder
	tracer    Tracer
	alerts    AlertSink
	threshold int64
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithLogger attaches a logger; a *slog.Logger satisfies the interface.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(rec MetricsRecorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithTracer attaches a tracer.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithAlertSink attaches a low-inventory notification sink.
func WithAlertSink(sink AlertSink) Option {
	return func(s *Service) {
		if sink != nil {
			s.alerts = sink
		}
	}
}

// WithLowStockThreshold overrides the post-operation balance at or below
// which a low-inventory alert is raised.
func WithLowStockThreshold(threshold int64) Option {
	return func(s *Service) {
		s.threshold = threshold
	}
}

// NewService constructs a service backed by the supplied store and directory.
func NewService(store PersistentStore, directory Directory, opts ...Option) *Service {
	s := &Service{
		store:     store,
		directory: directory,
		logger:    noopLogger{},
		metrics:   noopMetrics{},
		tracer:    noopTracer{},
		alerts:    noopAlerts{},
		threshold: domain.DefaultLowStockThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// MultiAlertSink fans a low-inventory alert out to several sinks.
func MultiAlertSink(sinks ...AlertSink) AlertSink {
	return multiAlertSink(sinks)
}

type multiAlertSink []AlertSink

func (m multiAlertSink) Notify(ctx context.Context, alert domain.LowStockAlert) {
	for _, sink := range m {
		if sink != nil {
			sink.Notify(ctx, alert)
		}
	}
}

// run executes a mutating operation inside a store transaction with metrics
// and tracing wrapped around it. Non-blocking rule violations are logged;
// blocking ones surface as RuleViolationError with the transaction rolled
// back.
func (s *Service) run(ctx context.Context, operation string, fn func(tx Transaction) error) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, operation)
	res, err := s.store.RunInTransaction(ctx, fn)
	s.metrics.Observe(ctx, operation, err == nil, time.Since(start))
	span.End(err)
	for _, v := range res.Violations {
		if v.Severity != domain.SeverityBlock {
			s.logger.Warn("ledger invariant warning",
				"operation", operation,
				"rule", v.Rule,
				"message", v.Message,
			)
		}
	}
	return err
}

// requireActiveRole verifies the caller holds the required role and is
// active in the directory.
func (s *Service) requireActiveRole(address string, role Role) error {
	if got := s.directory.RoleOf(address); got != role {
		return domain.UnauthorizedError{Address: address, Required: role, Reason: "caller holds role " + string(got)}
	}
	if !s.directory.IsActive(address) {
		return domain.UnauthorizedError{Address: address, Required: role, Reason: "caller is deactivated"}
	}
	return nil
}

// maybeAlert raises a low-inventory notification when the post-operation
// balance is at or below the threshold. The zero balance after dispensing
// everything still fires.
func (s *Service) maybeAlert(ctx context.Context, holder, medicineID, batchID string, balance int64) {
	if balance > s.threshold {
		return
	}
	s.alerts.Notify(ctx, domain.LowStockAlert{
		Holder:     holder,
		MedicineID: medicineID,
		BatchID:    batchID,
		Balance:    balance,
		Threshold:  s.threshold,
		At:         time.Now().UTC(),
	})
}
