package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/w-h-a/triage/repository"
)

const (
	OperationsTotal   = "triage_repository_operations_total"
	OperationDuration = "triage_repository_operation_duration_seconds"
	RecordsReturned   = "triage_repository_records_returned"
)

// metricsRepository decorates another repository with Prometheus metrics.
// Results and errors pass through untouched.
type metricsRepository struct {
	next       repository.Repository
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	returned   prometheus.Histogram
}

func (m *metricsRepository) Save(ctx context.Context, record repository.Record) (repository.Record, error) {
	start := time.Now()

	rec, err := m.next.Save(ctx, record)

	m.observe(repository.OperationPutItem, start, err)

	return rec, err
}

func (m *metricsRepository) ListByPatient(ctx context.Context, patientId string, opts ...repository.ListOption) ([]repository.Record, error) {
	start := time.Now()

	records, err := m.next.ListByPatient(ctx, patientId, opts...)

	m.observe(repository.OperationQuery, start, err)
	if err == nil {
		m.returned.Observe(float64(len(records)))
	}

	return records, err
}

func (m *metricsRepository) observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	m.operations.WithLabelValues(operation, status).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func NewRepository(next repository.Repository, reg prometheus.Registerer) repository.Repository {
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: OperationsTotal,
		Help: "Triage repository calls by operation and outcome.",
	}, []string{"operation", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    OperationDuration,
		Help:    "Round trip time of triage repository calls.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"operation"})
	returned := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    RecordsReturned,
		Help:    "Records returned per patient query.",
		Buckets: prometheus.LinearBuckets(0, 5, 11),
	})

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(operations, duration, returned)

	return &metricsRepository{
		next:       next,
		operations: operations,
		duration:   duration,
		returned:   returned,
	}
}
