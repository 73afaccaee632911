package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StoreMetrics provides observability for versioned backend operations
// (badger, s3, memory).
//
// This interface is optional - backends that are not instrumented run
// without metrics collection. Obtain one from Registry.Store.
type StoreMetrics interface {
	// ObserveOperation records one backend call.
	//
	// Parameters:
	//   - backend: Backend type (e.g., "badger", "s3")
	//   - operation: "get", "put", "delete" or "scan"
	//   - duration: Time taken
	//   - err: Error if the call failed, nil if successful
	ObserveOperation(backend string, operation string, duration time.Duration, err error)

	// RecordBytes records value bytes read or written.
	//
	// Parameters:
	//   - backend: Backend type
	//   - direction: "read" or "write"
	//   - bytes: Number of bytes
	RecordBytes(backend string, direction string, bytes int)
}

// storeMetrics is the Prometheus implementation of StoreMetrics.
type storeMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
}

// newStoreMetrics registers the backend collectors on reg.
func newStoreMetrics(reg prometheus.Registerer) *storeMetrics {
	return &storeMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittolink_store_operations_total",
				Help: "Total number of backend operations by backend, operation and status",
			},
			[]string{"backend", "operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittolink_store_operation_duration_seconds",
				Help: "Duration of backend operations in seconds",
				Buckets: []float64{
					0.0001, // 100us
					0.001,  // 1ms
					0.01,   // 10ms
					0.05,   // 50ms
					0.1,    // 100ms
					0.5,    // 500ms
					1.0,    // 1s
					5.0,    // 5s
				},
			},
			[]string{"backend", "operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittolink_store_bytes_total",
				Help: "Total value bytes read from or written to the backend",
			},
			[]string{"backend", "direction"},
		),
	}
}

func (m *storeMetrics) ObserveOperation(backend string, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	m.operationsTotal.WithLabelValues(backend, operation, status).Inc()
	m.operationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

func (m *storeMetrics) RecordBytes(backend string, direction string, bytes int) {
	m.bytesTransferred.WithLabelValues(backend, direction).Add(float64(bytes))
}
