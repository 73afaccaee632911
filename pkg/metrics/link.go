package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LinkMetrics provides observability for link requests and the object
// lifecycle events they cause.
//
// This interface is optional - if not provided to the dispatcher or the
// handlers, a no-op implementation is used with zero overhead.
//
// Obtain one from Registry.Link.
type LinkMetrics interface {
	// RecordRequest records a completed request.
	//
	// Parameters:
	//   - procedure: Procedure name (e.g., "CREATE", "REMOVE", "ITERATE")
	//   - container: Container the request addressed
	//   - duration: Time taken to process the request
	//   - status: Response status name ("OK" for success)
	RecordRequest(procedure string, container string, duration time.Duration, status string)

	// RecordRequestStart increments the in-flight request counter.
	RecordRequestStart(procedure string, container string)

	// RecordRequestEnd decrements the in-flight request counter.
	RecordRequestEnd(procedure string, container string)

	// RecordRateLimited counts a request rejected by admission control.
	RecordRateLimited(procedure string)

	// RecordPanic counts a handler panic that was contained by the dispatcher.
	RecordPanic(procedure string)

	// RecordLinkCountChange records a link count update.
	//
	// Parameters:
	//   - container: Container the object lives in
	//   - direction: "increment" or "decrement"
	RecordLinkCountChange(container string, direction string)

	// RecordObjectDeleted counts an object removed because its last hard
	// link went away.
	RecordObjectDeleted(container string)

	// RecordIterated records how many entries one iteration produced.
	RecordIterated(container string, entries int)
}

// linkMetrics is the Prometheus implementation of LinkMetrics.
type linkMetrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec
	rateLimited      *prometheus.CounterVec
	panics           *prometheus.CounterVec
	linkCountChanges *prometheus.CounterVec
	objectsDeleted   *prometheus.CounterVec
	iteratedEntries  *prometheus.HistogramVec
}

// newLinkMetrics registers the link collectors on reg.
func newLinkMetrics(reg prometheus.Registerer) *linkMetrics {
	return &linkMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittolink_requests_total",
				Help: "Total number of link requests by procedure, container, and status",
			},
			[]string{"procedure", "container", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittolink_request_duration_milliseconds",
				Help: "Duration of link requests in milliseconds",
				Buckets: []float64{
					0.1,  // 100us
					1,    // 1ms
					10,   // 10ms
					100,  // 100ms
					1000, // 1s
				},
			},
			[]string{"procedure", "container"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittolink_requests_in_flight",
				Help: "Current number of link requests being processed",
			},
			[]string{"procedure", "container"},
		),
		rateLimited: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittolink_requests_rate_limited_total",
				Help: "Total number of link requests rejected by the rate limiter",
			},
			[]string{"procedure"},
		),
		panics: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittolink_handler_panics_total",
				Help: "Total number of handler panics contained by the dispatcher",
			},
			[]string{"procedure"},
		),
		linkCountChanges: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittolink_link_count_changes_total",
				Help: "Total number of link count updates by direction",
			},
			[]string{"container", "direction"},
		),
		objectsDeleted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittolink_objects_deleted_total",
				Help: "Total number of objects deleted after losing their last hard link",
			},
			[]string{"container"},
		),
		iteratedEntries: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dittolink_iterate_entries",
				Help:    "Number of entries returned per ITERATE request",
				Buckets: []float64{1, 10, 100, 1000, 10000},
			},
			[]string{"container"},
		),
	}
}

func (m *linkMetrics) RecordRequest(procedure string, container string, duration time.Duration, status string) {
	m.requestsTotal.WithLabelValues(procedure, container, status).Inc()
	m.requestDuration.WithLabelValues(procedure, container).Observe(float64(duration.Microseconds()) / 1000)
}

func (m *linkMetrics) RecordRequestStart(procedure string, container string) {
	m.requestsInFlight.WithLabelValues(procedure, container).Inc()
}

func (m *linkMetrics) RecordRequestEnd(procedure string, container string) {
	m.requestsInFlight.WithLabelValues(procedure, container).Dec()
}

func (m *linkMetrics) RecordRateLimited(procedure string) {
	m.rateLimited.WithLabelValues(procedure).Inc()
}

func (m *linkMetrics) RecordPanic(procedure string) {
	m.panics.WithLabelValues(procedure).Inc()
}

func (m *linkMetrics) RecordLinkCountChange(container string, direction string) {
	m.linkCountChanges.WithLabelValues(container, direction).Inc()
}

func (m *linkMetrics) RecordObjectDeleted(container string) {
	m.objectsDeleted.WithLabelValues(container).Inc()
}

func (m *linkMetrics) RecordIterated(container string, entries int) {
	m.iteratedEntries.WithLabelValues(container).Observe(float64(entries))
}

// noopLinkMetrics is a no-op implementation of LinkMetrics with zero overhead.
type noopLinkMetrics struct{}

// NewNoopLinkMetrics returns a LinkMetrics that records nothing.
func NewNoopLinkMetrics() LinkMetrics { return noopLinkMetrics{} }

func (noopLinkMetrics) RecordRequest(string, string, time.Duration, string) {}
func (noopLinkMetrics) RecordRequestStart(string, string)                   {}
func (noopLinkMetrics) RecordRequestEnd(string, string)                     {}
func (noopLinkMetrics) RecordRateLimited(string)                            {}
func (noopLinkMetrics) RecordPanic(string)                                  {}
func (noopLinkMetrics) RecordLinkCountChange(string, string)                {}
func (noopLinkMetrics) RecordObjectDeleted(string)                          {}
func (noopLinkMetrics) RecordIterated(string, int)                          {}
