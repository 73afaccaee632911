// Package metrics provides Prometheus metrics collection for DittoLink components.
//
// All metrics are optional. A nil *Registry stands for disabled metrics: it
// hands out no-op link metrics and leaves store backends uninstrumented.
//
// Usage:
//
//	reg := metrics.NewRegistry()
//	dispatcher := link.NewDispatcher(handler, reg.Link(), nil)
//	store := object.NewStore(object.Instrument(backend, "badger", reg.Store()))
//	server := metrics.NewServer(metrics.ServerConfig{Registry: reg})
//
//	// Metrics disabled
//	var none *metrics.Registry
//	dispatcher := link.NewDispatcher(handler, none.Link(), nil)
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry owns the Prometheus registry of one process and every DittoLink
// collector registered on it.
type Registry struct {
	prom  *prometheus.Registry
	link  *linkMetrics
	store *storeMetrics
}

// NewRegistry creates a registry with the link and store collectors, the Go
// runtime collector and the process collector registered.
//
// Each call returns an independent registry, so collectors are never
// registered twice.
func NewRegistry() *Registry {
	prom := prometheus.NewRegistry()
	prom.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Registry{
		prom:  prom,
		link:  newLinkMetrics(prom),
		store: newStoreMetrics(prom),
	}
}

// Enabled reports whether r collects anything.
func (r *Registry) Enabled() bool {
	return r != nil
}

// Link returns the link request collector, or a no-op one when r is nil.
func (r *Registry) Link() LinkMetrics {
	if r == nil {
		return NewNoopLinkMetrics()
	}
	return r.link
}

// Store returns the backend collector, or nil when r is nil.
func (r *Registry) Store() StoreMetrics {
	if r == nil {
		return nil
	}
	return r.store
}

// Gatherer returns what the /metrics endpoint serves, or nil when r is nil.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return nil
	}
	return r.prom
}
