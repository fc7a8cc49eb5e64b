package openr

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Counters is the injected sink interface for the six counters named in
// spec.md §6. Design Notes §9 calls for counters to be an injected
// interface rather than ambient global state so tests can observe them --
// this is that interface.
type Counters interface {
	IncFullSync()
	IncFullSyncSuccess()
	IncFullSyncFailure()
	IncFinalizedSync()
	IncFinalizedSyncSuccess()
	IncFinalizedSyncFailure()
}

// noopCounters is the default Counters used when a Store is built without
// one -- every operation stays legal, just unobserved.
type noopCounters struct{}

func (noopCounters) IncFullSync()             {}
func (noopCounters) IncFullSyncSuccess()      {}
func (noopCounters) IncFullSyncFailure()      {}
func (noopCounters) IncFinalizedSync()        {}
func (noopCounters) IncFinalizedSyncSuccess() {}
func (noopCounters) IncFinalizedSyncFailure() {}

// MemoryCounters is a Counters implementation backed by plain in-process
// counts, used by tests that want to assert on spec.md §6's counters
// without standing up a Prometheus registry.
type MemoryCounters struct {
	FullSync             uint64
	FullSyncSuccess      uint64
	FullSyncFailure      uint64
	FinalizedSync        uint64
	FinalizedSyncSuccess uint64
	FinalizedSyncFailure uint64
}

func (counters *MemoryCounters) IncFullSync()        { atomic.AddUint64(&counters.FullSync, 1) }
func (counters *MemoryCounters) IncFullSyncSuccess() { atomic.AddUint64(&counters.FullSyncSuccess, 1) }
func (counters *MemoryCounters) IncFullSyncFailure() { atomic.AddUint64(&counters.FullSyncFailure, 1) }
func (counters *MemoryCounters) IncFinalizedSync()   { atomic.AddUint64(&counters.FinalizedSync, 1) }
func (counters *MemoryCounters) IncFinalizedSyncSuccess() {
	atomic.AddUint64(&counters.FinalizedSyncSuccess, 1)
}
func (counters *MemoryCounters) IncFinalizedSyncFailure() {
	atomic.AddUint64(&counters.FinalizedSyncFailure, 1)
}

// PrometheusCounters is a Counters implementation backed by
// prometheus/client_golang, in the style devicedb's storage layer uses
// for its own error counters. Register it with an HTTP server's /metrics
// handler via promhttp to expose it.
type PrometheusCounters struct {
	fullSync             prometheus.Counter
	fullSyncSuccess      prometheus.Counter
	fullSyncFailure      prometheus.Counter
	finalizedSync        prometheus.Counter
	finalizedSyncSuccess prometheus.Counter
	finalizedSyncFailure prometheus.Counter
}

// NewPrometheusCounters registers the six counters with registerer and
// returns a Counters backed by them.
func NewPrometheusCounters(registerer prometheus.Registerer) *PrometheusCounters {
	counters := &PrometheusCounters{
		fullSync: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "num_full_sync",
			Help: "Number of full sync sessions initiated.",
		}),
		fullSyncSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "num_full_sync_success",
			Help: "Number of full sync sessions that completed successfully.",
		}),
		fullSyncFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "num_full_sync_failure",
			Help: "Number of full sync sessions that failed.",
		}),
		finalizedSync: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "num_finalized_sync",
			Help: "Number of finalize-sync rounds initiated.",
		}),
		finalizedSyncSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "num_finalized_sync_success",
			Help: "Number of finalize-sync rounds that completed successfully.",
		}),
		finalizedSyncFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "num_finalized_sync_failure",
			Help: "Number of finalize-sync rounds that failed.",
		}),
	}

	registerer.MustRegister(
		counters.fullSync,
		counters.fullSyncSuccess,
		counters.fullSyncFailure,
		counters.finalizedSync,
		counters.finalizedSyncSuccess,
		counters.finalizedSyncFailure,
	)

	return counters
}

func (counters *PrometheusCounters) IncFullSync()             { counters.fullSync.Inc() }
func (counters *PrometheusCounters) IncFullSyncSuccess()      { counters.fullSyncSuccess.Inc() }
func (counters *PrometheusCounters) IncFullSyncFailure()      { counters.fullSyncFailure.Inc() }
func (counters *PrometheusCounters) IncFinalizedSync()        { counters.finalizedSync.Inc() }
func (counters *PrometheusCounters) IncFinalizedSyncSuccess() { counters.finalizedSyncSuccess.Inc() }
func (counters *PrometheusCounters) IncFinalizedSyncFailure() { counters.finalizedSyncFailure.Inc() }
