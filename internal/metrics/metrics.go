// Package metrics exposes the pipeline node's operational counters over
// Prometheus, grounded on OtchereDev-ris-dicom-connector/cmd/server/main.go's
// promhttp.Handler() wiring - the one pack repo that serves DICOM traffic
// alongside a /metrics endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ImagesAdmitted counts every C-STORE sub-operation the acceptance
	// pipeline admitted into a patient slot (spec §4.F step 4).
	ImagesAdmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dicomnode_images_admitted_total",
		Help: "Total number of datasets admitted into a patient slot.",
	})

	// PatientsInFlight reports how many patient slots currently hold
	// buffered, undispatched data.
	PatientsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dicomnode_patients_in_flight",
		Help: "Number of patient slots currently buffered awaiting dispatch.",
	})

	// DispatchDuration observes the wall-clock time of one full dispatch
	// sequence (spec §4.F dispatch steps 1-6), from slot extraction through
	// output.Send.
	DispatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dicomnode_dispatch_duration_seconds",
		Help:    "Duration of a full dispatch sequence, in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	// DispatchFailures counts dispatches that ended in a process or output
	// error (status still 0x0000 to the SCU per store-and-forward
	// semantics; this is the node's own visibility into that failure).
	DispatchFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dicomnode_dispatch_failures_total",
		Help: "Total number of dispatches that failed in process or output.",
	})
)

func init() {
	prometheus.MustRegister(ImagesAdmitted, PatientsInFlight, DispatchDuration, DispatchFailures)
}

// Handler returns the HTTP handler serving the registered metrics in the
// Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
