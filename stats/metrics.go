// Package stats exports the checker's per-instance Prometheus metrics, using
// the same private-registry + promhttp.HandlerFor wiring as SeaweedFS's
// weed/stats/metrics.go.
package stats

import (
	"net"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/objvault/vaultcheck/glog"
)

const Namespace = "vaultcheck"

var (
	Gather = prometheus.NewRegistry()

	CheckerEnqueueCostSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "checker",
			Name:      "enqueue_cost_s",
			Help:      "Seconds between an instance being enqueued and a worker picking it up.",
		}, []string{"instance_id"})

	CheckerNumScanned = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "checker",
			Name:      "num_scanned",
			Help:      "Rowset meta records scanned in the last forward check.",
		}, []string{"instance_id"})

	CheckerNumScannedWithSegment = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "checker",
			Name:      "num_scanned_with_segment",
			Help:      "Rowsets with num_segments > 0 scanned in the last forward check.",
		}, []string{"instance_id"})

	CheckerNumCheckFailed = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "checker",
			Name:      "num_check_failed",
			Help:      "Failures counted in the last check (malformed records, missing objects, list failures).",
		}, []string{"instance_id"})

	CheckerCheckCostSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "checker",
			Name:      "check_cost_s",
			Help:      "Wall-clock seconds the last check took.",
		}, []string{"instance_id"})

	CheckerInstanceVolume = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "checker",
			Name:      "instance_volume",
			Help:      "Summed object size observed for the instance in the last forward check (lower bound on listing failure).",
		}, []string{"instance_id"})

	CheckerLastSuccessTimeMs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "checker",
			Name:      "last_success_time_ms",
			Help:      "Unix millis of the last successful check, as recorded in the job lease record.",
		}, []string{"instance_id"})
)

func init() {
	Gather.MustRegister(CheckerEnqueueCostSeconds)
	Gather.MustRegister(CheckerNumScanned)
	Gather.MustRegister(CheckerNumScannedWithSegment)
	Gather.MustRegister(CheckerNumCheckFailed)
	Gather.MustRegister(CheckerCheckCostSeconds)
	Gather.MustRegister(CheckerInstanceVolume)
	Gather.MustRegister(CheckerLastSuccessTimeMs)
	Gather.MustRegister(collectors.NewGoCollector())
	Gather.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// StartMetricsServer serves /metrics on ip:port. A port of 0 disables the server.
func StartMetricsServer(ip string, port int) {
	if port == 0 {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Gather, promhttp.HandlerOpts{}))
	addr := net.JoinHostPort(ip, strconv.Itoa(port))
	glog.V(0).Infof("metrics server listening on %s", addr)
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			glog.Errorf("metrics server stopped: %v", err)
		}
	}()
}
