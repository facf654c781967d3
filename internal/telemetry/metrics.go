package telemetry

import "github.com/prometheus/client_golang/prometheus"

var BootstrapComponentStatus = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "kubarr",
		Subsystem: "bootstrap",
		Name:      "component_status",
		Help:      "Bootstrap component status (1=ready, 0=pending/running/failed).",
	},
	[]string{"component"},
)

var ProxyRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "kubarr",
		Subsystem: "proxy",
		Name:      "requests_total",
		Help:      "Total number of requests proxied to apps, by app and outcome.",
	},
	[]string{"app", "outcome"},
)

var HelmOperationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "kubarr",
		Subsystem: "helm",
		Name:      "operations_total",
		Help:      "Total number of helm operations, by operation and outcome.",
	},
	[]string{"operation", "outcome"},
)

var NetworkTopologyEdges = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "kubarr",
		Subsystem: "nettelemetry",
		Name:      "topology_edges",
		Help:      "Number of edges in the most recently computed network topology.",
	},
)

// All returns every kubarr-specific metric for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		BootstrapComponentStatus,
		ProxyRequestsTotal,
		HelmOperationsTotal,
		NetworkTopologyEdges,
	}
}
