package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(buildInfo, stateBackendInfo)
}

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "build_info",
		Help: "A constant metric with labels for version, commit and Go runtime.",
	},
	[]string{"version", "commit", "goversion"},
)

var stateBackendInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "mode_state_backend_info",
		Help: "Which store keeps per-chat conversion modes.",
	},
	[]string{"backend"},
)

func SetBuildInfo(version, commit string) {
	buildInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)
}

func SetStateBackend(backend string) {
	stateBackendInfo.WithLabelValues(norm(backend)).Set(1)
}
