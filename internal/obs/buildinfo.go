package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ServiceName labels logs, metrics and health responses.
const ServiceName = "royaltyhub-api"

var (
	buildInfoOnce sync.Once

	// build_info is a constant 1 gauge carrying version/commit labels.
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "royaltyhub API build information.",
		},
		[]string{"version", "commit"},
	)
)

// InitBuildInfo registers build_info once and sets the labels for this binary.
func InitBuildInfo(version, commit string) {
	buildInfoOnce.Do(func() {
		prometheus.MustRegister(buildInfo)
	})
	buildInfo.WithLabelValues(version, commit).Set(1)
}
