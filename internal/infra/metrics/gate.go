package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(gateInUse, gateWaiting, gateCapacity) }

var (
	gateInUse = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "conversion_gate_in_use",
		Help: "Conversion slots currently held.",
	})
	gateWaiting = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "conversion_gate_waiting",
		Help: "Jobs blocked waiting for a conversion slot.",
	})
	gateCapacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "conversion_gate_capacity",
		Help: "Configured number of conversion slots.",
	})
)

func SetGateCapacity(n int) { gateCapacity.Set(float64(n)) }

func SetGateInUse(n int64) { gateInUse.Set(float64(n)) }

func SetGateWaiting(n int64) { gateWaiting.Set(float64(n)) }
