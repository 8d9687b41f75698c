package resilience

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storefront_breaker_state",
			Help: "Current breaker state: 0=closed,1=open,2=half-open",
		},
		[]string{"dependency"},
	)
	BreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_breaker_transition_total",
			Help: "Count of breaker state transitions",
		},
		[]string{"dependency", "from", "to"},
	)

	registerOnce sync.Once
)

// MustRegisterMetrics registers the breaker collectors with reg once.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		return
	}
	registerOnce.Do(func() {
		reg.MustRegister(BreakerState, BreakerTransitions)
	})
}
