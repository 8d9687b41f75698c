package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartMutationsTotal counts cart mutations by type and outcome.
	CartMutationsTotal *prometheus.CounterVec
	// CartItemFailuresTotal counts items rejected while adding to a cart.
	CartItemFailuresTotal *prometheus.CounterVec
	// GroupTotalsTotal counts fulfillment group total computations.
	GroupTotalsTotal *prometheus.CounterVec
	// GroupTotalsLatency records group total computation latency in milliseconds.
	GroupTotalsLatency prometheus.Histogram
	// OrdersPlacedTotal counts checkout attempts by payment method.
	OrdersPlacedTotal *prometheus.CounterVec
	// OrderEmailTotal counts order email jobs by action and outcome.
	OrderEmailTotal *prometheus.CounterVec
	// CatalogPublishTotal counts partial catalog publishes.
	CatalogPublishTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Count of cart mutations by type and result.",
		}, []string{"type", "result"})
		CartItemFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_item_failures_total",
			Help:      "Count of items rejected when adding to carts.",
		}, []string{"reason"})
		GroupTotalsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "group_totals_total",
			Help:      "Count of fulfillment group total computations by result.",
		}, []string{"result"})
		GroupTotalsLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "group_totals_duration_ms",
			Help:      "Latency of fulfillment group total computations in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		})
		OrdersPlacedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Count of checkout attempts by payment method and result.",
		}, []string{"payment_method", "result"})
		OrderEmailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_email_sent_total",
			Help:      "Count of order email jobs by action and result.",
		}, []string{"action", "result"})
		CatalogPublishTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_publish_total",
			Help:      "Count of partial catalog publishes by trigger and result.",
		}, []string{"trigger", "result"})

		mustRegisterCollector(reg, CartMutationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartMutationsTotal = v
			}
		})
		mustRegisterCollector(reg, CartItemFailuresTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartItemFailuresTotal = v
			}
		})
		mustRegisterCollector(reg, GroupTotalsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				GroupTotalsTotal = v
			}
		})
		mustRegisterCollector(reg, GroupTotalsLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				GroupTotalsLatency = v
			}
		})
		mustRegisterCollector(reg, OrdersPlacedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrdersPlacedTotal = v
			}
		})
		mustRegisterCollector(reg, OrderEmailTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrderEmailTotal = v
			}
		})
		mustRegisterCollector(reg, CatalogPublishTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CatalogPublishTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}

// Result labels.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// ResultLabel maps an error to ResultOK or ResultError.
func ResultLabel(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// IncCounter increments vec when metrics are registered.
func IncCounter(vec *prometheus.CounterVec, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Inc()
}

// AddCounter adds n to vec when metrics are registered.
func AddCounter(vec *prometheus.CounterVec, n int, labels ...string) {
	if vec == nil || n <= 0 {
		return
	}
	vec.WithLabelValues(labels...).Add(float64(n))
}

// ObserveMillis records d milliseconds on h when metrics are registered.
func ObserveMillis(h prometheus.Histogram, ms float64) {
	if h == nil {
		return
	}
	h.Observe(ms)
}
