package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	CheckoutsTotal     *prometheus.CounterVec
	CheckoutDurationMS prometheus.Histogram
	ReservationsTotal  *prometheus.CounterVec
	SweeperReleased    prometheus.Counter
}

func New(service string) *Metrics {
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "commerce",
		Subsystem: service,
		Name:      "checkouts_total",
		Help:      "Completed and failed checkout attempts.",
	}, []string{"result"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "commerce",
		Subsystem: service,
		Name:      "checkout_duration_ms",
		Help:      "Checkout transaction latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "commerce",
		Subsystem: service,
		Name:      "stock_reservations_total",
		Help:      "Reservation ledger operations by op and result.",
	}, []string{"op", "result"})
	swept := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "commerce",
		Subsystem: service,
		Name:      "sweeper_released_total",
		Help:      "Expired reservations reclaimed by the sweeper.",
	})

	prometheus.MustRegister(checkouts, duration, reservations, swept)
	return &Metrics{
		CheckoutsTotal:     checkouts,
		CheckoutDurationMS: duration,
		ReservationsTotal:  reservations,
		SweeperReleased:    swept,
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
