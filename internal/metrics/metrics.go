package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bazaar",
			Name:      "operations_total",
			Help:      "Marketplace operations by name and result.",
		},
		[]string{"operation", "result"},
	)

	unitsSold = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bazaar",
			Name:      "units_sold_total",
			Help:      "Units settled through purchase_item.",
		},
	)

	journalAppends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bazaar",
			Name:      "journal_appends_total",
			Help:      "Journal append attempts by result.",
		},
		[]string{"result"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bazaar",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status.",
		},
		[]string{"endpoint", "status"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(operations, unitsSold, journalAppends, httpRequests)
	})
}

// IncOperation counts one engine operation outcome.
func IncOperation(operation, result string) {
	operations.WithLabelValues(operation, result).Inc()
}

// AddUnitsSold counts settled units.
func AddUnitsSold(n uint64) {
	unitsSold.Add(float64(n))
}

// IncJournalAppend counts one journal write attempt.
func IncJournalAppend(result string) {
	journalAppends.WithLabelValues(result).Inc()
}

// IncHTTP counts one served request.
func IncHTTP(endpoint, status string) {
	httpRequests.WithLabelValues(endpoint, status).Inc()
}
