package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sportzen_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	HoldsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sportzen_holds_created_total",
			Help: "Total holds created",
		},
	)

	SlotConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sportzen_slot_conflicts_total",
			Help: "Holds rejected because the slot was taken",
		},
		[]string{"guard"}, // lock or store
	)

	LockFailOpen = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sportzen_lock_fail_open_total",
			Help: "Slot lock cache failures that fell through to the store guard",
		},
	)

	Settlements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sportzen_settlements_total",
			Help: "Settlement outcomes by status",
		},
		[]string{"outcome"},
	)

	RefundsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sportzen_refunds_total",
			Help: "Refund records created",
		},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sportzen_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sportzen_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
