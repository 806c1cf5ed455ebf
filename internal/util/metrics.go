package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "itinerary_searches_total",
		Help: "Total number of itinerary searches",
	})

	SearchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "itinerary_search_latency_seconds",
		Help:    "Latency of itinerary searches including pricing",
		Buckets: prometheus.DefBuckets,
	})

	ReservationsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_created_total",
		Help: "Total number of reservations created",
	})

	ReservationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservations_failed_total",
		Help: "Total number of failed reservation attempts",
	}, []string{"reason"})

	ReservationsPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_paid_total",
		Help: "Total number of reservations marked paid",
	})

	ReservationsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_cancelled_total",
		Help: "Total number of reservations cancelled by their owner",
	})

	ReservationsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_expired_total",
		Help: "Total number of pending reservations removed by the expiry sweep",
	})

	TicketEditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticket_edits_total",
		Help: "Total number of ticket class/seat edits",
	}, []string{"kind"})

	SeatConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seat_conflicts_total",
		Help: "Total number of reservation attempts rejected because the seat was taken",
	})

	SoldOutRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sold_out_rejections_total",
		Help: "Total number of reservation attempts rejected because the class was sold out",
	})

	ReservationCreateLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reservation_create_latency_seconds",
		Help:    "Latency of reservation creation transactions",
		Buckets: prometheus.DefBuckets,
	})

	ExpirySweepLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "expiry_sweep_latency_seconds",
		Help:    "Latency of expiry sweeps",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
