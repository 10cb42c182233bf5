package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expenses_gateway_requests_total",
			Help: "Requests sent to the remote expense collection",
		},
		[]string{"op", "outcome"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "expenses_gateway_request_duration_seconds",
			Help:    "Round-trip time of requests to the remote expense collection",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)
