package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adapter_http_requests_total",
		Help: "Inbound HTTP requests by route and status code.",
	}, []string{"route", "status"})

	tritonLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "adapter_triton_latency_seconds",
		Help:    "Wall-clock latency of backend generate calls.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
	})
)
