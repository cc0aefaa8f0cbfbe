package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mocktalk_status_http_requests_total",
		Help: "HTTP requests served by the local status endpoint",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mocktalk_status_http_request_duration_seconds",
		Help:    "Local status endpoint request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)
