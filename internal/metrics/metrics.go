package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mocktalk_api_requests_total",
		Help: "API calls issued through the gateway grouped by method, status and attempt",
	}, []string{"method", "status", "attempt"})

	renewalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mocktalk_renewal_duration_seconds",
		Help:    "Duration of credential renewal exchanges",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	renewalTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mocktalk_renewal_total",
		Help: "Credential renewal exchanges grouped by outcome",
	}, []string{"status"})

	renewalJoinedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mocktalk_renewal_joined_total",
		Help: "Renewal callers that received the result of a shared exchange",
	})

	reconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mocktalk_realtime_reconnects_total",
		Help: "Scheduled realtime reconnects grouped by channel scope",
	}, []string{"scope"})

	realtimeEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mocktalk_realtime_events_total",
		Help: "Realtime events received grouped by scope, type and outcome",
	}, []string{"scope", "type", "status"})

	terminationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mocktalk_session_terminations_total",
		Help: "Session termination signals raised in this process",
	})
)

// ObserveRequest records one gateway round trip. Status 0 marks a transport failure.
func ObserveRequest(method string, status int, retry bool) {
	attempt := "first"
	if retry {
		attempt = "retry"
	}
	apiRequestsTotal.WithLabelValues(method, strconv.Itoa(status), attempt).Inc()
}

// ObserveRenewal records the duration and outcome of a renewal exchange.
func ObserveRenewal(duration time.Duration, success bool) {
	renewalDuration.Observe(duration.Seconds())
	if success {
		renewalTotal.WithLabelValues("success").Inc()
	} else {
		renewalTotal.WithLabelValues("failed").Inc()
	}
}

// ObserveRenewalJoined counts a caller that shared an in-flight renewal.
func ObserveRenewalJoined() {
	renewalJoinedTotal.Inc()
}

// ObserveReconnect counts a scheduled reconnect for a channel scope.
func ObserveReconnect(scope string) {
	reconnectsTotal.WithLabelValues(scope).Inc()
}

// ObserveEvent counts a received realtime event; dropped events use status "dropped".
func ObserveEvent(scope, eventType string, dropped bool) {
	status := "dispatched"
	if dropped {
		status = "dropped"
	}
	if eventType == "" {
		eventType = "unknown"
	}
	realtimeEventsTotal.WithLabelValues(scope, eventType, status).Inc()
}

// ObserveTermination counts a raised session termination.
func ObserveTermination() {
	terminationsTotal.Inc()
}
