package quotakit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// quotaDecisionsTotal counts admission decisions by provider type and outcome.
	quotaDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_decisions_total",
			Help: "Total number of daily quota admission decisions",
		},
		[]string{"provider", "outcome"},
	)

	// quotaFallbacksTotal counts calls that fell back to the in-memory store
	// because the durable store errored.
	quotaFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quota_store_fallbacks_total",
			Help: "Total number of quota calls served by the in-memory fallback store",
		},
	)
)

const (
	outcomeAllowed = "allowed"
	outcomeDenied  = "denied"
)
