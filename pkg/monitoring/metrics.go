package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

// Domain-specific metric collectors.
//
// These complement the generic controller-runtime metrics (reconcile counts,
// durations, work queue depth, etc.) with secrets-lifecycle state that the
// framework cannot know about.
var (
	secretsGeneratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluster_secrets_generated_total",
			Help: "Total number of secrets written to the store, by config name and kind.",
		},
		[]string{"config", "kind"},
	)

	secretsRenewedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluster_secrets_renewed_total",
			Help: "Total number of proactive renewals of certificate secrets.",
		},
		[]string{"config"},
	)

	secretValidUntil = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cluster_secrets_valid_until_seconds",
			Help: "Unix timestamp after which a stored secret is no longer valid.",
		},
		[]string{"config", "secret"},
	)

	cleanupDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cluster_secrets_cleanup_deleted_total",
			Help: "Total number of secrets removed by cleanup passes.",
		},
	)

	persistenceSyncFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluster_secrets_persistence_sync_failures_total",
			Help: "Total number of failed mirror attempts to the durable external store.",
		},
		[]string{"config"},
	)
)

func init() {
	metrics.Registry.MustRegister(
		secretsGeneratedTotal,
		secretsRenewedTotal,
		secretValidUntil,
		cleanupDeletedTotal,
		persistenceSyncFailuresTotal,
	)
}

// Collectors returns all registered metric collectors. This is useful for
// testing that metrics are properly registered.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		secretsGeneratedTotal,
		secretsRenewedTotal,
		secretValidUntil,
		cleanupDeletedTotal,
		persistenceSyncFailuresTotal,
	}
}
