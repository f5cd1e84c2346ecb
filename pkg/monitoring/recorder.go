package monitoring

import "time"

// RecordSecretGenerated counts a secret write for the given config and kind.
func RecordSecretGenerated(config, kind string) {
	secretsGeneratedTotal.WithLabelValues(config, kind).Inc()
}

// RecordSecretRenewed counts a proactive certificate renewal.
func RecordSecretRenewed(config string) {
	secretsRenewedTotal.WithLabelValues(config).Inc()
}

// RecordSecretValidUntil sets the expiry gauge for a stored secret.
// Old object-name labels for the same config are cleaned up so renamed
// secrets do not leave stale series behind.
func RecordSecretValidUntil(config, secretName string, validUntil time.Time) {
	secretValidUntil.DeletePartialMatch(map[string]string{
		"config": config,
	})
	secretValidUntil.WithLabelValues(config, secretName).Set(float64(validUntil.Unix()))
}

// RecordCleanupDeletions counts secrets removed by a cleanup pass.
func RecordCleanupDeletions(deleted int) {
	cleanupDeletedTotal.Add(float64(deleted))
}

// RecordPersistenceSyncFailure counts a failed mirror attempt.
func RecordPersistenceSyncFailure(config string) {
	persistenceSyncFailuresTotal.WithLabelValues(config).Inc()
}
