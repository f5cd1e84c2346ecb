// Package monitoring provides Prometheus metrics and recording helpers for
// the secrets manager. It exposes domain-specific gauges and counters that
// complement the generic controller-runtime metrics already registered by
// the framework.
//
// All metrics follow the naming convention cluster_secrets_<metric>_<unit>
// and are registered against controller-runtime's default Prometheus
// registry on import.
//
// Usage in the manager:
//
//	monitoring.RecordSecretGenerated("ca", "certificate")
//	monitoring.RecordSecretValidUntil("ca", objectName, notAfter)
package monitoring
