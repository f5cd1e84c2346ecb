package metadata

import (
	"maps"
)

// Standard Kubernetes label keys following kubernetes.io conventions.
//
// See: https://kubernetes.io/docs/concepts/overview/working-with-objects/common-labels/
const (
	// LabelAppManagedBy is the standard label key for the tool managing the
	// resource.
	LabelAppManagedBy = "app.kubernetes.io/managed-by"
)

const (
	// ManagedByValue identifies secrets owned by this secrets manager as
	// opposed to secrets created by users or other controllers sharing the
	// same namespace.
	ManagedByValue = "cluster-secrets-manager"
)

// Accounting label keys persisted on every managed secret. External tooling
// (migration, auditing) reads these; the manager itself scopes all list and
// cleanup operations by LabelManagerIdentity so that multiple managers can
// share one backing store without deleting each other's secrets.
const (
	// LabelManagerIdentity scopes a secret to the manager instance that
	// created it.
	LabelManagerIdentity = "secrets.numtide.com/manager-identity"

	// LabelName carries the logical config name the secret was generated
	// from. The object name is derived and hash-suffixed; this label is how
	// secrets are grouped back to their config.
	LabelName = "secrets.numtide.com/name"

	// LabelChecksum is the checksum of the generating config. A config change
	// produces a new checksum and therefore a new object name.
	LabelChecksum = "secrets.numtide.com/checksum-of-config"

	// LabelIssuedAt is the unix timestamp at which the secret data was
	// generated.
	LabelIssuedAt = "secrets.numtide.com/issued-at"

	// LabelValidUntil is the unix timestamp after which the secret data is no
	// longer valid. Absent for kinds without an expiry.
	LabelValidUntil = "secrets.numtide.com/valid-until"

	// LabelRotationEpoch is the unix timestamp of the rotation cycle the
	// secret belongs to. Secrets whose epoch differs from the manager's
	// configured epoch for that config name are "old" secrets.
	LabelRotationEpoch = "secrets.numtide.com/rotation-epoch"

	// LabelBundleFor marks a CA bundle secret and names the CA config it
	// belongs to.
	LabelBundleFor = "secrets.numtide.com/bundle-for"

	// LabelPersist marks a secret for mirroring into the durable external
	// store for disaster recovery.
	LabelPersist = "secrets.numtide.com/persist"
)

// BuildSecretLabels returns the base label set every managed secret carries.
// identity is the manager identity, configName the logical config name.
func BuildSecretLabels(identity, configName string) map[string]string {
	return map[string]string{
		LabelAppManagedBy:    ManagedByValue,
		LabelManagerIdentity: identity,
		LabelName:            configName,
	}
}

// SelectorLabels returns the labels used to list all secrets owned by the
// given manager identity. Only stable identity labels are included so that
// metadata-only changes never alter list scope.
func SelectorLabels(identity string) map[string]string {
	return map[string]string{
		LabelAppManagedBy:    ManagedByValue,
		LabelManagerIdentity: identity,
	}
}

// MergeLabels merges custom labels with manager labels.
//
// Note that manager labels take precedence over custom labels to prevent
// callers from overriding the accounting keys the manager relies on.
func MergeLabels(managerLabels, customLabels map[string]string) map[string]string {
	merged := make(map[string]string)

	maps.Copy(merged, customLabels)
	maps.Copy(merged, managerLabels)

	return merged
}
