// Package persistence defines the bridge to a durable external store used
// for disaster recovery and migration of managed secrets.
package persistence

import (
	"context"

	corev1 "k8s.io/api/core/v1"
)

// Bridge mirrors designated secrets into durable external storage and
// reconstitutes them before a manager's first reconciliation pass.
//
// Sync is called synchronously on Generate's success path; it must be safe
// to call repeatedly with the same secret. Restore returns every mirrored
// secret; the caller decides what to write back into the cluster.
type Bridge interface {
	Sync(ctx context.Context, secret *corev1.Secret) error
	Restore(ctx context.Context) ([]corev1.Secret, error)
}
