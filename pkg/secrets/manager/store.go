package manager

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/numtide/cluster-secrets/pkg/util/metadata"
)

// storeAdapter wraps the backing credential store. All list and delete
// operations are scoped by the manager identity label so independent owners
// can share one store; all writes rely on the store's optimistic-concurrency
// tokens and surface stale tokens as ErrStoreWriteConflict.
type storeAdapter struct {
	client    client.Client
	namespace string
	identity  string
}

// list returns all secrets owned by this manager identity.
func (s *storeAdapter) list(ctx context.Context) (*corev1.SecretList, error) {
	secretList := &corev1.SecretList{}
	if err := s.client.List(ctx, secretList,
		client.InNamespace(s.namespace),
		client.MatchingLabels(metadata.SelectorLabels(s.identity)),
	); err != nil {
		return nil, fmt.Errorf("failed to list managed secrets: %w", err)
	}
	return secretList, nil
}

// create writes a new immutable secret. A name collision means another pass
// wrote first; the caller must re-run its Generate from scratch.
func (s *storeAdapter) create(ctx context.Context, secret *corev1.Secret) error {
	if err := s.client.Create(ctx, secret); err != nil {
		if apierrors.IsAlreadyExists(err) || apierrors.IsConflict(err) {
			return fmt.Errorf("%w: creating secret %q: %v", ErrStoreWriteConflict, secret.Name, err)
		}
		return fmt.Errorf("failed to create secret %q: %w", secret.Name, err)
	}
	return nil
}

// replace swaps the content under an existing name. Immutable secrets cannot
// be updated in place, so this is a precondition-guarded delete followed by
// a create; a stale resource version aborts with ErrStoreWriteConflict
// before anything is removed.
func (s *storeAdapter) replace(ctx context.Context, secret *corev1.Secret, expectedResourceVersion string) error {
	existing := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:            secret.Name,
			Namespace:       s.namespace,
			ResourceVersion: expectedResourceVersion,
		},
	}
	if err := s.client.Delete(ctx, existing, client.Preconditions(metav1.Preconditions{
		ResourceVersion: &expectedResourceVersion,
	})); err != nil && !apierrors.IsNotFound(err) {
		if apierrors.IsConflict(err) {
			return fmt.Errorf("%w: replacing secret %q: %v", ErrStoreWriteConflict, secret.Name, err)
		}
		return fmt.Errorf("failed to delete secret %q for replacement: %w", secret.Name, err)
	}
	return s.create(ctx, secret)
}

// delete removes a secret, guarded by its resource version so a concurrently
// rewritten object is never deleted. A missing object counts as success.
func (s *storeAdapter) delete(ctx context.Context, secret *corev1.Secret) error {
	err := s.client.Delete(ctx, secret, client.Preconditions(metav1.Preconditions{
		ResourceVersion: &secret.ResourceVersion,
	}))
	if err != nil && !apierrors.IsNotFound(err) {
		if apierrors.IsConflict(err) {
			return fmt.Errorf("%w: deleting secret %q: %v", ErrStoreWriteConflict, secret.Name, err)
		}
		return fmt.Errorf("failed to delete secret %q: %w", secret.Name, err)
	}
	return nil
}

// get fetches a single secret by name.
func (s *storeAdapter) get(ctx context.Context, name string) (*corev1.Secret, error) {
	secret := &corev1.Secret{}
	if err := s.client.Get(ctx, types.NamespacedName{Name: name, Namespace: s.namespace}, secret); err != nil {
		return nil, fmt.Errorf("failed to get secret %q: %w", name, err)
	}
	return secret, nil
}
