package manager

import (
	"context"
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/numtide/cluster-secrets/pkg/monitoring"
	"github.com/numtide/cluster-secrets/pkg/util/metadata"
)

// Cleanup deletes every secret owned by this manager identity whose name was
// not produced or retained by a Generate call since the last cleanup. It
// must only run after all Generate calls of the current accounting pass have
// completed; running it earlier can delete secrets still in use.
//
// Deletions are guarded by the store's concurrency tokens, so a secret
// rewritten by a concurrent pass is never removed. Failed deletions are
// aggregated into ErrCleanupPartialFailure; completed ones stand, and the
// next pass retries the remainder.
func (m *Manager) Cleanup(ctx context.Context) (err error) {
	ctx, span := monitoring.StartChildSpan(ctx, "Manager.Cleanup")
	defer func() {
		monitoring.RecordSpanError(span, err)
		span.End()
	}()

	m.cleanupMu.Lock()
	defer m.cleanupMu.Unlock()

	logger := log.FromContext(ctx)

	secretList, err := m.store.list(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	seen := make(map[string]struct{}, len(m.seen))
	for name := range m.seen {
		seen[name] = struct{}{}
	}
	m.mu.Unlock()

	var errs []error
	deleted := 0
	for i := range secretList.Items {
		secret := &secretList.Items[i]
		if _, ok := seen[secret.Name]; ok {
			continue
		}

		if err := m.store.delete(ctx, secret); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted++
		logger.Info("cleaned up secret",
			"secret", secret.Name,
			"config", secret.Labels[metadata.LabelName])
		m.forget(secret.Name)
	}

	if deleted > 0 {
		monitoring.RecordCleanupDeletions(deleted)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrCleanupPartialFailure, utilerrors.NewAggregate(errs))
	}

	// Start the next accounting pass with a clean slate.
	m.mu.Lock()
	m.seen = map[string]struct{}{}
	m.mu.Unlock()

	return nil
}

// forget drops a deleted object from the in-memory bookkeeping.
func (m *Manager) forget(objectName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.current != nil && e.current.Name == objectName {
			e.current = nil
		}
		if e.old != nil && e.old.Name == objectName {
			e.old = nil
		}
		if e.bundle != nil && e.bundle.Name == objectName {
			e.bundle = nil
		}
	}
}
