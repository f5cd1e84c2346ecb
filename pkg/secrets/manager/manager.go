package manager

import (
	"context"
	crand "crypto/rand"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/numtide/cluster-secrets/pkg/secrets/persistence"
	"github.com/numtide/cluster-secrets/pkg/util/metadata"
)

// Options configures a Manager.
type Options struct {
	// Required fields.
	Namespace string
	// Identity scopes which secrets this manager considers its own. Every
	// secret it creates is labeled with it and all accounting is limited to
	// secrets carrying it.
	Identity string

	// RotationTimes maps config names to the instant their latest rotation
	// cycle was initiated. Supplied by the external control loop that decides
	// when to rotate; absent entries mean the config was never rotated.
	RotationTimes map[string]time.Time

	// Bridge mirrors secrets generated with Persist into a durable external
	// store. When nil, Persist is a no-op.
	Bridge persistence.Bridge

	// Clock defaults to the real clock.
	Clock clock.Clock

	// Rand is the source of randomness for generation. Defaults to
	// crypto/rand.Reader.
	Rand io.Reader
}

func (o *Options) clock() clock.Clock {
	if o.Clock != nil {
		return o.Clock
	}
	return clock.RealClock{}
}

func (o *Options) rand() io.Reader {
	if o.Rand != nil {
		return o.Rand
	}
	return crand.Reader
}

// entry tracks what the manager knows about one config name: the active
// generation, the previous generation retained during a rotation grace
// window, and the CA bundle where applicable.
type entry struct {
	current *corev1.Secret
	old     *corev1.Secret
	bundle  *corev1.Secret
}

// Manager implements Generate, Get and Cleanup over a backing secret store.
// Generate calls for independent configs may run in parallel; Cleanup must
// only run after all Generate calls of a pass have completed.
type Manager struct {
	store   *storeAdapter
	options Options

	mu      sync.Mutex
	entries map[string]*entry
	// seen holds object names produced or retained since the last cleanup.
	// Cleanup never deletes a name recorded here.
	seen map[string]struct{}

	// cleanupMu serializes cleanup passes.
	cleanupMu sync.Mutex
}

// New creates a Manager and primes it with the secrets its identity already
// owns in the store, partitioned into current and old generations per config
// by their rotation-epoch labels.
func New(ctx context.Context, c client.Client, opts Options) (*Manager, error) {
	if opts.Namespace == "" {
		return nil, fmt.Errorf("namespace must be set")
	}
	if opts.Identity == "" {
		return nil, fmt.Errorf("identity must be set")
	}

	m := &Manager{
		store: &storeAdapter{
			client:    c,
			namespace: opts.Namespace,
			identity:  opts.Identity,
		},
		options: opts,
		entries: map[string]*entry{},
		seen:    map[string]struct{}{},
	}

	if err := m.load(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// load scans the store and rebuilds the per-config bookkeeping. A secret is
// "current" when its rotation-epoch label matches the configured epoch for
// its config name; among the rest the newest one is kept as "old".
func (m *Manager) load(ctx context.Context) error {
	logger := log.FromContext(ctx)

	secretList, err := m.store.list(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range secretList.Items {
		secret := &secretList.Items[i]
		configName := secret.Labels[metadata.LabelName]
		if configName == "" {
			logger.Info("skipping managed secret without name label", "secret", secret.Name)
			continue
		}

		e := m.entryLocked(configName)

		if bundleFor := secret.Labels[metadata.LabelBundleFor]; bundleFor != "" {
			be := m.entryLocked(bundleFor)
			if be.bundle == nil || issuedAt(secret).After(issuedAt(be.bundle)) {
				be.bundle = secret
			}
			continue
		}

		expectedEpoch := epochString(m.rotationEpoch(configName))
		if secret.Labels[metadata.LabelRotationEpoch] == expectedEpoch {
			if e.current == nil || issuedAt(secret).After(issuedAt(e.current)) {
				e.current = secret
			}
			continue
		}
		if e.old == nil || issuedAt(secret).After(issuedAt(e.old)) {
			e.old = secret
		}
	}

	return nil
}

// rotationEpoch returns the configured rotation initiation time for a config
// name; zero when never rotated.
func (m *Manager) rotationEpoch(configName string) time.Time {
	return m.options.RotationTimes[configName]
}

func (m *Manager) entryLocked(configName string) *entry {
	e, ok := m.entries[configName]
	if !ok {
		e = &entry{}
		m.entries[configName] = e
	}
	return e
}

func (m *Manager) markSeen(objectNames ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range objectNames {
		m.seen[name] = struct{}{}
	}
}

// issuedAt reads the issued-at label; the zero time when absent or
// malformed.
func issuedAt(secret *corev1.Secret) time.Time {
	raw, ok := secret.Labels[metadata.LabelIssuedAt]
	if !ok {
		return time.Time{}
	}
	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(unix, 0)
}

// validUntil reads the valid-until label; ok is false when the secret has no
// expiry.
func validUntil(secret *corev1.Secret) (time.Time, bool) {
	raw, ok := secret.Labels[metadata.LabelValidUntil]
	if !ok {
		return time.Time{}, false
	}
	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}
