package manager

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/numtide/cluster-secrets/pkg/monitoring"
	"github.com/numtide/cluster-secrets/pkg/secrets"
	"github.com/numtide/cluster-secrets/pkg/util/metadata"
)

const (
	// renewalLeadTime renews a certificate once its remaining validity drops
	// to 10 days, regardless of total validity.
	renewalLeadTime = 10 * 24 * time.Hour
	// renewalFraction renews a certificate once at most 20% of its total
	// validity remains.
	renewalFraction = 0.20
)

// Generate ensures a secret for the given config exists in the store and
// returns it. Repeated calls with unchanged inputs are idempotent fast
// paths: the object name is a pure function of config checksum, signing-CA
// fingerprint and rotation epoch, and an existing secret under that name is
// returned without regeneration as long as it is neither expired nor due
// for renewal.
//
// A ErrStoreWriteConflict means another pass mutated the store concurrently;
// the caller must retry the whole call. A failing Generate for one config
// never affects Generate calls for other configs.
func (m *Manager) Generate(
	ctx context.Context,
	cfg secrets.Config,
	opts ...GenerateOption,
) (secret *corev1.Secret, err error) {
	ctx, span := monitoring.StartSecretSpan(ctx, "Manager.Generate", cfg.GetName(), m.options.Namespace)
	defer func() {
		monitoring.RecordSpanError(span, err)
		span.End()
	}()

	logger := log.FromContext(ctx)

	o := generateOptions{strategy: InPlace}
	for _, opt := range opts {
		opt(&o)
	}

	configName := cfg.GetName()
	epoch := m.rotationEpoch(configName)

	cfg, caFingerprint, err := m.resolveSigning(cfg, &o)
	if err != nil {
		return nil, err
	}

	name := objectName(cfg, caFingerprint, epoch)

	m.mu.Lock()
	e := m.entryLocked(configName)
	current, old := e.current, e.old
	m.mu.Unlock()

	effOld := m.effectiveOld(configName, old, &o)
	if old != nil && effOld != nil && o.strategy == KeepOld {
		m.markSeen(old.Name)
	}

	// Idempotent fast path: the desired secret already exists under the
	// computed name and needs no renewal.
	if current != nil && current.Name == name && !m.expired(current) && !m.renewalDue(cfg, current) {
		m.markSeen(name)
		if isCAConfig(cfg) {
			if _, err := m.ensureBundle(ctx, configName, current, effOld); err != nil {
				return nil, err
			}
		}
		if err := m.persist(ctx, current, &o); err != nil {
			return current, err
		}
		return current, nil
	}

	data, err := cfg.Generate(m.options.rand())
	if err != nil {
		return nil, fmt.Errorf("failed to generate secret %q: %w", configName, err)
	}

	secret = m.buildSecret(name, cfg, data, epoch, &o)

	if current != nil && current.Name == name {
		// Same name, stale content: renewal or expiry. Replace under the
		// existing optimistic-concurrency token.
		if err := m.store.replace(ctx, secret, current.ResourceVersion); err != nil {
			return nil, err
		}
		logger.Info("renewed secret", "secret", name, "config", configName)
		monitoring.RecordSecretRenewed(configName)
	} else {
		if err := m.store.create(ctx, secret); err != nil {
			return nil, err
		}
		logger.Info("generated secret", "secret", name, "config", configName)
	}
	monitoring.RecordSecretGenerated(configName, string(cfg.Kind()))
	if vu, ok := validUntil(secret); ok {
		monitoring.RecordSecretValidUntil(configName, name, vu)
	}

	m.mu.Lock()
	e = m.entryLocked(configName)
	if e.current != nil && e.current.Name != name && o.strategy == KeepOld {
		e.old = e.current
	}
	e.current = secret
	m.mu.Unlock()

	if isCAConfig(cfg) {
		if _, err := m.ensureBundle(ctx, configName, secret, effOld); err != nil {
			return nil, err
		}
	}

	m.markSeen(name)

	if err := m.persist(ctx, secret, &o); err != nil {
		return secret, err
	}
	return secret, nil
}

// resolveSigning applies the signing-mode policy and returns a config copy
// carrying the chosen CA material, plus that CA's fingerprint for naming.
// Configs that are not CA-signed pass through unchanged.
func (m *Manager) resolveSigning(
	cfg secrets.Config,
	o *generateOptions,
) (secrets.Config, string, error) {
	if o.signingCAName == "" {
		return cfg, "", nil
	}
	certCfg, ok := cfg.(*secrets.CertificateConfig)
	if !ok || certCfg.CertType == secrets.CACert {
		return nil, "", fmt.Errorf(
			"%w: config %q is not a leaf certificate but requested signing by CA %q",
			secrets.ErrInvalidConfig, cfg.GetName(), o.signingCAName)
	}

	m.mu.Lock()
	var current, old *corev1.Secret
	if e, ok := m.entries[o.signingCAName]; ok {
		current, old = e.current, e.old
	}
	m.mu.Unlock()

	if current == nil {
		return nil, "", fmt.Errorf(
			"%w: CA %q has no current material, generate CA configs before their dependents",
			secrets.ErrSigningMaterialUnavailable, o.signingCAName)
	}
	old = m.effectiveOld(o.signingCAName, old, o)

	chosen := current
	switch o.signingMode {
	case useCurrentMode:
		// chosen already current
	case useOldMode:
		if old != nil {
			chosen = old
		}
	default:
		// Client certificates are signed by the current CA so clients pick up
		// the new trust chain first; server certificates stay on the old CA
		// until it is dropped, keeping not-yet-updated clients working.
		if certCfg.CertType != secrets.ClientCert && old != nil {
			chosen = old
		}
	}

	ca, err := secrets.LoadCertificate(o.signingCAName, chosen.Data)
	if err != nil {
		return nil, "", fmt.Errorf(
			"%w: CA %q material is unreadable: %v",
			secrets.ErrSigningMaterialUnavailable, o.signingCAName, err)
	}

	cfgCopy := *certCfg
	cfgCopy.SigningCA = ca
	return &cfgCopy, ca.Fingerprint(), nil
}

// effectiveOld applies the old-secret visibility options: IgnoreOldSecrets
// hides the old generation outright, IgnoreOldSecretsAfter hides it once
// the grace duration since rotation start has elapsed.
func (m *Manager) effectiveOld(configName string, old *corev1.Secret, o *generateOptions) *corev1.Secret {
	if old == nil || o.ignoreOld {
		return nil
	}
	if o.ignoreOldAfter != nil {
		epoch := m.rotationEpoch(configName)
		if !epoch.IsZero() && m.options.clock().Now().Sub(epoch) >= *o.ignoreOldAfter {
			return nil
		}
	}
	return old
}

func (m *Manager) expired(secret *corev1.Secret) bool {
	vu, ok := validUntil(secret)
	if !ok {
		return false
	}
	return m.options.clock().Now().After(vu)
}

// renewalDue reports whether a certificate-kind secret has entered its
// renewal window: remaining validity at or below 10 days, or at or below 20%
// of total validity, whichever occurs first in time.
func (m *Manager) renewalDue(cfg secrets.Config, secret *corev1.Secret) bool {
	if cfg.Kind() != secrets.KindCertificate {
		return false
	}
	vu, ok := validUntil(secret)
	if !ok {
		return false
	}
	now := m.options.clock().Now()
	remaining := vu.Sub(now)
	if remaining <= renewalLeadTime {
		return true
	}
	total := vu.Sub(issuedAt(secret))
	if total <= 0 {
		return true
	}
	return float64(remaining)/float64(total) <= renewalFraction
}

func (m *Manager) buildSecret(
	name string,
	cfg secrets.Config,
	data secrets.Data,
	epoch time.Time,
	o *generateOptions,
) *corev1.Secret {
	now := m.options.clock().Now()

	labels := metadata.BuildSecretLabels(m.options.Identity, cfg.GetName())
	labels[metadata.LabelChecksum] = cfg.Checksum()
	labels[metadata.LabelIssuedAt] = strconv.FormatInt(now.Unix(), 10)
	labels[metadata.LabelRotationEpoch] = epochString(epoch)
	if o.persist {
		labels[metadata.LabelPersist] = "true"
	}
	if ed, ok := data.(secrets.ExpiringData); ok {
		labels[metadata.LabelValidUntil] = strconv.FormatInt(ed.ValidUntil().Unix(), 10)
	} else if o.validity != nil {
		labels[metadata.LabelValidUntil] = strconv.FormatInt(now.Add(*o.validity).Unix(), 10)
	}

	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: m.options.Namespace,
			Labels:    labels,
		},
		Type:      corev1.SecretTypeOpaque,
		Immutable: ptr.To(true),
		Data:      data.SecretData(),
	}
}

// ensureBundle makes the CA's trust bundle match its constituents: current
// CA certificate first, old one appended while it is still honored. Bundles
// are content-addressed, so an unchanged bundle is a no-op and a changed one
// gets a new name, leaving the stale bundle to cleanup.
func (m *Manager) ensureBundle(
	ctx context.Context,
	caConfigName string,
	current, old *corev1.Secret,
) (*corev1.Secret, error) {
	var oldPEM []byte
	if old != nil {
		oldPEM = old.Data[secrets.DataKeyCertificateCA]
	}
	bundleData := secrets.BuildBundle(current.Data[secrets.DataKeyCertificateCA], oldPEM)
	name := bundleObjectName(caConfigName, bundleData)

	m.mu.Lock()
	e := m.entryLocked(caConfigName)
	existing := e.bundle
	m.mu.Unlock()

	if existing != nil && existing.Name == name {
		m.markSeen(name)
		return existing, nil
	}

	labels := metadata.BuildSecretLabels(m.options.Identity, caConfigName)
	labels[metadata.LabelBundleFor] = caConfigName
	labels[metadata.LabelIssuedAt] = strconv.FormatInt(m.options.clock().Now().Unix(), 10)

	bundle := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: m.options.Namespace,
			Labels:    labels,
		},
		Type:      corev1.SecretTypeOpaque,
		Immutable: ptr.To(true),
		Data: map[string][]byte{
			secrets.DataKeyBundle: bundleData,
		},
	}

	if err := m.store.create(ctx, bundle); err != nil {
		if !errors.Is(err, ErrStoreWriteConflict) {
			return nil, err
		}
		// Same name means same content: another pass already wrote this
		// exact bundle. Adopt it.
		adopted, getErr := m.store.get(ctx, name)
		if getErr != nil {
			return nil, err
		}
		bundle = adopted
	}

	m.mu.Lock()
	m.entryLocked(caConfigName).bundle = bundle
	m.mu.Unlock()
	m.markSeen(name)

	return bundle, nil
}

// persist mirrors the secret through the bridge when requested. The
// in-store secret is already written when this runs; a sync failure is
// surfaced without rolling it back.
func (m *Manager) persist(ctx context.Context, secret *corev1.Secret, o *generateOptions) error {
	if !o.persist || m.options.Bridge == nil {
		return nil
	}
	if err := m.options.Bridge.Sync(ctx, secret); err != nil {
		monitoring.RecordPersistenceSyncFailure(secret.Labels[metadata.LabelName])
		return fmt.Errorf("%w: secret %q: %v", ErrPersistenceSyncFailure, secret.Name, err)
	}
	return nil
}
