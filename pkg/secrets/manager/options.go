package manager

import (
	"time"
)

// RotationStrategy governs what happens to a prior secret version when the
// config or the rotation epoch changes.
type RotationStrategy string

const (
	// InPlace drops the prior version: the next cleanup pass removes it.
	InPlace RotationStrategy = "in-place"
	// KeepOld retains the prior version through cleanup passes until it is
	// explicitly forgotten. Required for zero-downtime CA rotation.
	KeepOld RotationStrategy = "keep-old"
)

// signingMode selects which CA generation signs a certificate.
type signingMode int

const (
	// defaultMode signs client certificates with the current CA and server
	// certificates with the old CA while one exists. During a two-phase CA
	// rotation this lets clients pick up certs trusted via the new CA while
	// servers keep presenting certs that not-yet-updated clients trust.
	defaultMode signingMode = iota
	useCurrentMode
	useOldMode
)

type signedByCAOptions struct {
	mode signingMode
}

// SignedByCAOption overrides the default signing-mode policy.
type SignedByCAOption func(*signedByCAOptions)

// UseCurrentCA forces signing with the current CA.
func UseCurrentCA(o *signedByCAOptions) { o.mode = useCurrentMode }

// UseOldCA forces signing with the old CA; falls back to the current CA when
// no old generation exists.
func UseOldCA(o *signedByCAOptions) { o.mode = useOldMode }

type generateOptions struct {
	signingCAName  string
	signingMode    signingMode
	persist        bool
	strategy       RotationStrategy
	ignoreOld      bool
	ignoreOldAfter *time.Duration
	validity       *time.Duration
}

// GenerateOption configures a single Generate call.
type GenerateOption func(*generateOptions)

// SignedByCA requests the generated certificate be signed by the named CA
// config's material, resolved from what this manager has generated.
func SignedByCA(name string, opts ...SignedByCAOption) GenerateOption {
	return func(o *generateOptions) {
		var so signedByCAOptions
		for _, opt := range opts {
			opt(&so)
		}
		o.signingCAName = name
		o.signingMode = so.mode
	}
}

// Persist marks the secret for mirroring through the persistence bridge.
func Persist() GenerateOption {
	return func(o *generateOptions) { o.persist = true }
}

// Rotate sets the rotation strategy for prior versions of this secret.
// The default is InPlace.
func Rotate(strategy RotationStrategy) GenerateOption {
	return func(o *generateOptions) { o.strategy = strategy }
}

// IgnoreOldSecrets suppresses loading of the retained old generation: it is
// excluded from bundles and signing and released to cleanup.
func IgnoreOldSecrets() GenerateOption {
	return func(o *generateOptions) { o.ignoreOld = true }
}

// IgnoreOldSecretsAfter forgets the old generation once the given duration
// has elapsed since the rotation started. Until then it is retained.
func IgnoreOldSecretsAfter(d time.Duration) GenerateOption {
	return func(o *generateOptions) { o.ignoreOldAfter = &d }
}

// Validity overrides the default validity for non-certificate kinds; the
// stored secret expires (and is regenerated) after it elapses. Certificate
// kinds derive validity from the generated certificate and ignore this
// option.
func Validity(d time.Duration) GenerateOption {
	return func(o *generateOptions) { o.validity = &d }
}

type getOptions struct {
	class secretClass
}

type secretClass int

const (
	classDefault secretClass = iota
	classBundle
	classCurrent
	classOld
)

// GetOption selects which generation of a secret Get returns.
type GetOption func(*getOptions)

// Bundle selects the CA bundle secret. This is the default for CA configs.
func Bundle(o *getOptions) { o.class = classBundle }

// Current selects the current generation.
func Current(o *getOptions) { o.class = classCurrent }

// Old selects the retained old generation.
func Old(o *getOptions) { o.class = classOld }
