package secrets

import (
	"errors"
	"io"
	"time"
)

// Kind identifies what a config generates.
type Kind string

const (
	KindCertificate   Kind = "certificate"
	KindBasicAuth     Kind = "basic-auth"
	KindEncryptionKey Kind = "encryption-key"
	KindRSAKeys       Kind = "rsa-keys"
	KindStaticToken   Kind = "static-token"
	KindKubeconfig    Kind = "kubeconfig"
	KindVPNTLSAuth    Kind = "vpn-tlsauth"
)

// Sentinel errors returned by generation. Callers classify with errors.Is.
var (
	// ErrInvalidConfig indicates required config parameters are missing or
	// unsupported. Not retryable.
	ErrInvalidConfig = errors.New("invalid secret config")

	// ErrSigningMaterialUnavailable indicates a CA-signed kind was requested
	// but the signing CA's material could not be resolved. Transient when the
	// CA simply has not been generated yet this pass.
	ErrSigningMaterialUnavailable = errors.New("signing material unavailable")
)

// Config describes what to generate. Implementations are value objects: no
// identity beyond their parameters, and a stable Checksum over them.
type Config interface {
	// GetName returns the logical name of the config. Object names in the
	// backing store are derived from it, never equal to it.
	GetName() string

	// Kind returns the credential kind.
	Kind() Kind

	// Checksum returns a stable hash over kind and parameters. It must not
	// depend on map iteration order or process state.
	Checksum() string

	// Generate produces the raw credential material, reading randomness from
	// rng only.
	Generate(rng io.Reader) (Data, error)
}

// Data is generated credential material ready to be persisted.
type Data interface {
	// SecretData returns the named byte blobs to store.
	SecretData() map[string][]byte
}

// ExpiringData is implemented by data with a bounded validity, such as
// certificates. The manager labels the stored secret with the expiry and
// uses it for renewal-due detection.
type ExpiringData interface {
	Data

	// ValidUntil returns the instant after which the material is no longer
	// valid.
	ValidUntil() time.Time
}
