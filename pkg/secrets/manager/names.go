package manager

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/numtide/cluster-secrets/pkg/secrets"
)

const (
	// configHashLength is the truncation of the config/CA hash infix.
	// Truncated-hash collisions are accepted as implementation risk at the
	// secret counts a single cluster sees.
	configHashLength = 8
	// epochHashLength is the truncation of the rotation-epoch suffix.
	epochHashLength = 5
)

// hashTrunc returns the first n hex characters of sha256(s). Stable across
// process restarts; no randomness.
func hashTrunc(s string, n int) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:n]
}

// epochString canonicalizes a rotation epoch for hashing and labels. The
// zero time (config never rotated) maps to "0".
func epochString(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.Unix(), 10)
}

// objectName computes the deterministic store object name for a config.
//
// CA configs keep their static name plus only the epoch suffix so that the
// name stays recognizable across config changes; every other config gets an
// infix hashing the config checksum together with the signing-CA
// fingerprint, making names content-addressed: any drift in desired state
// yields a new name, never an in-place change.
func objectName(cfg secrets.Config, caFingerprint string, epoch time.Time) string {
	suffix := hashTrunc(epochString(epoch), epochHashLength)
	if isCAConfig(cfg) {
		return cfg.GetName() + "-" + suffix
	}
	infix := hashTrunc(cfg.Checksum()+caFingerprint, configHashLength)
	return cfg.GetName() + "-" + infix + "-" + suffix
}

// bundleObjectName derives the bundle secret name from the bundle content,
// so the name changes exactly when a constituent CA changes.
func bundleObjectName(caConfigName string, bundleData []byte) string {
	return caConfigName + "-bundle-" + hashTrunc(string(bundleData), epochHashLength)
}

func isCAConfig(cfg secrets.Config) bool {
	certCfg, ok := cfg.(*secrets.CertificateConfig)
	return ok && certCfg.CertType == secrets.CACert
}
