package secrets

// DataKeyBundle holds the concatenated CA certificates of a bundle secret.
const DataKeyBundle = "bundle.crt"

// BuildBundle concatenates the PEM-encoded current CA certificate with the
// old one if present, current first. Deterministic for deterministic inputs:
// verifiers trusting the bundle accept certificates signed by either CA for
// the duration of a rotation.
func BuildBundle(currentCertPEM, oldCertPEM []byte) []byte {
	bundle := make([]byte, 0, len(currentCertPEM)+len(oldCertPEM))
	bundle = append(bundle, currentCertPEM...)
	bundle = append(bundle, oldCertPEM...)
	return bundle
}
