package secrets

import (
	"fmt"
	"io"
)

const alphanumericCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomString reads length bytes from rng and maps them onto an
// alphanumeric charset. The modulo bias over a 62-char charset is negligible
// for credential purposes.
func randomString(rng io.Reader, length int) (string, error) {
	buf := make([]byte, length)
	if _, err := io.ReadFull(rng, buf); err != nil {
		return "", fmt.Errorf("failed to read randomness: %w", err)
	}
	for i := range buf {
		buf[i] = alphanumericCharset[buf[i]%byte(len(alphanumericCharset))]
	}
	return string(buf), nil
}

// randomBytes reads exactly length raw bytes from rng.
func randomBytes(rng io.Reader, length int) ([]byte, error) {
	buf := make([]byte, length)
	if _, err := io.ReadFull(rng, buf); err != nil {
		return nil, fmt.Errorf("failed to read randomness: %w", err)
	}
	return buf, nil
}
