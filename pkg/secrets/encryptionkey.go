package secrets

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// Data map keys for encryption-key secrets.
const (
	// DataKeyEncryptionKeyID is the random identifier an encryption-at-rest
	// provider configuration references the key by.
	DataKeyEncryptionKeyID = "id"
	// DataKeyEncryptionKey is the base64-encoded symmetric key.
	DataKeyEncryptionKey = "key"
)

// EncryptionKeyLength is the fixed symmetric key length in bytes (AES-256).
const EncryptionKeyLength = 32

const encryptionKeyIDSuffixLength = 8

// EncryptionKeyConfig describes a symmetric encryption key plus the random
// identifier consumers reference it by.
type EncryptionKeyConfig struct {
	Name string
}

var _ Config = &EncryptionKeyConfig{}

func (c *EncryptionKeyConfig) GetName() string { return c.Name }

func (c *EncryptionKeyConfig) Kind() Kind { return KindEncryptionKey }

func (c *EncryptionKeyConfig) Checksum() string {
	var b strings.Builder
	b.WriteString(string(KindEncryptionKey))
	b.WriteByte('\n')
	b.WriteString(c.Name)
	return checksumString(b.String())
}

// EncryptionKey is a generated symmetric key and its identifier.
type EncryptionKey struct {
	Name string
	ID   string
	Key  []byte
}

var _ Data = &EncryptionKey{}

func (k *EncryptionKey) SecretData() map[string][]byte {
	return map[string][]byte{
		DataKeyEncryptionKeyID: []byte(k.ID),
		DataKeyEncryptionKey:   []byte(base64.StdEncoding.EncodeToString(k.Key)),
	}
}

func (c *EncryptionKeyConfig) Generate(rng io.Reader) (Data, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("%w: encryption-key config has no name", ErrInvalidConfig)
	}

	suffix, err := randomString(rng, encryptionKeyIDSuffixLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key id: %w", err)
	}

	key, err := randomBytes(rng, EncryptionKeyLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}

	return &EncryptionKey{
		Name: c.Name,
		ID:   "key-" + suffix,
		Key:  key,
	}, nil
}
