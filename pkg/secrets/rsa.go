package secrets

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Data map keys for RSA key pair secrets.
const (
	DataKeyRSAPrivateKey = "id_rsa"
	// DataKeyRSAPublicKey is the OpenSSH authorized-keys encoding of the
	// public key.
	DataKeyRSAPublicKey = "id_rsa.pub"
)

// supportedRSABits are the accepted key lengths.
var supportedRSABits = map[int]bool{2048: true, 3072: true, 4096: true}

// RSAKeysConfig describes an RSA key pair of configured bit length.
type RSAKeysConfig struct {
	Name string
	Bits int
}

var _ Config = &RSAKeysConfig{}

func (c *RSAKeysConfig) GetName() string { return c.Name }

func (c *RSAKeysConfig) Kind() Kind { return KindRSAKeys }

func (c *RSAKeysConfig) Checksum() string {
	var b strings.Builder
	b.WriteString(string(KindRSAKeys))
	b.WriteByte('\n')
	b.WriteString(c.Name)
	b.WriteByte('\n')
	b.WriteString(strconv.Itoa(c.Bits))
	return checksumString(b.String())
}

// RSAKeys is a generated RSA key pair in both private and public encodings.
type RSAKeys struct {
	Name          string
	PrivateKeyPEM []byte
	PublicKeySSH  []byte
}

var _ Data = &RSAKeys{}

func (k *RSAKeys) SecretData() map[string][]byte {
	return map[string][]byte{
		DataKeyRSAPrivateKey: k.PrivateKeyPEM,
		DataKeyRSAPublicKey:  k.PublicKeySSH,
	}
}

func (c *RSAKeysConfig) Generate(rng io.Reader) (Data, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("%w: rsa-keys config has no name", ErrInvalidConfig)
	}
	if !supportedRSABits[c.Bits] {
		return nil, fmt.Errorf(
			"%w: rsa-keys config %q requests unsupported bit length %d",
			ErrInvalidConfig, c.Name, c.Bits)
	}

	privKey, err := rsa.GenerateKey(rng, c.Bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key pair: %w", err)
	}

	pubKey, err := ssh.NewPublicKey(&privKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encode RSA public key: %w", err)
	}

	return &RSAKeys{
		Name: c.Name,
		PrivateKeyPEM: pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(privKey),
		}),
		PublicKeySSH: ssh.MarshalAuthorizedKey(pubKey),
	}, nil
}
