package secrets

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"net"
	"strings"
	"time"
)

const (
	// Organization is the default organization name used in generated
	// certificates.
	Organization = "Cluster Secrets"
	// CAValidityDuration is the default CA certificate validity (10 years).
	CAValidityDuration = 10 * 365 * 24 * time.Hour
	// LeafValidityDuration is the default leaf certificate validity (1 year).
	LeafValidityDuration = 365 * 24 * time.Hour
)

// Data map keys for certificate secrets.
const (
	DataKeyCertificateCA = "ca.crt"
	DataKeyPrivateKeyCA  = "ca.key"
	DataKeyCertificate   = "tls.crt"
	DataKeyPrivateKey    = "tls.key"
)

// CertType determines whether a certificate config produces a CA or a leaf,
// and which extended key usages a leaf carries.
type CertType string

const (
	// CACert is a self-signed certificate authority.
	CACert CertType = "ca"
	// ServerCert is a leaf with server-auth usage.
	ServerCert CertType = "server"
	// ClientCert is a leaf with client-auth usage.
	ClientCert CertType = "client"
	// ServerClientCert is a leaf with both usages (mutual TLS endpoints).
	ServerClientCert CertType = "server-client"
)

// CertificateConfig describes a CA or leaf certificate to generate.
type CertificateConfig struct {
	Name         string
	CommonName   string
	Organization string
	DNSNames     []string
	IPAddresses  []net.IP
	CertType     CertType

	// Validity overrides the kind default (CAValidityDuration for CAs,
	// LeafValidityDuration for leaves).
	Validity *time.Duration

	// SigningCA is the resolved signing material for leaf kinds. The manager
	// injects it after applying the signing-mode policy; it is not part of
	// the config identity and excluded from the checksum.
	SigningCA *Certificate
}

var _ Config = &CertificateConfig{}

// GetName returns the logical config name.
func (c *CertificateConfig) GetName() string { return c.Name }

// Kind returns KindCertificate.
func (c *CertificateConfig) Kind() Kind { return KindCertificate }

// Checksum hashes the config parameters that define the certificate's
// identity. SigningCA is deliberately excluded: the manager folds the CA
// fingerprint into the object name separately so that a CA rotation changes
// the name without changing the config.
func (c *CertificateConfig) Checksum() string {
	var b strings.Builder
	b.WriteString(string(KindCertificate))
	b.WriteByte('\n')
	b.WriteString(c.Name)
	b.WriteByte('\n')
	b.WriteString(c.CommonName)
	b.WriteByte('\n')
	b.WriteString(c.Organization)
	b.WriteByte('\n')
	b.WriteString(strings.Join(c.DNSNames, ","))
	b.WriteByte('\n')
	for _, ip := range c.IPAddresses {
		b.WriteString(ip.String())
		b.WriteByte(',')
	}
	b.WriteByte('\n')
	b.WriteString(string(c.CertType))
	b.WriteByte('\n')
	if c.Validity != nil {
		b.WriteString(c.Validity.String())
	}
	return checksumString(b.String())
}

// Certificate is generated certificate material. For leaves, CA points at
// the signer so the stored secret can include the CA certificate alongside
// the key pair.
type Certificate struct {
	Name string

	CertificatePEM []byte
	PrivateKeyPEM  []byte

	Cert       *x509.Certificate
	PrivateKey *ecdsa.PrivateKey

	CA *Certificate
}

var _ ExpiringData = &Certificate{}

// SecretData returns the data map to persist: ca.crt/ca.key for CAs,
// tls.crt/tls.key plus the signer's ca.crt for leaves.
func (c *Certificate) SecretData() map[string][]byte {
	if c.Cert.IsCA {
		return map[string][]byte{
			DataKeyCertificateCA: c.CertificatePEM,
			DataKeyPrivateKeyCA:  c.PrivateKeyPEM,
		}
	}
	data := map[string][]byte{
		DataKeyCertificate: c.CertificatePEM,
		DataKeyPrivateKey:  c.PrivateKeyPEM,
	}
	if c.CA != nil {
		data[DataKeyCertificateCA] = c.CA.CertificatePEM
	}
	return data
}

// ValidUntil returns the certificate's NotAfter.
func (c *Certificate) ValidUntil() time.Time { return c.Cert.NotAfter }

// Fingerprint returns a stable hex digest of the DER certificate. Used to
// fold the signer identity into dependent object names.
func (c *Certificate) Fingerprint() string {
	sum := sha256.Sum256(c.Cert.Raw)
	return hex.EncodeToString(sum[:])
}

// Generate creates the key pair and certificate described by the config:
// self-signed for CACert, signed by SigningCA otherwise.
func (c *CertificateConfig) Generate(rng io.Reader) (Data, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	if c.CertType == CACert {
		return c.generateCA(rng)
	}
	return c.generateLeaf(rng)
}

func (c *CertificateConfig) validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: certificate config has no name", ErrInvalidConfig)
	}
	switch c.CertType {
	case CACert:
		if c.CommonName == "" {
			return fmt.Errorf("%w: CA config %q has no common name", ErrInvalidConfig, c.Name)
		}
	case ServerCert, ServerClientCert:
		if len(c.DNSNames) == 0 && len(c.IPAddresses) == 0 {
			return fmt.Errorf("%w: server certificate config %q has no SANs", ErrInvalidConfig, c.Name)
		}
	case ClientCert:
		if c.CommonName == "" {
			return fmt.Errorf("%w: client certificate config %q has no common name", ErrInvalidConfig, c.Name)
		}
	default:
		return fmt.Errorf("%w: unknown certificate type %q", ErrInvalidConfig, c.CertType)
	}
	if c.CertType != CACert && c.SigningCA == nil {
		return fmt.Errorf("%w: certificate config %q has no signing CA", ErrSigningMaterialUnavailable, c.Name)
	}
	return nil
}

func (c *CertificateConfig) organization() []string {
	if c.Organization != "" {
		return []string{c.Organization}
	}
	return []string{Organization}
}

func (c *CertificateConfig) validity() time.Duration {
	if c.Validity != nil {
		return *c.Validity
	}
	if c.CertType == CACert {
		return CAValidityDuration
	}
	return LeafValidityDuration
}

func (c *CertificateConfig) generateCA(rng io.Reader) (*Certificate, error) {
	privKey, err := ecdsa.GenerateKey(elliptic.P256(), rng)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CA private key: %w", err)
	}

	serialNumber, err := randomSerial(rng)
	if err != nil {
		return nil, err
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName:   c.CommonName,
			Organization: c.organization(),
		},
		NotBefore: time.Now().Add(-1 * time.Hour),
		NotAfter:  time.Now().Add(c.validity()),
		KeyUsage:  x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{
			x509.ExtKeyUsageServerAuth,
			x509.ExtKeyUsageClientAuth,
		},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	derBytes, err := x509.CreateCertificate(rng, &template, &template, &privKey.PublicKey, privKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create CA certificate: %w", err)
	}

	return newCertificate(c.Name, derBytes, privKey, nil)
}

func (c *CertificateConfig) generateLeaf(rng io.Reader) (*Certificate, error) {
	privKey, err := ecdsa.GenerateKey(elliptic.P256(), rng)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	serialNumber, err := randomSerial(rng)
	if err != nil {
		return nil, err
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName:   c.CommonName,
			Organization: c.organization(),
		},
		DNSNames:    c.DNSNames,
		IPAddresses: c.IPAddresses,
		NotBefore:   time.Now().Add(-1 * time.Hour),
		NotAfter:    time.Now().Add(c.validity()),
		KeyUsage:    x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage: c.extKeyUsages(),
	}

	if ip := net.ParseIP(c.CommonName); ip != nil {
		template.IPAddresses = append(template.IPAddresses, ip)
	}

	derBytes, err := x509.CreateCertificate(
		rng,
		&template,
		c.SigningCA.Cert,
		&privKey.PublicKey,
		c.SigningCA.PrivateKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to sign certificate: %w", err)
	}

	return newCertificate(c.Name, derBytes, privKey, c.SigningCA)
}

func (c *CertificateConfig) extKeyUsages() []x509.ExtKeyUsage {
	switch c.CertType {
	case ClientCert:
		return []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}
	case ServerClientCert:
		return []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth}
	default:
		return []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}
	}
}

func newCertificate(
	name string,
	derBytes []byte,
	privKey *ecdsa.PrivateKey,
	ca *Certificate,
) (*Certificate, error) {
	cert, err := x509.ParseCertificate(derBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse generated certificate: %w", err)
	}

	keyBytes, err := x509.MarshalECPrivateKey(privKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	return &Certificate{
		Name:           name,
		CertificatePEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: derBytes}),
		PrivateKeyPEM:  pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes}),
		Cert:           cert,
		PrivateKey:     privKey,
		CA:             ca,
	}, nil
}

// randomSerial draws a 128-bit serial from rng. Uniqueness tracking is not
// needed for store-backed certificates; a large random int is standard
// practice.
func randomSerial(rng io.Reader) (*big.Int, error) {
	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := randInt(rng, serialNumberLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}
	return serialNumber, nil
}

// LoadCertificate decodes persisted certificate secret data back into crypto
// objects for signing usage. It accepts both CA-keyed and leaf-keyed data.
func LoadCertificate(name string, data map[string][]byte) (*Certificate, error) {
	certPEM, keyPEM := data[DataKeyCertificateCA], data[DataKeyPrivateKeyCA]
	if _, ok := data[DataKeyCertificate]; ok {
		certPEM, keyPEM = data[DataKeyCertificate], data[DataKeyPrivateKey]
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, fmt.Errorf("failed to decode certificate PEM for %q", name)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate for %q: %w", name, err)
	}

	block, _ = pem.Decode(keyPEM)
	if block == nil {
		return nil, fmt.Errorf("failed to decode private key PEM for %q", name)
	}
	// Optimistically EC, then PKCS8 fallback; strictly P-256 for us.
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		if k, pkcs8Err := x509.ParsePKCS8PrivateKey(block.Bytes); pkcs8Err == nil {
			switch k := k.(type) {
			case *ecdsa.PrivateKey:
				key = k
			default:
				return nil, fmt.Errorf("found non-ECDSA private key type for %q", name)
			}
		} else {
			return nil, fmt.Errorf("failed to parse private key for %q: %w", name, err)
		}
	}

	return &Certificate{
		Name:           name,
		CertificatePEM: certPEM,
		PrivateKeyPEM:  keyPEM,
		Cert:           cert,
		PrivateKey:     key,
	}, nil
}

// checksumString returns the hex sha256 of s.
func checksumString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// randInt mirrors crypto/rand.Int over an injected reader.
func randInt(rng io.Reader, max *big.Int) (*big.Int, error) {
	buf := make([]byte, (max.BitLen()+7)/8)
	if _, err := io.ReadFull(rng, buf); err != nil {
		return nil, err
	}
	v := new(big.Int).SetBytes(buf)
	return v.Mod(v, max), nil
}
