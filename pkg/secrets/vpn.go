package secrets

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// DataKeyVPNTLSAuth holds the OpenVPN tls-auth static key.
const DataKeyVPNTLSAuth = "vpn.tlsauth"

// VPNTLSAuthKeyLength is the raw key size in bytes required by the
// "OpenVPN Static key V1" format (2048 bits).
const VPNTLSAuthKeyLength = 256

const vpnKeyHexCharsPerLine = 32

// VPNTLSAuthConfig describes a VPN tls-auth pre-shared key.
type VPNTLSAuthConfig struct {
	Name string
}

var _ Config = &VPNTLSAuthConfig{}

func (c *VPNTLSAuthConfig) GetName() string { return c.Name }

func (c *VPNTLSAuthConfig) Kind() Kind { return KindVPNTLSAuth }

func (c *VPNTLSAuthConfig) Checksum() string {
	var b strings.Builder
	b.WriteString(string(KindVPNTLSAuth))
	b.WriteByte('\n')
	b.WriteString(c.Name)
	return checksumString(b.String())
}

// VPNTLSAuth is a generated tls-auth key in OpenVPN's static key file
// format.
type VPNTLSAuth struct {
	Name string
	Key  []byte
}

var _ Data = &VPNTLSAuth{}

func (v *VPNTLSAuth) SecretData() map[string][]byte {
	var b strings.Builder
	b.WriteString("-----BEGIN OpenVPN Static key V1-----\n")
	encoded := hex.EncodeToString(v.Key)
	for i := 0; i < len(encoded); i += vpnKeyHexCharsPerLine {
		b.WriteString(encoded[i : i+vpnKeyHexCharsPerLine])
		b.WriteByte('\n')
	}
	b.WriteString("-----END OpenVPN Static key V1-----\n")
	return map[string][]byte{
		DataKeyVPNTLSAuth: []byte(b.String()),
	}
}

func (c *VPNTLSAuthConfig) Generate(rng io.Reader) (Data, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("%w: vpn-tlsauth config has no name", ErrInvalidConfig)
	}

	key, err := randomBytes(rng, VPNTLSAuthKeyLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tls-auth key: %w", err)
	}

	return &VPNTLSAuth{Name: c.Name, Key: key}, nil
}
