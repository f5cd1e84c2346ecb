package secrets

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"k8s.io/client-go/tools/clientcmd/api"
	"k8s.io/client-go/tools/clientcmd/api/latest"
)

// DataKeyKubeconfig holds the serialized client config.
const DataKeyKubeconfig = "kubeconfig"

// KubeconfigConfig packages already-generated material (a CA bundle plus a
// client certificate or a bearer token) into a client config for the given
// server endpoint. It performs no cryptographic generation of its own.
type KubeconfigConfig struct {
	Name        string
	ContextName string
	Server      string

	CABundle []byte

	// Exactly one of the client certificate pair or Token must be set.
	ClientCertificatePEM []byte
	ClientKeyPEM         []byte
	Token                string
}

var _ Config = &KubeconfigConfig{}

func (c *KubeconfigConfig) GetName() string { return c.Name }

func (c *KubeconfigConfig) Kind() Kind { return KindKubeconfig }

func (c *KubeconfigConfig) Checksum() string {
	var b strings.Builder
	b.WriteString(string(KindKubeconfig))
	b.WriteByte('\n')
	b.WriteString(c.Name)
	b.WriteByte('\n')
	b.WriteString(c.ContextName)
	b.WriteByte('\n')
	b.WriteString(c.Server)
	b.WriteByte('\n')
	b.WriteString(base64.StdEncoding.EncodeToString(c.CABundle))
	b.WriteByte('\n')
	b.WriteString(base64.StdEncoding.EncodeToString(c.ClientCertificatePEM))
	b.WriteByte('\n')
	b.WriteString(base64.StdEncoding.EncodeToString(c.ClientKeyPEM))
	b.WriteByte('\n')
	b.WriteString(c.Token)
	return checksumString(b.String())
}

// Kubeconfig is the assembled client config.
type Kubeconfig struct {
	Name string
	Raw  []byte
}

var _ Data = &Kubeconfig{}

func (k *Kubeconfig) SecretData() map[string][]byte {
	return map[string][]byte{
		DataKeyKubeconfig: k.Raw,
	}
}

// Generate assembles and encodes the client config. rng is unused; this kind
// only packages material generated elsewhere.
func (c *KubeconfigConfig) Generate(_ io.Reader) (Data, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("%w: kubeconfig config has no name", ErrInvalidConfig)
	}
	if c.ContextName == "" || c.Server == "" {
		return nil, fmt.Errorf("%w: kubeconfig config %q needs a context name and server", ErrInvalidConfig, c.Name)
	}
	hasCert := len(c.ClientCertificatePEM) > 0 || len(c.ClientKeyPEM) > 0
	hasToken := c.Token != ""
	if hasCert == hasToken {
		return nil, fmt.Errorf(
			"%w: kubeconfig config %q must set exactly one of client certificate or token",
			ErrInvalidConfig, c.Name)
	}
	if hasCert && (len(c.ClientCertificatePEM) == 0 || len(c.ClientKeyPEM) == 0) {
		return nil, fmt.Errorf(
			"%w: kubeconfig config %q has an incomplete client certificate pair",
			ErrInvalidConfig, c.Name)
	}

	authInfo := &api.AuthInfo{}
	if hasToken {
		authInfo.Token = c.Token
	} else {
		authInfo.ClientCertificateData = c.ClientCertificatePEM
		authInfo.ClientKeyData = c.ClientKeyPEM
	}

	kubeconfig := &api.Config{
		Clusters: map[string]*api.Cluster{
			c.ContextName: {
				CertificateAuthorityData: c.CABundle,
				Server:                   c.Server,
			},
		},
		AuthInfos: map[string]*api.AuthInfo{
			c.ContextName: authInfo,
		},
		Contexts: map[string]*api.Context{
			c.ContextName: {
				Cluster:  c.ContextName,
				AuthInfo: c.ContextName,
			},
		},
		CurrentContext: c.ContextName,
	}

	var data bytes.Buffer
	if err := latest.Codec.Encode(kubeconfig, &data); err != nil {
		return nil, fmt.Errorf("failed to encode kubeconfig %q: %w", c.Name, err)
	}

	return &Kubeconfig{Name: c.Name, Raw: data.Bytes()}, nil
}
