package secrets

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Data map keys for basic-auth secrets.
const (
	DataKeyUsername = "username"
	DataKeyPassword = "password"
	// DataKeyAuth holds the combined "username:password" encoding for
	// consumers expecting a single field.
	DataKeyAuth = "auth"
)

const (
	// DefaultPasswordLength is the generated password length when the config
	// does not override it.
	DefaultPasswordLength = 32
	// MinPasswordLength is the lowest accepted password length.
	MinPasswordLength = 16

	defaultUsernameLength = 8
)

// BasicAuthConfig describes a username/password pair. Username is optional;
// when empty a random one is generated.
type BasicAuthConfig struct {
	Name           string
	Username       string
	PasswordLength int
}

var _ Config = &BasicAuthConfig{}

func (c *BasicAuthConfig) GetName() string { return c.Name }

func (c *BasicAuthConfig) Kind() Kind { return KindBasicAuth }

func (c *BasicAuthConfig) Checksum() string {
	var b strings.Builder
	b.WriteString(string(KindBasicAuth))
	b.WriteByte('\n')
	b.WriteString(c.Name)
	b.WriteByte('\n')
	b.WriteString(c.Username)
	b.WriteByte('\n')
	b.WriteString(strconv.Itoa(c.PasswordLength))
	return checksumString(b.String())
}

// BasicAuth is a generated username/password pair.
type BasicAuth struct {
	Name     string
	Username string
	Password string
}

var _ Data = &BasicAuth{}

func (b *BasicAuth) SecretData() map[string][]byte {
	return map[string][]byte{
		DataKeyUsername: []byte(b.Username),
		DataKeyPassword: []byte(b.Password),
		DataKeyAuth:     []byte(b.Username + ":" + b.Password),
	}
}

// Generate produces the pair; the password is drawn from rng over an
// alphanumeric charset.
func (c *BasicAuthConfig) Generate(rng io.Reader) (Data, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("%w: basic-auth config has no name", ErrInvalidConfig)
	}
	length := c.PasswordLength
	if length == 0 {
		length = DefaultPasswordLength
	}
	if length < MinPasswordLength {
		return nil, fmt.Errorf(
			"%w: basic-auth config %q requests password length %d, minimum is %d",
			ErrInvalidConfig, c.Name, length, MinPasswordLength)
	}

	username := c.Username
	if username == "" {
		var err error
		username, err = randomString(rng, defaultUsernameLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate username: %w", err)
		}
	}

	password, err := randomString(rng, length)
	if err != nil {
		return nil, fmt.Errorf("failed to generate password: %w", err)
	}

	return &BasicAuth{Name: c.Name, Username: username, Password: password}, nil
}
