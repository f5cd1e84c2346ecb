package secrets

import (
	"fmt"
	"io"
	"strings"
)

// DataKeyStaticTokenCSV holds the kube-apiserver static token file:
// one "token,username,uid,group-list" line per configured user.
const DataKeyStaticTokenCSV = "static_tokens.csv"

const staticTokenLength = 64

// StaticTokenUser is one entry in a static token table.
type StaticTokenUser struct {
	Username string
	UID      string
	Groups   []string
}

// StaticTokenConfig describes a static token table with one random token per
// named user.
type StaticTokenConfig struct {
	Name  string
	Users []StaticTokenUser
}

var _ Config = &StaticTokenConfig{}

func (c *StaticTokenConfig) GetName() string { return c.Name }

func (c *StaticTokenConfig) Kind() Kind { return KindStaticToken }

func (c *StaticTokenConfig) Checksum() string {
	var b strings.Builder
	b.WriteString(string(KindStaticToken))
	b.WriteByte('\n')
	b.WriteString(c.Name)
	for _, u := range c.Users {
		b.WriteByte('\n')
		b.WriteString(u.Username)
		b.WriteByte('|')
		b.WriteString(u.UID)
		b.WriteByte('|')
		b.WriteString(strings.Join(u.Groups, ","))
	}
	return checksumString(b.String())
}

// StaticToken is a generated token table.
type StaticToken struct {
	Name   string
	Tokens map[string]string // username -> token
	users  []StaticTokenUser
}

var _ Data = &StaticToken{}

// SecretData serializes the table in config user order, never map order, so
// repeated serialization of the same material is byte-identical.
func (t *StaticToken) SecretData() map[string][]byte {
	var b strings.Builder
	for _, u := range t.users {
		b.WriteString(t.Tokens[u.Username])
		b.WriteByte(',')
		b.WriteString(u.Username)
		b.WriteByte(',')
		b.WriteString(u.UID)
		if len(u.Groups) > 0 {
			b.WriteString(`,"`)
			b.WriteString(strings.Join(u.Groups, ","))
			b.WriteByte('"')
		}
		b.WriteByte('\n')
	}
	return map[string][]byte{
		DataKeyStaticTokenCSV: []byte(b.String()),
	}
}

func (c *StaticTokenConfig) Generate(rng io.Reader) (Data, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("%w: static-token config has no name", ErrInvalidConfig)
	}
	if len(c.Users) == 0 {
		return nil, fmt.Errorf("%w: static-token config %q has no users", ErrInvalidConfig, c.Name)
	}

	tokens := make(map[string]string, len(c.Users))
	for _, u := range c.Users {
		if u.Username == "" {
			return nil, fmt.Errorf("%w: static-token config %q has a user without a username", ErrInvalidConfig, c.Name)
		}
		token, err := randomString(rng, staticTokenLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate token for user %q: %w", u.Username, err)
		}
		tokens[u.Username] = token
	}

	return &StaticToken{Name: c.Name, Tokens: tokens, users: c.Users}, nil
}
