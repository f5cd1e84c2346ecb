package secrets

import (
	"crypto/rand"
	"errors"
	"strings"
	"testing"
)

func TestStaticTokenConfig_Generate(t *testing.T) {
	t.Parallel()

	cfg := &StaticTokenConfig{
		Name: "static-tokens",
		Users: []StaticTokenUser{
			{Username: "health-check", UID: "health-check"},
			{Username: "admin", UID: "admin", Groups: []string{"system:masters", "ops"}},
		},
	}

	data, err := cfg.Generate(rand.Reader)
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	tokens := data.(*StaticToken)

	if len(tokens.Tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(tokens.Tokens))
	}
	if tokens.Tokens["health-check"] == tokens.Tokens["admin"] {
		t.Error("tokens must be unique per user")
	}

	csv := string(tokens.SecretData()[DataKeyStaticTokenCSV])
	lines := strings.Split(strings.TrimRight(csv, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 csv lines, got %d: %q", len(lines), csv)
	}
	// Serialization follows config user order.
	if !strings.Contains(lines[0], ",health-check,health-check") {
		t.Errorf("first line should be health-check: %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], `,admin,admin,"system:masters,ops"`) {
		t.Errorf("admin line should carry quoted groups: %q", lines[1])
	}

	// Re-serialization of the same material is byte-identical.
	if csv != string(tokens.SecretData()[DataKeyStaticTokenCSV]) {
		t.Error("SecretData must be deterministic")
	}
}

func TestStaticTokenConfig_Generate_Errors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		config  *StaticTokenConfig
		wantErr error
	}{
		"Error: Missing Name": {
			config:  &StaticTokenConfig{Users: []StaticTokenUser{{Username: "a"}}},
			wantErr: ErrInvalidConfig,
		},
		"Error: No Users": {
			config:  &StaticTokenConfig{Name: "static-tokens"},
			wantErr: ErrInvalidConfig,
		},
		"Error: User Without Username": {
			config: &StaticTokenConfig{
				Name:  "static-tokens",
				Users: []StaticTokenUser{{UID: "x"}},
			},
			wantErr: ErrInvalidConfig,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if _, err := tc.config.Generate(rand.Reader); !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}
