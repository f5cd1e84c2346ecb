package awssm

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/google/go-cmp/cmp"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// mockClient is an in-memory Secrets Manager: a name-to-payload map plus
// injectable failures.
type mockClient struct {
	store map[string]string

	createErr error
	putErr    error
	listErr   error
	getErr    error

	// pageSize paginates ListSecrets when > 0.
	pageSize int

	createCalls int
	putCalls    int
}

func newMockClient() *mockClient {
	return &mockClient{store: map[string]string{}}
}

func (m *mockClient) CreateSecret(_ context.Context, params *secretsmanager.CreateSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	m.createCalls++
	if m.createErr != nil {
		return nil, m.createErr
	}
	if _, ok := m.store[*params.Name]; ok {
		return nil, &types.ResourceExistsException{}
	}
	m.store[*params.Name] = *params.SecretString
	return &secretsmanager.CreateSecretOutput{}, nil
}

func (m *mockClient) PutSecretValue(_ context.Context, params *secretsmanager.PutSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	m.putCalls++
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.store[*params.SecretId] = *params.SecretString
	return &secretsmanager.PutSecretValueOutput{}, nil
}

func (m *mockClient) GetSecretValue(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	value, ok := m.store[*params.SecretId]
	if !ok {
		return nil, &types.ResourceNotFoundException{}
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(value)}, nil
}

func (m *mockClient) ListSecrets(_ context.Context, params *secretsmanager.ListSecretsInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}

	prefix := ""
	if len(params.Filters) > 0 && len(params.Filters[0].Values) > 0 {
		prefix = params.Filters[0].Values[0]
	}

	var names []string
	for name := range m.store {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	start := 0
	if params.NextToken != nil {
		for i, name := range names {
			if name == *params.NextToken {
				start = i
				break
			}
		}
	}

	end := len(names)
	var nextToken *string
	if m.pageSize > 0 && start+m.pageSize < len(names) {
		end = start + m.pageSize
		nextToken = aws.String(names[end])
	}

	out := &secretsmanager.ListSecretsOutput{NextToken: nextToken}
	for _, name := range names[start:end] {
		out.SecretList = append(out.SecretList, types.SecretListEntry{Name: aws.String(name)})
	}
	return out, nil
}

func testSecret(name string) *corev1.Secret {
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "kube-system",
			Labels:    map[string]string{"secrets.numtide.com/name": "admin"},
		},
		Data: map[string][]byte{"password": []byte("hunter2")},
	}
}

func newTestBridge(t *testing.T, client ClientAPI) *Bridge {
	t.Helper()
	b, err := New(context.Background(), Options{Prefix: "cluster-a"}, WithClient(client))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return b
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), Options{}, WithClient(newMockClient())); err == nil {
		t.Error("expected an error for a missing prefix")
	}
}

func TestBridge_Sync(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		client  *mockClient
		preSync bool
		wantErr bool
	}{
		"Happy Path: First Sync Creates": {
			client: newMockClient(),
		},
		"Happy Path: Repeated Sync Writes New Version": {
			client:  newMockClient(),
			preSync: true,
		},
		"Error: Create Failure": {
			client: func() *mockClient {
				c := newMockClient()
				c.createErr = errors.New("throttled")
				return c
			}(),
			wantErr: true,
		},
		"Error: Put Failure On Existing Mirror": {
			client: func() *mockClient {
				c := newMockClient()
				c.putErr = errors.New("throttled")
				return c
			}(),
			preSync: true,
			wantErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			b := newTestBridge(t, tc.client)
			secret := testSecret("admin-abc12-00000")

			if tc.preSync {
				if err := b.Sync(context.Background(), secret); err != nil {
					t.Fatalf("pre-sync failed: %v", err)
				}
			}

			err := b.Sync(context.Background(), secret)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected an error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Sync() failed: %v", err)
			}

			remote := "cluster-a/kube-system/admin-abc12-00000"
			payload, ok := tc.client.store[remote]
			if !ok {
				t.Fatalf("mirror %q not written, store has %v", remote, tc.client.store)
			}

			var env envelope
			if err := json.Unmarshal([]byte(payload), &env); err != nil {
				t.Fatalf("mirror payload is not a valid envelope: %v", err)
			}
			if env.Name != secret.Name || env.Namespace != secret.Namespace {
				t.Errorf("envelope identity mismatch: %+v", env)
			}
			if string(env.Data["password"]) != "hunter2" {
				t.Error("envelope data does not round-trip")
			}

			if tc.preSync && tc.client.putCalls != 1 {
				t.Errorf("expected the second sync to go through PutSecretValue, put calls = %d", tc.client.putCalls)
			}
		})
	}
}

func TestBridge_Restore(t *testing.T) {
	t.Parallel()

	t.Run("Happy Path: Round Trip", func(t *testing.T) {
		t.Parallel()

		client := newMockClient()
		b := newTestBridge(t, client)

		want := []*corev1.Secret{testSecret("admin-abc12-00000"), testSecret("cluster-ca-00000")}
		for _, s := range want {
			if err := b.Sync(context.Background(), s); err != nil {
				t.Fatalf("Sync() failed: %v", err)
			}
		}

		restored, err := b.Restore(context.Background())
		if err != nil {
			t.Fatalf("Restore() failed: %v", err)
		}
		if len(restored) != len(want) {
			t.Fatalf("restored %d secrets, want %d", len(restored), len(want))
		}

		byName := map[string]corev1.Secret{}
		for _, s := range restored {
			byName[s.Name] = s
		}
		for _, w := range want {
			got, ok := byName[w.Name]
			if !ok {
				t.Errorf("secret %q not restored", w.Name)
				continue
			}
			if diff := cmp.Diff(w.Data, got.Data); diff != "" {
				t.Errorf("restored data mismatch for %q (-want +got):\n%s", w.Name, diff)
			}
			if diff := cmp.Diff(w.Labels, got.Labels); diff != "" {
				t.Errorf("restored labels mismatch for %q (-want +got):\n%s", w.Name, diff)
			}
		}
	})

	t.Run("Happy Path: Paginated Listing", func(t *testing.T) {
		t.Parallel()

		client := newMockClient()
		client.pageSize = 1
		b := newTestBridge(t, client)

		for _, name := range []string{"a-00000", "b-00000", "c-00000"} {
			if err := b.Sync(context.Background(), testSecret(name)); err != nil {
				t.Fatalf("Sync() failed: %v", err)
			}
		}

		restored, err := b.Restore(context.Background())
		if err != nil {
			t.Fatalf("Restore() failed: %v", err)
		}
		if len(restored) != 3 {
			t.Errorf("restored %d secrets across pages, want 3", len(restored))
		}
	})

	t.Run("Undecodable Mirror Skipped", func(t *testing.T) {
		t.Parallel()

		client := newMockClient()
		b := newTestBridge(t, client)

		if err := b.Sync(context.Background(), testSecret("admin-abc12-00000")); err != nil {
			t.Fatalf("Sync() failed: %v", err)
		}
		client.store["cluster-a/kube-system/garbage"] = "not json"

		restored, err := b.Restore(context.Background())
		if err != nil {
			t.Fatalf("Restore() failed: %v", err)
		}
		if len(restored) != 1 {
			t.Errorf("expected the undecodable mirror to be skipped, restored %d secrets", len(restored))
		}
	})

	t.Run("Error: List Failure", func(t *testing.T) {
		t.Parallel()

		client := newMockClient()
		client.listErr = errors.New("throttled")
		b := newTestBridge(t, client)

		if _, err := b.Restore(context.Background()); err == nil {
			t.Error("expected an error, got nil")
		}
	})
}
