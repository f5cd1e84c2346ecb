package manager

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/numtide/cluster-secrets/pkg/secrets"
	"github.com/numtide/cluster-secrets/pkg/testutil"
)

func TestManager_Cleanup(t *testing.T) {
	t.Parallel()

	now := time.Now()

	t.Run("Happy Path: Live Secrets Survive", func(t *testing.T) {
		t.Parallel()

		m, c, _ := newTestManager(t, defaultTestOptions(now))

		if _, err := m.Generate(context.Background(),
			&secrets.BasicAuthConfig{Name: "admin", Username: "admin"}); err != nil {
			t.Fatalf("Generate() failed: %v", err)
		}
		if _, err := m.Generate(context.Background(),
			&secrets.CertificateConfig{Name: "cluster-ca", CommonName: "cluster-ca", CertType: secrets.CACert}); err != nil {
			t.Fatalf("Generate() failed: %v", err)
		}

		before := testutil.SecretNames(listManaged(t, c))
		if err := m.Cleanup(context.Background()); err != nil {
			t.Fatalf("Cleanup() failed: %v", err)
		}
		after := testutil.SecretNames(listManaged(t, c))

		sort.Strings(before)
		sort.Strings(after)
		if diff := cmp.Diff(before, after); diff != "" {
			t.Errorf("cleanup removed live secrets (-before +after):\n%s", diff)
		}
	})

	t.Run("Stale Generation Deleted", func(t *testing.T) {
		t.Parallel()

		stale := storedSecret("admin-deadbeef-aaaaa", "admin", "0", now.Add(-time.Hour), nil)
		m, c, _ := newTestManager(t, defaultTestOptions(now), stale)

		live, err := m.Generate(context.Background(),
			&secrets.BasicAuthConfig{Name: "admin", Username: "admin"})
		if err != nil {
			t.Fatalf("Generate() failed: %v", err)
		}

		if err := m.Cleanup(context.Background()); err != nil {
			t.Fatalf("Cleanup() failed: %v", err)
		}

		got := testutil.SecretNames(listManaged(t, c))
		if diff := cmp.Diff([]string{live.Name}, got); diff != "" {
			t.Errorf("store contents mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Rotation: Retained Old Generation Survives", func(t *testing.T) {
		t.Parallel()

		c := fake.NewClientBuilder().Build()
		caCfg := &secrets.CertificateConfig{Name: "cluster-ca", CommonName: "cluster-ca", CertType: secrets.CACert}

		m := newTestManagerWithClient(t, c, defaultTestOptions(now))
		oldCA, err := m.Generate(context.Background(), caCfg, Rotate(KeepOld))
		if err != nil {
			t.Fatalf("initial CA Generate() failed: %v", err)
		}

		rotated := defaultTestOptions(now)
		rotated.RotationTimes = map[string]time.Time{"cluster-ca": now}
		m = newTestManagerWithClient(t, c, rotated)
		if _, err := m.Generate(context.Background(), caCfg, Rotate(KeepOld)); err != nil {
			t.Fatalf("rotated CA Generate() failed: %v", err)
		}

		if err := m.Cleanup(context.Background()); err != nil {
			t.Fatalf("Cleanup() failed: %v", err)
		}

		names := testutil.SecretNames(listManaged(t, c))
		found := false
		for _, n := range names {
			if n == oldCA.Name {
				found = true
			}
		}
		if !found {
			t.Errorf("old CA generation must survive cleanup during KeepOld rotation, store has %v", names)
		}
	})

	t.Run("Rotation: Ignored Old Generation Deleted", func(t *testing.T) {
		t.Parallel()

		c := fake.NewClientBuilder().Build()
		caCfg := &secrets.CertificateConfig{Name: "cluster-ca", CommonName: "cluster-ca", CertType: secrets.CACert}

		m := newTestManagerWithClient(t, c, defaultTestOptions(now))
		oldCA, err := m.Generate(context.Background(), caCfg, Rotate(KeepOld))
		if err != nil {
			t.Fatalf("initial CA Generate() failed: %v", err)
		}

		rotated := defaultTestOptions(now)
		rotated.RotationTimes = map[string]time.Time{"cluster-ca": now}
		m = newTestManagerWithClient(t, c, rotated)
		if _, err := m.Generate(context.Background(), caCfg, Rotate(KeepOld), IgnoreOldSecrets()); err != nil {
			t.Fatalf("rotated CA Generate() failed: %v", err)
		}

		if err := m.Cleanup(context.Background()); err != nil {
			t.Fatalf("Cleanup() failed: %v", err)
		}

		for _, n := range testutil.SecretNames(listManaged(t, c)) {
			if n == oldCA.Name {
				t.Errorf("ignored old CA generation %q must be deleted by cleanup", oldCA.Name)
			}
		}
	})

	t.Run("Foreign Identity Untouched", func(t *testing.T) {
		t.Parallel()

		foreign := storedSecret("other-aaaaa", "other", "0", now, nil)
		foreign.Labels["secrets.numtide.com/manager-identity"] = "someone-else"

		c := fake.NewClientBuilder().WithObjects(foreign).Build()
		m := newTestManagerWithClient(t, c, defaultTestOptions(now))

		if err := m.Cleanup(context.Background()); err != nil {
			t.Fatalf("Cleanup() failed: %v", err)
		}

		if _, found := m.Get("other"); found {
			t.Error("foreign secret must not even be loaded")
		}
		list := listManaged(t, c)
		if len(list.Items) != 0 {
			t.Errorf("expected no owned secrets, got %v", testutil.SecretNames(list))
		}
	})

	t.Run("Error: Partial Failure Aggregated And Retried", func(t *testing.T) {
		t.Parallel()

		staleA := storedSecret("admin-deadbeef-aaaaa", "admin", "0", now.Add(-time.Hour), nil)
		staleB := storedSecret("admin-deadbeef-bbbbb", "admin", "0", now.Add(-2*time.Hour), nil)

		base := fake.NewClientBuilder().WithObjects(staleA, staleB).Build()
		failures := &testutil.FailureConfig{
			OnDelete: testutil.FailOnObjectName(staleA.Name, testutil.ErrInjectedDelete),
		}
		c := testutil.NewFakeClientWithFailures(base, failures)
		m := newTestManagerWithClient(t, c, defaultTestOptions(now))

		live, err := m.Generate(context.Background(),
			&secrets.BasicAuthConfig{Name: "admin", Username: "admin"})
		if err != nil {
			t.Fatalf("Generate() failed: %v", err)
		}

		err = m.Cleanup(context.Background())
		if !errors.Is(err, ErrCleanupPartialFailure) {
			t.Fatalf("expected %v, got %v", ErrCleanupPartialFailure, err)
		}

		// The deletable secret is gone, the failing one remains.
		got := testutil.SecretNames(listManaged(t, c))
		sort.Strings(got)
		want := []string{staleA.Name, live.Name}
		sort.Strings(want)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("store contents after partial failure (-want +got):\n%s", diff)
		}

		// Once the failure clears, the next pass finishes the job and the live
		// secret, regenerated in this pass, still survives.
		failures.OnDelete = nil
		if _, err := m.Generate(context.Background(),
			&secrets.BasicAuthConfig{Name: "admin", Username: "admin"}); err != nil {
			t.Fatalf("Generate() failed: %v", err)
		}
		if err := m.Cleanup(context.Background()); err != nil {
			t.Fatalf("retried Cleanup() failed: %v", err)
		}
		got = testutil.SecretNames(listManaged(t, c))
		if diff := cmp.Diff([]string{live.Name}, got); diff != "" {
			t.Errorf("store contents after retry (-want +got):\n%s", diff)
		}
	})

	t.Run("Seen Set Resets After Full Success", func(t *testing.T) {
		t.Parallel()

		m, c, _ := newTestManager(t, defaultTestOptions(now))

		first, err := m.Generate(context.Background(),
			&secrets.BasicAuthConfig{Name: "admin", Username: "admin"})
		if err != nil {
			t.Fatalf("Generate() failed: %v", err)
		}
		if err := m.Cleanup(context.Background()); err != nil {
			t.Fatalf("Cleanup() failed: %v", err)
		}

		// A new pass that produces a different name releases the previous one.
		second, err := m.Generate(context.Background(),
			&secrets.BasicAuthConfig{Name: "admin", Username: "root"})
		if err != nil {
			t.Fatalf("Generate() failed: %v", err)
		}
		if err := m.Cleanup(context.Background()); err != nil {
			t.Fatalf("second Cleanup() failed: %v", err)
		}

		got := testutil.SecretNames(listManaged(t, c))
		if diff := cmp.Diff([]string{second.Name}, got); diff != "" {
			t.Errorf("store contents mismatch (-want +got):\n%s", diff)
		}
		if first.Name == second.Name {
			t.Fatal("test requires distinct object names")
		}
	})
}
