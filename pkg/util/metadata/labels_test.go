package metadata_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/numtide/cluster-secrets/pkg/util/metadata"
)

func TestBuildSecretLabels(t *testing.T) {
	tests := map[string]struct {
		identity   string
		configName string
		want       map[string]string
	}{
		"typical case": {
			identity:   "shoot--prod--cluster1",
			configName: "ca",
			want: map[string]string{
				"app.kubernetes.io/managed-by":         "cluster-secrets-manager",
				"secrets.numtide.com/manager-identity": "shoot--prod--cluster1",
				"secrets.numtide.com/name":             "ca",
			},
		},
		"empty strings allowed": {
			identity:   "",
			configName: "",
			want: map[string]string{
				"app.kubernetes.io/managed-by":         "cluster-secrets-manager",
				"secrets.numtide.com/manager-identity": "",
				"secrets.numtide.com/name":             "",
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := metadata.BuildSecretLabels(tc.identity, tc.configName)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("BuildSecretLabels() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSelectorLabels(t *testing.T) {
	got := metadata.SelectorLabels("gc-a")
	want := map[string]string{
		"app.kubernetes.io/managed-by":         "cluster-secrets-manager",
		"secrets.numtide.com/manager-identity": "gc-a",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SelectorLabels() mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeLabels(t *testing.T) {
	tests := map[string]struct {
		managerLabels map[string]string
		customLabels  map[string]string
		want          map[string]string
	}{
		"manager labels win on conflicts": {
			managerLabels: map[string]string{
				"secrets.numtide.com/manager-identity": "gc-a",
			},
			customLabels: map[string]string{
				"secrets.numtide.com/manager-identity": "spoofed",
				"team":                                 "platform",
			},
			want: map[string]string{
				"secrets.numtide.com/manager-identity": "gc-a",
				"team":                                 "platform",
			},
		},
		"nil custom labels": {
			managerLabels: map[string]string{
				"secrets.numtide.com/name": "ca",
			},
			customLabels: nil,
			want: map[string]string{
				"secrets.numtide.com/name": "ca",
			},
		},
		"both empty": {
			managerLabels: map[string]string{},
			customLabels:  map[string]string{},
			want:          map[string]string{},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := metadata.MergeLabels(tc.managerLabels, tc.customLabels)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("MergeLabels() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
