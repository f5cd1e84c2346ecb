// Package manager orchestrates the lifecycle of managed secrets: it maps
// configs to deterministic object names, writes immutable secrets to the
// cluster, renews certificates before expiry, executes CA rotations without
// breaking established trust, maintains CA bundles, mirrors designated
// secrets to a durable external store and garbage-collects everything not
// touched by the latest accounting pass.
//
// A Manager owns exactly the secrets labeled with its identity; multiple
// managers can share a namespace without interfering. Rotation state (which
// rotation cycle each config is in) is supplied externally through
// Options.RotationTimes, never tracked as hidden mutable state.
package manager
