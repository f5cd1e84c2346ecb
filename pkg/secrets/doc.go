// Package secrets defines the credential configs and the pure generation
// functions that produce their raw material: certificate authorities, leaf
// certificates, basic-auth pairs, symmetric encryption keys, RSA key pairs,
// static token tables, kubeconfigs and VPN pre-shared keys.
//
// Configs are immutable value objects; two configs with identical parameters
// have identical checksums. Generation takes an explicit randomness source so
// tests can be deterministic. Orchestration (naming, storage, rotation,
// cleanup) lives in the manager subpackage.
package secrets
