package manager

import "errors"

// Sentinel errors returned by manager operations. Callers classify with
// errors.Is; the manager performs no internal retries, the caller's
// reconciliation loop owns retry and backoff.
var (
	// ErrStoreWriteConflict indicates the optimistic-concurrency token was
	// stale at write time. The whole Generate call must be retried, not just
	// the write: the stale state may have led to a wrong decision upstream,
	// such as signing with an outdated CA.
	ErrStoreWriteConflict = errors.New("store write conflict")

	// ErrCleanupPartialFailure indicates some deletions of a cleanup pass
	// failed. Completed deletions are not rolled back; the next pass retries
	// the remainder.
	ErrCleanupPartialFailure = errors.New("cleanup partially failed")

	// ErrPersistenceSyncFailure indicates mirroring to the durable external
	// store failed. The in-cluster secret has already been written at that
	// point; the mirror is caught up on a later pass.
	ErrPersistenceSyncFailure = errors.New("persistence sync failed")
)
