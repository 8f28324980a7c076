package sdb

// EditLocker is the admission control for mutating the shared store.
// The lock is advisory: it is honored only by cooperating processes that use
// the same mechanism on the same path. Acquire never blocks and never fails
// with an error; contention and I/O trouble both read as "not acquired".
type EditLocker interface {
	// Acquire attempts a non-blocking exclusive lock. Returns true on
	// success, false if the lock is held elsewhere or cannot be taken.
	Acquire() bool

	// Release drops the lock if held. Safe to call when not holding.
	Release()

	// Holder returns a "host\user" description of the current holder read
	// from the sidecar record, or "" if unknown. Best effort, display only.
	Holder() string

	// IsLocked probes whether the lock is currently held by anyone,
	// without taking ownership.
	IsLocked() bool
}
