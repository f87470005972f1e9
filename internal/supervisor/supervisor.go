// Package supervisor enforces the safety preconditions of a run: only one
// instance at a time, privileges dropped before any source I/O, and stale
// readings rejected.
package supervisor

import "errors"

// DefaultLockName is the abstract socket name claimed by a run.
const DefaultLockName = "dreadpi"

// ErrAlreadyRunning is returned by AcquireLock when another run holds the lock.
var ErrAlreadyRunning = errors.New("another instance is running")
