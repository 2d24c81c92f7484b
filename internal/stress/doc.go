// Package stress runs concurrency scenarios against an entitylock.Locker and
// reports whether the expected invariants held.
//
// Each scenario builds a fresh Locker, drives it from many owners at once,
// and compares a counter guarded by the lock against the value it would
// have under correct mutual exclusion. The cmd package exposes the runner
// as "entitylock stress"; tests use it with small parameters.
package stress
