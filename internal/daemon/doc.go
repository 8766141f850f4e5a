// Package daemon coordinates the long-running medannotate server process.
//
// It wires configuration, the work item directory, the assignment manager,
// the lease reclaimer, and the HTTP API into a single lifecycle. Several
// daemons may serve the same data directory; the directory serializes claims
// and the reclaimer elects one active instance through its own file lock.
//
// Keep orchestration logic here: scheduling rules live in the assignment
// package and persistence in the directory package, while the daemon focuses
// on startup, shutdown, and request plumbing.
package daemon
