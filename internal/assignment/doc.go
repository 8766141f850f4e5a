// Package assignment hands work items to annotators and drives each claim
// through its lifecycle: resume or claim, keyword progress, session end, and
// finalization.
//
// The Manager keeps no state of its own. Every decision is made against the
// Repository, whose ClaimNext is the only path from an unlocked track to a
// locked one, so any number of managers (one per request handler or per
// process) can share a store.
//
// Expert and trainee tracks deliberately take different EndSession paths:
// expert sessions keep their lock and keyword progress when work has started,
// while trainee sessions are all-or-nothing and always release.
package assignment
