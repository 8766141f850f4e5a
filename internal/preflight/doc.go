// Package preflight provides readiness checks for the filesystem paths,
// network settings, and database that medannotate depends on.
//
// The serve command runs RunAll before opening the listener and refuses to
// start when a check fails. The health command prints the same results.
package preflight
