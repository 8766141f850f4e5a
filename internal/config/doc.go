// Package config loads, normalizes, and validates medannotate configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the MEDANNOTATE_API_TOKEN
// environment fallback. The Config type centralizes every knob the server
// and CLI need: where the directory database lives, how the HTTP API binds,
// the optional claim lease, and log output.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
