// Package config loads, normalizes, and validates Archivist configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and centralizes every knob the daemon and
// CLI need: the data root transfers land in, the state directory holding
// the jobs database, remote archive endpoints, built-in transfer option
// defaults, and workflow timing.
//
// Always obtain settings through this package so downstream code receives
// sanitized absolute paths and clear validation errors.
package config
