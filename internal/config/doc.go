// Package config loads, normalizes, and validates Stagehand configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and derives the bundle, asset, database and
// log directories from a single root when they are not set explicitly. The
// Config type centralizes every knob the daemon and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
