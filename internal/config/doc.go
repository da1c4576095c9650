// Package config loads, normalizes, and validates setlist configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the SETLIST_RECOGNITION_TOKEN
// environment fallback. The Config type centralizes every knob the CLI and
// the identification pipeline need: state and output directories, recognition
// credentials, sampling geometry, and call pacing.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
