// Package config loads, normalizes, and validates blackbox configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, overlays .env files, and honours environment
// fallbacks such as BLACKBOX_EVENTS_DIR. The Config type centralizes every knob
// the daemon and CLI need so camera, motion, recording, and retention settings
// are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
