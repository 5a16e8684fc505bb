// Package config loads, normalizes, and validates SoundSketch configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours SOUNDSKETCH_* environment
// overrides, optionally sourced from a .env file. The Config type centralizes
// every knob the daemon, the CLI, and the transcription pipeline need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
