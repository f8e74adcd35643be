// Package config loads, normalizes, and validates notely configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a local .env file, and honours
// environment fallbacks such as NOTELY_S3_ACCESS_KEY_ID. The Config type
// centralizes every knob the daemon and CLI need, allowing the data
// directory, the object storage target, and the cloud note store to be
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
