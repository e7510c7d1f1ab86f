// Package config loads linebridge configuration from a TOML file with
// environment overrides, and watches the file for live reload.
package config
