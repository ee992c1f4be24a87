// Package config loads and validates scout's TOML configuration.
package config
