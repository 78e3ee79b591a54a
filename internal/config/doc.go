// Package config loads, normalizes, and validates rollq configuration.
//
// Configuration lives in a single TOML file. Load resolves the file from an
// explicit path, ~/.config/rollq/config.toml, or ./rollq.toml, merges it over
// repository defaults, expands ~ in path fields, and validates the result.
package config
