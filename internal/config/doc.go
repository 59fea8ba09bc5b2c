// Package config loads, validates, and normalizes storyreel's TOML
// configuration. Unset values fall back to repository defaults, a leading
// tilde in paths expands to the user's home directory, and provider secrets
// may be injected through the environment instead of the config file.
package config
