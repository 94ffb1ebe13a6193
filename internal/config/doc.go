// Package config loads, validates, and defaults the TOML configuration
// shared by the daemon and CLI.
//
// One Config value is threaded explicitly through every component
// constructor; nothing reads configuration through globals. Paths are
// tilde-expanded and normalized at load time so downstream code can treat
// them as absolute.
package config
