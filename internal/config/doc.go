// Package config loads, normalizes, and validates embednotify configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the WEBAPP_HOST environment
// fallback. The Config type centralizes every knob the notifier and CLI need.
//
// Long-lived components read settings through a Store, which guards the
// loaded Config with a read/write lock so any number of concurrent readers
// can resolve the web application host while a single writer updates and
// persists it.
package config
