package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWebapp(); err != nil {
		return err
	}
	if err := c.validateHistory(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWebapp() error {
	if err := ValidateHost(c.Webapp.Host); err != nil {
		return fmt.Errorf("webapp.host: %w", err)
	}
	if c.Webapp.RequestTimeout < 0 {
		return errors.New("webapp.request_timeout must be >= 0")
	}
	return nil
}

// ValidateHost rejects values that would corrupt the callback URL. The host is
// used verbatim between the scheme and the fixed path, so it may carry a port
// but never a scheme, path, query, or whitespace.
func ValidateHost(host string) error {
	if host == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("value is required. Set WEBAPP_HOST env var or edit %s (create with 'embednotify config init')", defaultPath)
	}
	if strings.Contains(host, "://") {
		return fmt.Errorf("%q must not include a scheme", host)
	}
	if strings.ContainsAny(host, "/?#") {
		return fmt.Errorf("%q must not include a path, query, or fragment", host)
	}
	if strings.ContainsAny(host, " \t\r\n") {
		return fmt.Errorf("%q must not contain whitespace", host)
	}
	return nil
}

func (c *Config) validateHistory() error {
	if c.History.RetentionDays < 0 {
		return errors.New("history.retention_days must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (expected console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
