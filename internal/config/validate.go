package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateAssignment(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateAssignment() error {
	if c.Assignment.LeaseTimeoutSeconds < 0 {
		return errors.New("assignment.lease_timeout_seconds must be zero (disabled) or positive")
	}
	if c.Assignment.ReclaimIntervalSeconds <= 0 {
		return errors.New("assignment.reclaim_interval_seconds must be positive")
	}
	if c.Assignment.ClaimAttempts <= 0 {
		return errors.New("assignment.claim_attempts must be positive")
	}
	if c.Assignment.LeaseTimeoutSeconds > 0 && c.Assignment.ReclaimIntervalSeconds > c.Assignment.LeaseTimeoutSeconds {
		return errors.New("assignment.reclaim_interval_seconds must not exceed assignment.lease_timeout_seconds")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (use console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
