package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRemote(); err != nil {
		return err
	}
	if err := c.validateTransfers(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	if bind := c.Paths.APIBind; bind != "" {
		if _, _, err := net.SplitHostPort(bind); err != nil {
			return fmt.Errorf("paths.api_bind %q is not host:port: %w", bind, err)
		}
	}
	return nil
}

func (c *Config) validateRemote() error {
	for name, value := range map[string]string{
		"remote.search_url":   c.Remote.SearchURL,
		"remote.metadata_url": c.Remote.MetadataURL,
		"remote.download_url": c.Remote.DownloadURL,
	} {
		if value == "" {
			return fmt.Errorf("%s must be set", name)
		}
		if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
			return fmt.Errorf("%s must be an http(s) URL", name)
		}
	}
	return nil
}

func (c *Config) validateTransfers() error {
	if c.Transfers.Retries < 0 {
		return errors.New("transfers.retries must not be negative")
	}
	if c.Transfers.TimeoutSeconds < 0 {
		return errors.New("transfers.timeout_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
