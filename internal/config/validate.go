package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMaster(); err != nil {
		return err
	}
	if err := c.validateLocation(); err != nil {
		return err
	}
	if err := c.validateFavorites(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateMaster() error {
	if c.Master.URL == "" {
		return errors.New("master.url must be set")
	}
	if c.Master.GameID == "" {
		return errors.New("master.game_id must be set")
	}
	return nil
}

func (c *Config) validateLocation() error {
	if c.Location.URL == "" {
		return errors.New("location.url must be set")
	}
	return nil
}

func (c *Config) validateFavorites() error {
	if c.Favorites.Limit <= 0 {
		return errors.New("favorites.limit must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.cache_flush_interval": c.Workflow.CacheFlushInterval,
		"workflow.request_timeout":      c.Workflow.RequestTimeout,
		"release.timeout_seconds":       c.Release.TimeoutSeconds,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
