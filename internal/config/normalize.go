package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// normalize expands and cleans all path-valued fields and trims endpoint URLs.
// An empty game directory means the directory scout was started from.
func (c *Config) normalize() error {
	for _, field := range []*string{&c.Paths.GameDir, &c.Paths.LocalDir, &c.Paths.LogDir} {
		if strings.TrimSpace(*field) == "" {
			*field = ""
			continue
		}
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}

	if c.Paths.GameDir == "" {
		dir, err := filepath.Abs(".")
		if err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}
		c.Paths.GameDir = dir
	}

	c.Master.URL = strings.TrimRight(strings.TrimSpace(c.Master.URL), "/")
	c.Master.GameID = strings.TrimSpace(c.Master.GameID)
	c.Location.URL = strings.TrimRight(strings.TrimSpace(c.Location.URL), "/")
	c.Location.APIKey = strings.TrimSpace(c.Location.APIKey)
	c.Release.ManifestURL = strings.TrimSpace(c.Release.ManifestURL)
	c.Console.Binary = strings.TrimSpace(c.Console.Binary)
	return nil
}
