package config

import (
	"fmt"
	"path/filepath"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

var validStrategies = map[string]bool{
	"auto":           true,
	"ubuntu-drivers": true,
	"apt":            true,
}

// Validate checks the config for invalid values and returns all errors
// found. Dangerous zero-values are clamped to safe defaults so a partial
// config file cannot disable timeouts or empty the pattern lists.
func (c *Config) Validate() []error {
	var errs []error

	if c.LogLevel != "" && !validLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
		c.LogLevel = "info"
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q is not one of text, json", c.LogFormat))
		c.LogFormat = "text"
	}

	if !validStrategies[c.Scan.Strategy] {
		errs = append(errs, fmt.Errorf("scan.strategy %q is not one of auto, ubuntu-drivers, apt", c.Scan.Strategy))
		c.Scan.Strategy = "auto"
	}

	if c.Scan.TimeoutSeconds <= 0 {
		c.Scan.TimeoutSeconds = Default().Scan.TimeoutSeconds
	}
	if c.Install.TimeoutSeconds <= 0 {
		c.Install.TimeoutSeconds = Default().Install.TimeoutSeconds
	}

	if len(c.Scan.DriverMatchPatterns) == 0 {
		c.Scan.DriverMatchPatterns = Default().Scan.DriverMatchPatterns
	}

	for _, pattern := range c.Install.RebootPatterns {
		if _, err := filepath.Match(pattern, "probe"); err != nil {
			errs = append(errs, fmt.Errorf("install.reboot_patterns entry %q is not a valid glob: %w", pattern, err))
		}
	}
	if len(c.Install.RebootPatterns) == 0 {
		c.Install.RebootPatterns = Default().Install.RebootPatterns
	}

	return errs
}
