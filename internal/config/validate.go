package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

const (
	minArchiveTTL = 1 * time.Minute
	maxArchiveTTL = 10 * time.Minute
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

func (c *Config) normalize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.Volc.Scheme = strings.ToLower(strings.TrimSpace(c.Volc.Scheme))
	c.RelayAllowedHosts = splitList(strings.Join(c.RelayAllowedHosts, ","))
	if c.Archive.Prefix != "" && !strings.HasSuffix(c.Archive.Prefix, "/") {
		c.Archive.Prefix += "/"
	}
}

// Validate checks the loaded settings. Missing credentials come back as
// *volc.ConfigurationError.
func (c *Config) Validate() error {
	if err := c.Volc.Credentials.Validate(); err != nil {
		return err
	}
	if c.Volc.Scheme != "http" && c.Volc.Scheme != "https" {
		return fmt.Errorf("volc scheme must be http or https, got %q", c.Volc.Scheme)
	}
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("addr is required")
	}
	if !lo.Contains(logLevels, c.LogLevel) {
		return fmt.Errorf("log level must be one of %s, got %q", strings.Join(logLevels, ", "), c.LogLevel)
	}
	if !lo.Contains(logFormats, c.LogFormat) {
		return fmt.Errorf("log format must be one of %s, got %q", strings.Join(logFormats, ", "), c.LogFormat)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.RelayHeaderTimeout <= 0 {
		return fmt.Errorf("relay header timeout must be positive")
	}
	if c.Archive.Enabled() {
		if len(c.Archive.Bucket) > 63 {
			return fmt.Errorf("invalid archive bucket name: %s. must be 1-63 characters", c.Archive.Bucket)
		}
		if c.Archive.TTL < minArchiveTTL || c.Archive.TTL > maxArchiveTTL {
			return fmt.Errorf("archive ttl must be between %s and %s", minArchiveTTL, maxArchiveTTL)
		}
	}
	return nil
}
