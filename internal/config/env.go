package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

const (
	EnvAccessKey         = "VOLCENGINE_ACCESS_KEY"
	EnvSecretKey         = "VOLCENGINE_SECRET_KEY"
	EnvRegion            = "VOLCENGINE_REGION"
	EnvService           = "VOLCENGINE_SERVICE"
	EnvHost              = "VOLCENGINE_HOST"
	EnvAddr              = "VISUALGATE_ADDR"
	EnvLogLevel          = "VISUALGATE_LOG_LEVEL"
	EnvLogFile           = "VISUALGATE_LOG_FILE"
	EnvRequestTimeout    = "VISUALGATE_REQUEST_TIMEOUT"
	EnvRelayAllowedHosts = "VISUALGATE_RELAY_ALLOWED_HOSTS"
	EnvArchiveBucket     = "VISUALGATE_ARCHIVE_BUCKET"
)

func (c *Config) applyEnv(lookup LookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(v)
		return v, v != ""
	}

	for key, dst := range map[string]*string{
		EnvAccessKey:     &c.Volc.AccessKey,
		EnvSecretKey:     &c.Volc.SecretKey,
		EnvRegion:        &c.Volc.Region,
		EnvService:       &c.Volc.Service,
		EnvHost:          &c.Volc.Host,
		EnvAddr:          &c.Addr,
		EnvLogLevel:      &c.LogLevel,
		EnvLogFile:       &c.LogFile,
		EnvArchiveBucket: &c.Archive.Bucket,
	} {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	if v, ok := get(EnvRequestTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRequestTimeout, err)
		}
		c.RequestTimeout = d
	}
	if v, ok := get(EnvRelayAllowedHosts); ok {
		c.RelayAllowedHosts = splitList(v)
	}
	return nil
}

// splitList parses a comma separated list, dropping blanks and duplicates.
func splitList(s string) []string {
	parts := lo.Map(strings.Split(s, ","), func(p string, _ int) string {
		return strings.ToLower(strings.TrimSpace(p))
	})
	return lo.Uniq(lo.Compact(parts))
}
