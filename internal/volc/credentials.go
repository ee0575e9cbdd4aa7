package volc

import (
	"fmt"
	"log/slog"
	"strings"
)

const (
	DefaultRegion  = "cn-beijing"
	DefaultService = "cv"
	DefaultHost    = "visual.volcengineapi.com"
)

// Credentials identify the caller to the visual API. The value is built once at
// startup and never mutated.
type Credentials struct {
	AccessKey string `yaml:"access-key"`
	SecretKey string `yaml:"secret-key"`
	Region    string `yaml:"region"`
	Service   string `yaml:"service"`
	Host      string `yaml:"host"`
}

// ConfigurationError reports credentials that cannot be used for signing.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("volc: missing credential %s", e.Field)
}

// Validate reports the first missing field as a *ConfigurationError.
func (c Credentials) Validate() error {
	for _, f := range []struct{ name, val string }{
		{"access key", c.AccessKey},
		{"secret key", c.SecretKey},
		{"region", c.Region},
		{"service", c.Service},
		{"host", c.Host},
	} {
		if strings.TrimSpace(f.val) == "" {
			return &ConfigurationError{Field: f.name}
		}
	}
	return nil
}

func (c Credentials) String() string {
	return fmt.Sprintf("access_key=%s region=%s service=%s host=%s", maskKey(c.AccessKey), c.Region, c.Service, c.Host)
}

// LogValue keeps the secret key out of structured logs.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("access_key", maskKey(c.AccessKey)),
		slog.String("region", c.Region),
		slog.String("service", c.Service),
		slog.String("host", c.Host),
	)
}

func maskKey(k string) string {
	if len(k) <= 4 {
		return "****"
	}
	return "****" + k[len(k)-4:]
}
