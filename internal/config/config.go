// Package config loads gateway settings from defaults, an optional YAML file,
// the environment and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jordanharrington/visualgate/internal/volc"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr      string `yaml:"addr"`
	LogLevel  string `yaml:"log-level"`
	LogFormat string `yaml:"log-format"`
	LogFile   string `yaml:"log-file"`

	Volc VolcConfig `yaml:"volc"`

	RequestTimeout     time.Duration `yaml:"request-timeout"`
	RelayHeaderTimeout time.Duration `yaml:"relay-header-timeout"`
	RelayAllowedHosts  []string      `yaml:"relay-allowed-hosts"`

	Archive ArchiveConfig `yaml:"archive"`
}

type VolcConfig struct {
	volc.Credentials `yaml:",inline"`
	Scheme           string `yaml:"scheme"`
}

// ArchiveConfig enables presigned uploads of generated media when Bucket is set.
type ArchiveConfig struct {
	Bucket   string        `yaml:"bucket"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
	KMSKeyID string        `yaml:"kms-key-id"`
}

// Enabled reports whether the archive route should be served.
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

func Default() Config {
	return Config{
		Addr:      ":5000",
		LogLevel:  "info",
		LogFormat: "text",
		Volc: VolcConfig{
			Credentials: volc.Credentials{
				Region:  volc.DefaultRegion,
				Service: volc.DefaultService,
				Host:    volc.DefaultHost,
			},
			Scheme: "https",
		},
		RequestTimeout:     60 * time.Second,
		RelayHeaderTimeout: 30 * time.Second,
		Archive: ArchiveConfig{
			Prefix: "generated/",
			TTL:    5 * time.Minute,
		},
	}
}

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// Load layers path (skipped when empty or missing), the environment seen
// through lookup, and any flags set on fs over the defaults, then validates.
// fs may be nil.
func Load(path string, lookup LookupFunc, fs *pflag.FlagSet) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if fs != nil {
		if err := cfg.applyFlags(fs); err != nil {
			return nil, err
		}
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
