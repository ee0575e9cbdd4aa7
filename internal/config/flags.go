package config

import (
	"time"

	"github.com/spf13/pflag"
)

const (
	FlagConfig             = "config"
	FlagAddr               = "addr"
	FlagLogLevel           = "log-level"
	FlagLogFormat          = "log-format"
	FlagLogFile            = "log-file"
	FlagRequestTimeout     = "request-timeout"
	FlagRelayHeaderTimeout = "relay-header-timeout"
	FlagRelayAllowedHosts  = "relay-allowed-hosts"
	FlagArchiveBucket      = "archive-bucket"
	FlagArchivePrefix      = "archive-prefix"
	FlagArchiveTTL         = "archive-ttl"
)

// RegisterFlags defines the gateway flags on fs. Only flags the user actually
// sets override the file and the environment.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String(FlagConfig, "config.yaml", "path to the YAML config file")
	fs.String(FlagAddr, d.Addr, "listen address")
	fs.String(FlagLogLevel, d.LogLevel, "log level: debug, info, warn or error")
	fs.String(FlagLogFormat, d.LogFormat, "log format: text or json")
	fs.String(FlagLogFile, d.LogFile, "rotate logs into this file instead of stderr")
	fs.Duration(FlagRequestTimeout, d.RequestTimeout, "timeout for each call to the visual API")
	fs.Duration(FlagRelayHeaderTimeout, d.RelayHeaderTimeout, "time to wait for media origin response headers")
	fs.StringSlice(FlagRelayAllowedHosts, nil, "media origin hosts the relay may fetch from (empty allows any)")
	fs.String(FlagArchiveBucket, d.Archive.Bucket, "S3 bucket for archive presigning (empty disables it)")
	fs.String(FlagArchivePrefix, d.Archive.Prefix, "key prefix for archived media")
	fs.Duration(FlagArchiveTTL, d.Archive.TTL, "lifetime of archive presigned URLs")
}

func (c *Config) applyFlags(fs *pflag.FlagSet) error {
	strs := map[string]*string{
		FlagAddr:          &c.Addr,
		FlagLogLevel:      &c.LogLevel,
		FlagLogFormat:     &c.LogFormat,
		FlagLogFile:       &c.LogFile,
		FlagArchiveBucket: &c.Archive.Bucket,
		FlagArchivePrefix: &c.Archive.Prefix,
	}
	for name, dst := range strs {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	durs := map[string]*time.Duration{
		FlagRequestTimeout:     &c.RequestTimeout,
		FlagRelayHeaderTimeout: &c.RelayHeaderTimeout,
		FlagArchiveTTL:         &c.Archive.TTL,
	}
	for name, dst := range durs {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetDuration(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	if fs.Changed(FlagRelayAllowedHosts) {
		hosts, err := fs.GetStringSlice(FlagRelayAllowedHosts)
		if err != nil {
			return err
		}
		c.RelayAllowedHosts = hosts
	}
	return nil
}
