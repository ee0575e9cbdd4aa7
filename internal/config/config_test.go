package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jordanharrington/visualgate/internal/config"
	"github.com/jordanharrington/visualgate/internal/volc"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/pflag"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config")
}

func env(vals map[string]string) config.LookupFunc {
	return func(k string) (string, bool) {
		v, ok := vals[k]
		return v, ok
	}
}

func writeFile(dir, body string) string {
	p := filepath.Join(dir, "config.yaml")
	Expect(os.WriteFile(p, []byte(body), 0o600)).To(Succeed())
	return p
}

var creds = map[string]string{
	config.EnvAccessKey: "AKIDEXAMPLE",
	config.EnvSecretKey: "SECRETEXAMPLE",
}

var _ = Describe("Load", func() {
	It("applies defaults when only credentials are given", func() {
		cfg, err := config.Load("", env(creds), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Addr).To(Equal(":5000"))
		Expect(cfg.Volc.Region).To(Equal(volc.DefaultRegion))
		Expect(cfg.Volc.Service).To(Equal(volc.DefaultService))
		Expect(cfg.Volc.Host).To(Equal(volc.DefaultHost))
		Expect(cfg.Volc.Scheme).To(Equal("https"))
		Expect(cfg.RequestTimeout).To(Equal(60 * time.Second))
		Expect(cfg.Archive.Enabled()).To(BeFalse())
		Expect(cfg.RelayAllowedHosts).To(BeEmpty())
	})

	It("fails eagerly without credentials", func() {
		_, err := config.Load("", env(nil), nil)
		var ce *volc.ConfigurationError
		Expect(errors.As(err, &ce)).To(BeTrue())
		Expect(ce.Field).To(Equal("access key"))

		_, err = config.Load("", env(map[string]string{config.EnvAccessKey: "AK"}), nil)
		Expect(errors.As(err, &ce)).To(BeTrue())
		Expect(ce.Field).To(Equal("secret key"))
	})

	It("ignores a missing file", func() {
		_, err := config.Load(filepath.Join(GinkgoT().TempDir(), "absent.yaml"), env(creds), nil)
		Expect(err).NotTo(HaveOccurred())
	})

	It("layers file < env < flags", func() {
		path := writeFile(GinkgoT().TempDir(), `
addr: ":7000"
log-level: debug
volc:
  access-key: FILEKEY
  secret-key: FILESECRET
  region: cn-shanghai
request-timeout: 15s
relay-allowed-hosts: [" CDN.example ", "cdn.example"]
archive:
  bucket: media
  prefix: out
  ttl: 2m
`)
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		config.RegisterFlags(fs)
		Expect(fs.Parse([]string{"--addr", ":9000", "--archive-ttl", "3m"})).To(Succeed())

		cfg, err := config.Load(path, env(map[string]string{
			config.EnvAccessKey: "ENVKEY",
			config.EnvLogLevel:  "WARN",
		}), fs)
		Expect(err).NotTo(HaveOccurred())

		Expect(cfg.Volc.AccessKey).To(Equal("ENVKEY"))
		Expect(cfg.Volc.SecretKey).To(Equal("FILESECRET"))
		Expect(cfg.Volc.Region).To(Equal("cn-shanghai"))
		Expect(cfg.Volc.Host).To(Equal(volc.DefaultHost))
		Expect(cfg.LogLevel).To(Equal("warn"))
		Expect(cfg.Addr).To(Equal(":9000"))
		Expect(cfg.RequestTimeout).To(Equal(15 * time.Second))
		Expect(cfg.RelayAllowedHosts).To(Equal([]string{"cdn.example"}))
		Expect(cfg.Archive.Bucket).To(Equal("media"))
		Expect(cfg.Archive.Prefix).To(Equal("out/"))
		Expect(cfg.Archive.TTL).To(Equal(3 * time.Minute))
	})

	It("leaves unset flags alone", func() {
		path := writeFile(GinkgoT().TempDir(), "addr: \":7000\"\n")
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		config.RegisterFlags(fs)
		Expect(fs.Parse(nil)).To(Succeed())

		cfg, err := config.Load(path, env(creds), fs)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Addr).To(Equal(":7000"))
	})

	It("reports malformed yaml", func() {
		path := writeFile(GinkgoT().TempDir(), "addr: [unterminated\n")
		_, err := config.Load(path, env(creds), nil)
		Expect(err).To(MatchError(ContainSubstring("parse config")))
	})

	It("reports a malformed timeout in the environment", func() {
		vals := map[string]string{config.EnvRequestTimeout: "soon"}
		for k, v := range creds {
			vals[k] = v
		}
		_, err := config.Load("", env(vals), nil)
		Expect(err).To(MatchError(ContainSubstring(config.EnvRequestTimeout)))
	})
})

var _ = Describe("Validate", func() {
	valid := func() config.Config {
		c := config.Default()
		c.Volc.AccessKey = "AK"
		c.Volc.SecretKey = "SK"
		return c
	}

	DescribeTable("rejects bad settings",
		func(mutate func(*config.Config), substr string) {
			c := valid()
			mutate(&c)
			Expect(c.Validate()).To(MatchError(ContainSubstring(substr)))
		},
		Entry("scheme", func(c *config.Config) { c.Volc.Scheme = "ftp" }, "scheme"),
		Entry("log level", func(c *config.Config) { c.LogLevel = "verbose" }, "log level"),
		Entry("log format", func(c *config.Config) { c.LogFormat = "xml" }, "log format"),
		Entry("timeout", func(c *config.Config) { c.RequestTimeout = 0 }, "request timeout"),
		Entry("empty addr", func(c *config.Config) { c.Addr = " " }, "addr"),
		Entry("archive ttl too short", func(c *config.Config) {
			c.Archive.Bucket = "b"
			c.Archive.TTL = time.Second
		}, "archive ttl"),
		Entry("missing host", func(c *config.Config) { c.Volc.Host = "" }, "host"),
	)

	It("accepts the defaults once credentials are set", func() {
		c := valid()
		Expect(c.Validate()).To(Succeed())
	})
})
