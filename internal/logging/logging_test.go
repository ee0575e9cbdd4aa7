package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jordanharrington/visualgate/internal/volc"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestLogging(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Logging")
}

var _ = Describe("Setup", func() {
	var prev *slog.Logger

	BeforeEach(func() {
		prev = slog.Default()
		DeferCleanup(func() { slog.SetDefault(prev) })
	})

	It("writes json at the requested level", func() {
		var buf bytes.Buffer
		l, c, err := Setup(Options{Level: "warn", Format: "json", Writer: &buf})
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = c.Close() }()

		l.Info("dropped")
		l.Warn("kept", slog.String("k", "v"))
		Expect(buf.String()).NotTo(ContainSubstring("dropped"))
		Expect(buf.String()).To(ContainSubstring(`"msg":"kept"`))
		Expect(buf.String()).To(ContainSubstring(`"k":"v"`))
	})

	It("installs the logger as the default", func() {
		var buf bytes.Buffer
		_, _, err := Setup(Options{Level: "info", Writer: &buf})
		Expect(err).NotTo(HaveOccurred())
		slog.Info("via default")
		Expect(buf.String()).To(ContainSubstring("via default"))
	})

	It("never prints the secret key of logged credentials", func() {
		var buf bytes.Buffer
		l, _, err := Setup(Options{Level: "debug", Format: "json", Writer: &buf})
		Expect(err).NotTo(HaveOccurred())

		l.Info("signer ready", slog.Any("credentials", volc.Credentials{
			AccessKey: "AKIDEXAMPLE",
			SecretKey: "SECRETEXAMPLE",
			Region:    "cn-beijing",
			Service:   "cv",
			Host:      "visual.volcengineapi.com",
		}))
		Expect(buf.String()).NotTo(ContainSubstring("SECRETEXAMPLE"))
		Expect(buf.String()).NotTo(ContainSubstring("AKIDEXAMPLE"))
		Expect(buf.String()).To(ContainSubstring("****MPLE"))
	})

	It("rotates into a file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "logs", "gateway.log")
		l, c, err := Setup(Options{Level: "info", File: path})
		Expect(err).NotTo(HaveOccurred())
		l.Info("to file")
		Expect(c.Close()).To(Succeed())

		raw, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(ContainSubstring("to file"))
	})

	DescribeTable("rejects bad options",
		func(o Options) {
			_, _, err := Setup(o)
			Expect(err).To(HaveOccurred())
		},
		Entry("level", Options{Level: "loud"}),
		Entry("format", Options{Level: "info", Format: "xml"}),
	)
})
