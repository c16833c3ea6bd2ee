package internal_test

import (
	"strings"
	"time"

	"github.com/frahmantamala/thesis-repository/internal"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	var cfg *internal.Config

	BeforeEach(func() {
		cfg = &internal.Config{
			Server:   internal.ServerConfig{AllowedOrigins: "https://a.example.edu, https://b.example.edu ,"},
			Database: internal.DatabaseConfig{Source: "postgres://localhost/thesis"},
			Security: internal.SecurityConfig{
				AccessTokenSecret:  strings.Repeat("a", 32),
				RefreshTokenSecret: strings.Repeat("r", 32),
			},
		}
		cfg.ApplyDefaults()
	})

	It("fills the documented defaults", func() {
		Expect(cfg.Server.Port).To(Equal(8080))
		Expect(cfg.Password.HistoryLimit).To(Equal(5))
		Expect(cfg.Password.ExpiryDays).To(Equal(30))
		Expect(cfg.Security.AccessTokenDuration).To(Equal(time.Hour))
		Expect(cfg.Storage.MediaRoot).To(Equal("media"))
		Expect(cfg.Pagination.PageSize).To(Equal(10))
		Expect(cfg.Observability.Metrics.Path).To(Equal("/metrics"))
	})

	It("accepts a complete config", func() {
		Expect(cfg.Validate()).To(Succeed())
	})

	It("splits allowed origins", func() {
		Expect(cfg.Server.Origins()).To(Equal([]string{"https://a.example.edu", "https://b.example.edu"}))
	})

	DescribeTable("rejects",
		func(mutate func(c *internal.Config), fragment string) {
			mutate(cfg)
			err := cfg.Validate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring(fragment))
		},
		Entry("short secrets", func(c *internal.Config) { c.Security.AccessTokenSecret = "short" }, "AccessTokenSecret"),
		Entry("shared secrets", func(c *internal.Config) { c.Security.RefreshTokenSecret = c.Security.AccessTokenSecret }, "must differ"),
		Entry("refresh shorter than access", func(c *internal.Config) { c.Security.RefreshTokenDuration = 2 * time.Hour; c.Security.AccessTokenDuration = 3 * time.Hour }, "must exceed"),
		Entry("missing database", func(c *internal.Config) { c.Database.Source = "" }, "Source"),
		Entry("idle above open", func(c *internal.Config) { c.Database.MaxIdleConns = 50 }, "max_idle_conns"),
		Entry("unknown log level", func(c *internal.Config) { c.Observability.Logging.Level = "verbose" }, "Level"),
	)
})
