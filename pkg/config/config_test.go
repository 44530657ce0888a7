package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/devlens/gateway/pkg/config"
)

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	writeConfig := func(data string) {
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())
	}

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads a valid config file", func() {
			writeConfig(`version = 0

[gateway]
upstream = "https://api.devlens.dev"
upstream_timeout = "10s"

[stream]
max_retries = 3
base_delay = "250ms"

[events]
kafka_brokers = ["kafka-1:9092", "kafka-2:9092"]
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Gateway.Upstream).To(Equal("https://api.devlens.dev"))
			Expect(cfg.Gateway.UpstreamTimeout).To(Equal(10 * time.Second))
			Expect(cfg.Stream.MaxRetries).To(Equal(3))
			Expect(cfg.Stream.BaseDelay).To(Equal(250 * time.Millisecond))
			Expect(cfg.Events.KafkaBrokers).To(Equal([]string{"kafka-1:9092", "kafka-2:9092"}))
		})

		It("fills unset fields with defaults", func() {
			writeConfig(`[gateway]
listen = ":4000"
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())

			defaults := config.NewDefaultConfig()
			Expect(cfg.Gateway.Listen).To(Equal(":4000"))
			Expect(cfg.Gateway.Upstream).To(Equal(defaults.Gateway.Upstream))
			Expect(cfg.Gateway.APIPrefix).To(Equal(defaults.Gateway.APIPrefix))
			Expect(cfg.Stream.MaxRetries).To(Equal(defaults.Stream.MaxRetries))
			Expect(cfg.Stream.BaseDelay).To(Equal(defaults.Stream.BaseDelay))
			Expect(cfg.Client.GatewayTarget).To(Equal(defaults.Client.GatewayTarget))
		})

		It("rejects an unsupported version", func() {
			writeConfig("version = 7\n")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("unsupported config version 7")))
		})

		It("rejects malformed TOML", func() {
			writeConfig("[gateway\n")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("parsing config TOML")))
		})
	})

	Describe("SaveConfig", func() {
		It("writes a file that loads back identically", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.Gateway.Upstream = "https://api.devlens.dev"
			cfg.Client.Token = "secret"
			cfg.Events.KafkaBrokers = []string{"kafka:9092"}
			Expect(c.SaveConfig(cfg)).To(Succeed())

			info, err := os.Stat(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})

		It("rejects a nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(nil)).To(MatchError("cannot save nil config"))
		})
	})

	Describe("SetConfigValue and GetConfigValue", func() {
		var c *config.Configer

		BeforeEach(func() {
			var err error
			c, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		DescribeTable("round-trips every kind of key",
			func(key, value string) {
				Expect(c.SetConfigValue(key, value)).To(Succeed())

				got, err := c.GetConfigValue(key)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(value))
			},
			Entry("string", "gateway.upstream", "https://api.devlens.dev"),
			Entry("int", "stream.max_retries", "7"),
			Entry("duration", "stream.base_delay", "2s"),
			Entry("bool", "log.json", "true"),
			Entry("list", "events.kafka_brokers", "a:9092,b:9092"),
		)

		It("keeps other keys when setting one", func() {
			Expect(c.SetConfigValue("gateway.listen", ":4000")).To(Succeed())
			Expect(c.SetConfigValue("client.token", "t0k")).To(Succeed())

			listen, err := c.GetConfigValue("gateway.listen")
			Expect(err).NotTo(HaveOccurred())
			Expect(listen).To(Equal(":4000"))
		})

		It("returns defaults for keys never set", func() {
			got, err := c.GetConfigValue("gateway.api_prefix")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal("/api/"))
		})

		It("rejects unknown keys", func() {
			Expect(c.SetConfigValue("proxy.listen", ":1")).To(MatchError(ContainSubstring("unknown config key")))
			_, err := c.GetConfigValue("nope")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})

		DescribeTable("rejects malformed values",
			func(key, value string) {
				Expect(c.SetConfigValue(key, value)).To(MatchError(ContainSubstring("invalid value for " + key)))
			},
			Entry("int", "stream.max_retries", "many"),
			Entry("duration", "stream.base_delay", "soon"),
			Entry("bool", "log.debug", "maybe"),
		)
	})

	Describe("ValidConfigKeys", func() {
		It("lists every key exactly once in section order", func() {
			keys := config.ValidConfigKeys()
			Expect(keys[0]).To(Equal("gateway.listen"))
			Expect(keys).To(ContainElements("stream.max_retries", "client.gateway_target", "events.kafka_topic"))
			for _, k := range keys {
				Expect(config.IsValidConfigKey(k)).To(BeTrue(), k)
			}
			Expect(config.IsValidConfigKey("storage.sqlite_path")).To(BeFalse())
		})
	})
})

var _ = Describe("Config", func() {
	var cfg *config.Config

	BeforeEach(func() {
		cfg = config.NewDefaultConfig()
	})

	Describe("Validate", func() {
		It("accepts the defaults", func() {
			Expect(cfg.Validate()).To(Succeed())
		})

		DescribeTable("rejects invalid values",
			func(mutate func(*config.Config), msg string) {
				mutate(cfg)
				Expect(cfg.Validate()).To(MatchError(ContainSubstring(msg)))
			},
			Entry("relative upstream", func(c *config.Config) { c.Gateway.Upstream = "localhost:8000" }, "gateway.upstream"),
			Entry("non-http upstream", func(c *config.Config) { c.Gateway.Upstream = "ws://localhost" }, "gateway.upstream"),
			Entry("port out of range", func(c *config.Config) { c.Gateway.Port = "70000" }, "between 1 and 65535"),
			Entry("port zero", func(c *config.Config) { c.Gateway.Listen = ":0" }, "between 1 and 65535"),
			Entry("non-numeric port", func(c *config.Config) { c.Gateway.Port = "http" }, "between 1 and 65535"),
			Entry("listen without port", func(c *config.Config) { c.Gateway.Listen = "localhost" }, "gateway.listen"),
			Entry("prefix without trailing slash", func(c *config.Config) { c.Gateway.APIPrefix = "/api" }, "gateway.api_prefix"),
			Entry("negative retries", func(c *config.Config) { c.Stream.MaxRetries = -1 }, "stream.max_retries"),
			Entry("zero base delay", func(c *config.Config) { c.Stream.BaseDelay = 0 }, "stream.base_delay"),
			Entry("two log formats", func(c *config.Config) { c.Log.JSON, c.Log.Pretty = true, true }, "mutually exclusive"),
		)

		It("reports every problem at once", func() {
			cfg.Gateway.Upstream = ""
			cfg.Stream.BaseDelay = 0
			err := cfg.Validate()
			Expect(err).To(MatchError(ContainSubstring("gateway.upstream")))
			Expect(err).To(MatchError(ContainSubstring("stream.base_delay")))
		})
	})

	Describe("ValidateClient", func() {
		It("requires an absolute gateway target", func() {
			Expect(cfg.ValidateClient()).To(Succeed())
			cfg.Client.GatewayTarget = "gateway"
			Expect(cfg.ValidateClient()).To(MatchError(ContainSubstring("client.gateway_target")))
		})
	})

	Describe("ListenAddr", func() {
		It("returns listen when no port override is set", func() {
			Expect(cfg.ListenAddr()).To(Equal(":3000"))
		})

		It("replaces the port of listen", func() {
			cfg.Gateway.Listen = "127.0.0.1:3000"
			cfg.Gateway.Port = "4100"
			Expect(cfg.ListenAddr()).To(Equal("127.0.0.1:4100"))
		})
	})
})

var _ = Describe("ParseConfigTOML", func() {
	It("parses sections", func() {
		cfg, err := config.ParseConfigTOML([]byte(`[client]
gateway_target = "http://gw:3000"
token = "abc"

[log]
pretty = true
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Client.GatewayTarget).To(Equal("http://gw:3000"))
		Expect(cfg.Client.Token).To(Equal("abc"))
		Expect(cfg.Log.Pretty).To(BeTrue())
	})

	It("leaves unset fields zero", func() {
		cfg, err := config.ParseConfigTOML([]byte(""))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Gateway.Listen).To(BeEmpty())
	})
})
