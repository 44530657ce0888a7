package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	configcmder "github.com/devlens/gateway/cmd/devlens/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		cmds := cmd.Commands()
		subcommands := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir  string
		origDir string
		out     *bytes.Buffer
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "devlens-config-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		// Create a local .devlens dir so the manager picks it up
		err = os.MkdirAll(filepath.Join(tmpDir, ".devlens"), 0o755)
		Expect(err).NotTo(HaveOccurred())

		err = os.Chdir(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		if home, ok := os.LookupEnv("DEVLENS_HOME"); ok {
			Expect(os.Unsetenv("DEVLENS_HOME")).To(Succeed())
			DeferCleanup(os.Setenv, "DEVLENS_HOME", home)
		}

		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		err := os.Chdir(origDir)
		Expect(err).NotTo(HaveOccurred())
		os.RemoveAll(tmpDir)
	})

	run := func(args ...string) error {
		cmd := configcmder.NewConfigCmd()
		cmd.SetOut(out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	Describe("set subcommand", func() {
		It("sets a config value successfully", func() {
			Expect(run("set", "gateway.upstream", "https://api.devlens.dev")).To(Succeed())

			data, err := os.ReadFile(filepath.Join(tmpDir, ".devlens", "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`upstream = "https://api.devlens.dev"`))
			Expect(out.String()).To(ContainSubstring("gateway.upstream"))
			Expect(out.String()).To(ContainSubstring("(from local)"))
		})

		It("rejects unknown keys", func() {
			err := run("set", "proxy.provider", "value")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("rejects malformed values", func() {
			err := run("set", "stream.max_retries", "lots")
			Expect(err).To(MatchError(ContainSubstring("invalid value for stream.max_retries")))
		})

		It("requires exactly two arguments", func() {
			Expect(run("set", "gateway.upstream")).To(HaveOccurred())
		})
	})

	Describe("get subcommand", func() {
		It("prints a value previously set", func() {
			Expect(run("set", "stream.base_delay", "2s")).To(Succeed())
			out.Reset()

			Expect(run("get", "stream.base_delay")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("2s"))
		})

		It("prints <not set> for empty values", func() {
			Expect(run("get", "client.token")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("<not set>"))
		})

		It("rejects unknown keys", func() {
			Expect(run("get", "nope")).To(HaveOccurred())
		})
	})

	Describe("list subcommand", func() {
		It("lists every key with defaults filled in", func() {
			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring(`gateway.listen           = ":3000"`))
			Expect(out.String()).To(ContainSubstring(`stream.max_retries       = "5"`))
			Expect(out.String()).To(ContainSubstring("client.token             = <not set>"))
		})
	})
})
