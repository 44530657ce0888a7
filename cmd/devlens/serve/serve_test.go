package servecmder_test

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"
	"github.com/spf13/cobra"

	servecmder "github.com/devlens/gateway/cmd/devlens/serve"
	"github.com/devlens/gateway/pkg/config"
)

var _ = Describe("serve", func() {
	var (
		configDir string
		out       *gbytes.Buffer
	)

	BeforeEach(func() {
		configDir = GinkgoT().TempDir()
		out = gbytes.NewBuffer()
	})

	newRoot := func(args ...string) *cobra.Command {
		root := &cobra.Command{Use: "devlens", SilenceUsage: true, SilenceErrors: true}
		root.PersistentFlags().BoolP("debug", "d", false, "")
		root.PersistentFlags().String(config.ConfigDirFlag, "", "")
		root.AddCommand(servecmder.NewServeCmd())
		root.SetOut(out)
		root.SetErr(out)
		root.SetArgs(append([]string{"serve", "--config-dir", configDir}, args...))
		return root
	}

	freeAddr := func() string {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		addr := ln.Addr().String()
		Expect(ln.Close()).To(Succeed())
		return addr
	}

	start := func(args ...string) (string, context.CancelFunc, chan error) {
		addr := freeAddr()
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		root := newRoot(append([]string{"--listen", addr, "--upstream", "http://127.0.0.1:1"}, args...)...)
		go func() {
			done <- root.ExecuteContext(ctx)
		}()

		Eventually(func() int {
			resp, err := http.Get("http://" + addr + "/health")
			if err != nil {
				return 0
			}
			resp.Body.Close()
			return resp.StatusCode
		}).Should(Equal(http.StatusOK))

		return addr, cancel, done
	}

	It("serves until its context is cancelled", func() {
		_, cancel, done := start()
		Eventually(out).Should(gbytes.Say("starting gateway server"))

		cancel()
		Eventually(done).Should(Receive(BeNil()))
		Expect(out).To(gbytes.Say("shutting down gateway"))
	})

	It("relays to the upstream and answers 502 when it is down", func() {
		addr, cancel, done := start()
		defer func() {
			cancel()
			Eventually(done).Should(Receive(BeNil()))
		}()

		resp, err := http.Get("http://" + addr + "/api/v1/repos")
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
	})

	It("also writes JSON logs to a log file", func() {
		logFile := filepath.Join(configDir, "gateway.log")
		_, cancel, done := start("--log-file", logFile)

		cancel()
		Eventually(done).Should(Receive(BeNil()))

		data, err := os.ReadFile(logFile)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"msg":"starting gateway server"`))
	})

	It("publishes relay events when brokers are configured", func() {
		_, cancel, done := start("--kafka-brokers", "127.0.0.1:1", "--kafka-topic", "relays")
		Eventually(out).Should(gbytes.Say("publishing relay events"))

		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})

	It("discards relay events in debug mode without brokers", func() {
		addr, cancel, done := start("--debug")
		Eventually(out).Should(gbytes.Say("relay events discarded"))

		resp, err := http.Get("http://" + addr + "/api/v1/repos")
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Eventually(out).Should(gbytes.Say("relay event published"))

		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})

	It("reads settings from the config file", func() {
		Expect(os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(`[gateway]
api_prefix = "api"
`), 0o600)).To(Succeed())

		err := newRoot().Execute()
		Expect(err).To(MatchError(ContainSubstring("gateway.api_prefix")))
	})

	It("rejects an invalid upstream", func() {
		err := newRoot("--upstream", "localhost:8000").Execute()
		Expect(err).To(MatchError(ContainSubstring("invalid config")))
		Expect(err).To(MatchError(ContainSubstring("gateway.upstream")))
	})
})
