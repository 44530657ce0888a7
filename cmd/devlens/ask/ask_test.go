package askcmder_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	"github.com/charmbracelet/x/ansi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	askcmder "github.com/devlens/gateway/cmd/devlens/ask"
	"github.com/devlens/gateway/pkg/apierror"
	"github.com/devlens/gateway/pkg/config"
)

const answerStream = "event: delta\ndata: {\"token\":\"Retries are \"}\n\n" +
	"event: delta\ndata: {\"token\":\"configured in `client.go`.\"}\n\n" +
	"event: done\ndata: {\"message_id\":\"m1\",\"citations\":[{\"chunk_id\":\"c1\",\"file_path\":\"pkg/stream/client.go\",\"line_start\":40,\"line_end\":52,\"anchor\":\"L40\",\"score\":0.91}],\"no_citation\":false}\n\n"

var _ = Describe("ask", func() {
	var (
		out       *bytes.Buffer
		configDir string
	)

	BeforeEach(func() {
		out = &bytes.Buffer{}
		configDir = GinkgoT().TempDir()
	})

	execute := func(args ...string) error {
		root := &cobra.Command{Use: "devlens", SilenceUsage: true, SilenceErrors: true}
		root.PersistentFlags().BoolP("debug", "d", false, "")
		root.PersistentFlags().String(config.ConfigDirFlag, "", "")
		root.AddCommand(askcmder.NewAskCmd())
		root.SetOut(out)
		root.SetErr(&bytes.Buffer{})
		root.SetArgs(append([]string{"ask", "--config-dir", configDir}, args...))
		return root.ExecuteContext(context.Background())
	}

	It("posts the question and streams the answer with its sources", func() {
		var (
			method atomic.Value
			path   atomic.Value
			body   atomic.Value
		)
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method.Store(r.Method)
			path.Store(r.URL.Path)
			data, _ := io.ReadAll(r.Body)
			body.Store(string(data))

			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, answerStream)
		}))
		defer upstream.Close()

		Expect(execute("s1", "Where", "are", "retries?", "--gateway", upstream.URL, "--top-k", "4")).To(Succeed())

		Expect(method.Load()).To(Equal(http.MethodPost))
		Expect(path.Load()).To(Equal("/api/v1/chat/sessions/s1/message"))
		var payload map[string]any
		Expect(json.Unmarshal([]byte(body.Load().(string)), &payload)).To(Succeed())
		Expect(payload).To(Equal(map[string]any{"content": "Where are retries?", "top_k": float64(4)}))

		printed := ansi.Strip(out.String())
		Expect(printed).To(HavePrefix("Retries are configured in `client.go`.\n"))
		Expect(printed).To(ContainSubstring("Sources"))
		Expect(printed).To(ContainSubstring("[1] pkg/stream/client.go:40-52 (score 0.91)"))
	})

	It("renders markdown when asked", func() {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, answerStream)
		}))
		defer upstream.Close()

		Expect(execute("s1", "Where are retries?", "--gateway", upstream.URL, "--markdown")).To(Succeed())

		printed := ansi.Strip(out.String())
		Expect(printed).To(ContainSubstring("Retries are configured in"))
		Expect(printed).To(ContainSubstring("[1] pkg/stream/client.go:40-52"))
	})

	It("says so when the answer cites nothing", func() {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "event: delta\ndata: {\"token\":\"I don't know.\"}\n\n")
			fmt.Fprint(w, "event: done\ndata: {\"message_id\":\"m2\",\"citations\":[],\"no_citation\":true}\n\n")
		}))
		defer upstream.Close()

		Expect(execute("s1", "What is love?", "--gateway", upstream.URL)).To(Succeed())
		Expect(ansi.Strip(out.String())).To(ContainSubstring("No sources cited."))
	})

	It("sends the question once and reports the failure", func() {
		var requests atomic.Int32
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			requests.Add(1)
			_ = apierror.Write(w, http.StatusNotFound, apierror.New(apierror.CodeNotFound, "Chat session not found."))
		}))
		defer upstream.Close()

		err := execute("missing", "hello", "--gateway", upstream.URL)
		Expect(err).To(MatchError(ContainSubstring("Chat session not found.")))
		Expect(requests.Load()).To(BeEquivalentTo(1))
	})

	It("rejects a blank question", func() {
		err := execute("s1", "   ", "--gateway", "http://localhost:3000")
		Expect(err).To(MatchError(ContainSubstring("must not be empty")))
	})
})
