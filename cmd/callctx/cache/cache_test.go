package cachecmder_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/callctx/api"
	cachecmder "github.com/papercomputeco/callctx/cmd/callctx/cache"
	embedcmder "github.com/papercomputeco/callctx/cmd/callctx/embed"
	"github.com/papercomputeco/callctx/pkg/embeddings/service"
)

func newRoot(out *bytes.Buffer) *cobra.Command {
	root := &cobra.Command{Use: "callctx"}
	root.PersistentFlags().BoolP("debug", "d", false, "")
	root.PersistentFlags().String("config-dir", "", "")
	root.AddCommand(cachecmder.NewCacheCmd())
	root.AddCommand(embedcmder.NewEmbedCmd())
	root.SetOut(out)
	root.SetErr(out)
	return root
}

var _ = Describe("cache command", func() {
	var (
		out       *bytes.Buffer
		configDir string
	)

	BeforeEach(func() {
		out = &bytes.Buffer{}
		configDir = GinkgoT().TempDir()
	})

	execute := func(args ...string) error {
		root := newRoot(out)
		root.SetArgs(append(args, "--config-dir", configDir))
		return root.Execute()
	}

	It("has stats and clear subcommands", func() {
		cmd := cachecmder.NewCacheCmd()
		names := []string{}
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ConsistOf("stats", "clear"))
	})

	It("reports and clears a local sqlite cache", func() {
		Expect(execute("embed", "refund request", "--cache-target", "sqlite", "--embedding-dimensions", "8")).To(Succeed())
		Expect(execute("embed", "billing question", "--cache-target", "sqlite", "--embedding-dimensions", "8")).To(Succeed())

		out.Reset()
		Expect(execute("cache", "stats", "--local", "--cache-target", "sqlite")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("sqlite"))
		Expect(out.String()).To(MatchRegexp(`keys\s+2`))

		out.Reset()
		Expect(execute("cache", "clear", "--local", "--cache-target", "sqlite")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Removed 2"))

		out.Reset()
		Expect(execute("cache", "stats", "--local", "--cache-target", "sqlite")).To(Succeed())
		Expect(out.String()).To(MatchRegexp(`keys\s+0`))
	})

	It("talks to a running server by default", func() {
		var clearedPrefix string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodGet && r.URL.Path == "/v1/stats":
				_ = json.NewEncoder(w).Encode(service.Stats{Model: "remote-model", TotalKeys: 7})
			case r.Method == http.MethodDelete && r.URL.Path == "/v1/cache":
				clearedPrefix = r.URL.Query().Get("prefix")
				_ = json.NewEncoder(w).Encode(api.ClearCacheResponse{Removed: 7})
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		defer ts.Close()

		Expect(execute("cache", "stats", "--api-target", ts.URL)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("remote-model"))

		out.Reset()
		Expect(execute("cache", "clear", "--prefix", "embedding:abc", "--api-target", ts.URL)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Removed 7"))
		Expect(clearedPrefix).To(Equal("embedding:abc"))
	})
})
