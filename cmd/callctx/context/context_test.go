package contextcmder_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	contextcmder "github.com/papercomputeco/callctx/cmd/callctx/context"
	"github.com/papercomputeco/callctx/pkg/retrieval"
)

func newRoot(out *bytes.Buffer) *cobra.Command {
	root := &cobra.Command{Use: "callctx"}
	root.PersistentFlags().BoolP("debug", "d", false, "")
	root.PersistentFlags().String("config-dir", "", "")
	root.AddCommand(contextcmder.NewContextCmd())
	root.SetOut(out)
	root.SetErr(out)
	return root
}

var _ = Describe("context command", func() {
	var (
		out       *bytes.Buffer
		configDir string
		got       retrieval.Request
		ts        *httptest.Server
	)

	BeforeEach(func() {
		out = &bytes.Buffer{}
		configDir = GinkgoT().TempDir()
		got = retrieval.Request{}

		ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/v1/context"))
			Expect(json.NewDecoder(r.Body).Decode(&got)).To(Succeed())

			_ = json.NewEncoder(w).Encode(retrieval.Result{
				Block: retrieval.Block{
					Text:          "PAST CONVERSATIONS:\n[Call 1] refund for order 1001\n",
					ItemsIncluded: 1,
					TokensUsed:    8,
				},
				Mode:   retrieval.ModeSemantic,
				Ranked: []retrieval.Ranked{{OwnerID: "call-1", Score: 0.91, Scored: true}},
			})
		}))
	})

	AfterEach(func() {
		ts.Close()
	})

	execute := func(args ...string) error {
		root := newRoot(out)
		root.SetArgs(append(args, "--config-dir", configDir, "--api-target", ts.URL))
		return root.Execute()
	}

	It("requires a scope", func() {
		Expect(execute("context", "refund")).To(MatchError(ContainSubstring("--scope")))
	})

	It("sends the query and configured limits to the server", func() {
		Expect(execute("context", "refund", "order", "--scope", "cust-1", "--top-k", "5", "--token-budget", "500", "--raw")).To(Succeed())
		Expect(got.Scope).To(Equal("cust-1"))
		Expect(got.Query).To(Equal("refund order"))
		Expect(got.TopK).To(Equal(5))
		Expect(got.TokenBudget).To(Equal(500))
		Expect(out.String()).To(Equal("PAST CONVERSATIONS:\n[Call 1] refund for order 1001\n"))
	})

	It("renders ranked items", func() {
		Expect(execute("context", "refund", "--scope", "cust-1")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("refund for order 1001"))
		Expect(out.String()).To(ContainSubstring("call-1"))
		Expect(out.String()).To(ContainSubstring("0.9100"))
	})

	It("prints JSON", func() {
		Expect(execute("context", "refund", "--scope", "cust-1", "--json")).To(Succeed())

		var res retrieval.Result
		Expect(json.Unmarshal(out.Bytes(), &res)).To(Succeed())
		Expect(res.Mode).To(Equal(retrieval.ModeSemantic))
		Expect(res.ItemsIncluded).To(Equal(1))
	})
})
