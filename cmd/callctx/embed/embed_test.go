package embedcmder_test

import (
	"bytes"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	embedcmder "github.com/papercomputeco/callctx/cmd/callctx/embed"
)

func newRoot(out *bytes.Buffer) *cobra.Command {
	root := &cobra.Command{Use: "callctx"}
	root.PersistentFlags().BoolP("debug", "d", false, "")
	root.PersistentFlags().String("config-dir", "", "")
	root.AddCommand(embedcmder.NewEmbedCmd())
	root.SetOut(out)
	root.SetErr(out)
	return root
}

var _ = Describe("embed command", func() {
	var (
		out       *bytes.Buffer
		configDir string
	)

	BeforeEach(func() {
		out = &bytes.Buffer{}
		configDir = GinkgoT().TempDir()
	})

	It("embeds with the CPU backend when no other backend is configured", func() {
		root := newRoot(out)
		root.SetArgs([]string{
			"embed", "customer", "wants", "a", "refund",
			"--config-dir", configDir,
			"--cache-target", "memory://",
			"--embedding-dimensions", "16",
			"--json",
		})
		Expect(root.Execute()).To(Succeed())

		var got struct {
			Dimensions int       `json:"dimensions"`
			Embedding  []float32 `json:"embedding"`
		}
		Expect(json.Unmarshal(out.Bytes(), &got)).To(Succeed())
		Expect(got.Dimensions).To(Equal(16))
		Expect(got.Embedding).To(HaveLen(16))
	})

	It("prints a preview and the backend that answered", func() {
		root := newRoot(out)
		root.SetArgs([]string{
			"embed", "hello",
			"--config-dir", configDir,
			"--cache-target", "",
			"--embedding-dimensions", "32",
		})
		Expect(root.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("dimensions"))
		Expect(out.String()).To(ContainSubstring("32"))
		Expect(out.String()).To(ContainSubstring("cpu"))
		Expect(out.String()).To(ContainSubstring("hello"))
	})

	It("requires text", func() {
		root := newRoot(out)
		root.SetArgs([]string{"embed", "--config-dir", configDir})
		Expect(root.Execute()).NotTo(Succeed())
	})
})
