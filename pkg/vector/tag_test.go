package vector_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/callctx/pkg/vector"
)

var _ = Describe("Tag", func() {
	It("parses known tags", func() {
		t, err := vector.ParseTag("summary")
		Expect(err).NotTo(HaveOccurred())
		Expect(t).To(Equal(vector.TagSummary))
	})

	It("defaults to the full tag", func() {
		t, err := vector.ParseTag("")
		Expect(err).NotTo(HaveOccurred())
		Expect(t).To(Equal(vector.TagFull))
	})

	It("rejects unknown tags", func() {
		_, err := vector.ParseTag("title")
		Expect(err).To(MatchError(vector.ErrInvalidTag))
		Expect(vector.Tag("title").Valid()).To(BeFalse())
	})
})
