package cache_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/callctx/pkg/cache"
)

var _ = Describe("Key", func() {
	It("is deterministic", func() {
		Expect(cache.Key("embedding:", "bge", "hello world")).
			To(Equal(cache.Key("embedding:", "bge", "hello world")))
	})

	It("is prefixed with the namespace and a hex digest", func() {
		k := cache.Key("embedding:", "bge", "hello")
		Expect(k).To(HavePrefix("embedding:"))
		Expect(strings.TrimPrefix(k, "embedding:")).To(MatchRegexp(`^[0-9a-f]{64}$`))
	})

	It("differs per model", func() {
		Expect(cache.Key("embedding:", "bge", "hello")).
			NotTo(Equal(cache.Key("embedding:", "minilm", "hello")))
	})

	It("differs per text", func() {
		Expect(cache.Key("embedding:", "bge", "hello")).
			NotTo(Equal(cache.Key("embedding:", "bge", "hello!")))
	})

	It("ignores surrounding whitespace", func() {
		Expect(cache.Key("embedding:", "bge", "  hello\n")).
			To(Equal(cache.Key("embedding:", "bge", "hello")))
	})

	It("treats canonically equivalent unicode as the same text", func() {
		composed := "caf\u00e9"
		decomposed := "cafe\u0301"
		Expect(cache.Key("embedding:", "bge", composed)).
			To(Equal(cache.Key("embedding:", "bge", decomposed)))
	})

	It("does not let the model bleed into the text", func() {
		Expect(cache.Key("embedding:", "ab", "c")).
			NotTo(Equal(cache.Key("embedding:", "a", "bc")))
	})
})
