package mcp

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/callctx/pkg/logger"
)

var _ = Describe("MCP Server", func() {
	Describe("NewServer", func() {
		It("returns an error when the searcher is nil", func() {
			_, err := NewServer(Config{Logger: logger.Nop()})
			Expect(err).To(MatchError(ContainSubstring("searcher is required")))
		})

		It("returns an error when the logger is nil", func() {
			_, err := NewServer(Config{Searcher: &fakeSearcher{}})
			Expect(err).To(MatchError(ContainSubstring("logger is required")))
		})

		It("creates a server with valid config", func() {
			server, err := NewServer(Config{Searcher: &fakeSearcher{}, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())
			Expect(server.Handler()).NotTo(BeNil())
		})

		It("creates a noop server without a searcher", func() {
			server, err := NewServer(Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(server.Handler()).NotTo(BeNil())
		})
	})
})
