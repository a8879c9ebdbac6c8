package vectorutils_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/callctx/pkg/logger"
	"github.com/papercomputeco/callctx/pkg/vector/inmemory"
	"github.com/papercomputeco/callctx/pkg/vector/sqlstore"
	vectorutils "github.com/papercomputeco/callctx/pkg/vector/utils"
)

var _ = Describe("NewVectorStore", func() {
	ctx := context.Background()

	It("defaults to the in-memory store", func() {
		s, err := vectorutils.NewVectorStore(ctx, &vectorutils.NewVectorStoreOpts{Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(BeAssignableToTypeOf(&inmemory.Driver{}))
	})

	It("opens sqlite stores", func() {
		s, err := vectorutils.NewVectorStore(ctx, &vectorutils.NewVectorStoreOpts{
			ProviderType: "sqlite",
			Target:       "sqlite://:memory:",
			Logger:       logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()
		Expect(s).To(BeAssignableToTypeOf(&sqlstore.Driver{}))
	})

	It("rejects unknown providers", func() {
		_, err := vectorutils.NewVectorStore(ctx, &vectorutils.NewVectorStoreOpts{
			ProviderType: "chroma",
			Logger:       logger.Nop(),
		})
		Expect(err).To(MatchError(ContainSubstring("unsupported vector store provider")))
	})
})
