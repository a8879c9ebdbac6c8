package cacheutils_test

import (
	"context"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/callctx/pkg/cache"
	cacheutils "github.com/papercomputeco/callctx/pkg/cache/utils"
	"github.com/papercomputeco/callctx/pkg/embeddings"
	"github.com/papercomputeco/callctx/pkg/logger"
)

var _ = Describe("NewStore", func() {
	ctx := context.Background()

	It("returns a disabled store for an empty target", func() {
		s, err := cacheutils.NewStore(&cacheutils.NewStoreOpts{Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Enabled()).To(BeFalse())
		Expect(s.Stats(ctx).Health).To(Equal(cache.HealthDisabled))
	})

	DescribeTable("selects the backend from the target scheme",
		func(target, backend string) {
			s, err := cacheutils.NewStore(&cacheutils.NewStoreOpts{Target: target, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			Expect(s.Set(ctx, "embedding:k", embeddings.Vector{1}, 0)).To(BeTrue())
			st := s.Stats(ctx)
			Expect(st.Backend).To(Equal(backend))
			Expect(st.Health).To(Equal(cache.HealthOK))
			Expect(st.TotalKeys).To(Equal(int64(1)))
		},
		Entry("memory", "memory://", "memory"),
		Entry("sqlite", "sqlite://:memory:", "sqlite"),
	)

	It("opens redis targets", func() {
		mr, err := miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(mr.Close)

		s, err := cacheutils.NewStore(&cacheutils.NewStoreOpts{Target: "redis://" + mr.Addr(), Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		Expect(s.Set(ctx, s.Key("test-model", "refund"), embeddings.Vector{1, 2}, 0)).To(BeTrue())
		Expect(mr.Keys()).To(HaveLen(1))
		Expect(mr.TTL(mr.Keys()[0])).To(Equal(cache.DefaultTTL))

		st := s.Stats(ctx)
		Expect(st.Backend).To(Equal("redis"))
		Expect(st.Health).To(Equal(cache.HealthOK))
		Expect(st.TotalKeys).To(Equal(int64(1)))
		Expect(s.ClearNamespace(ctx, "")).To(Equal(int64(1)))
	})

	It("degrades to misses when redis is unreachable", func() {
		mr, err := miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		addr := mr.Addr()
		mr.Close()

		s, err := cacheutils.NewStore(&cacheutils.NewStoreOpts{Target: "redis://" + addr, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		_, ok := s.Get(ctx, "embedding:k")
		Expect(ok).To(BeFalse())
		Expect(s.Set(ctx, "embedding:k", embeddings.Vector{1}, 0)).To(BeFalse())
		Expect(s.Stats(ctx).Health).To(Equal(cache.HealthUnavailable))
	})

	It("rejects unknown schemes", func() {
		_, err := cacheutils.NewStore(&cacheutils.NewStoreOpts{Target: "mongodb://localhost", Logger: logger.Nop()})
		Expect(err).To(HaveOccurred())
	})
})
