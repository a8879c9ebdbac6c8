package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/callctx/pkg/config"
	"github.com/papercomputeco/callctx/pkg/engine"
	"github.com/papercomputeco/callctx/pkg/ingest"
	"github.com/papercomputeco/callctx/pkg/logger"
	"github.com/papercomputeco/callctx/pkg/retrieval"
	"github.com/papercomputeco/callctx/pkg/vector"
)

var _ = Describe("Open", func() {
	var (
		ctx context.Context
		cfg *config.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = config.NewDefaultConfig()
		cfg.Cache.Target = "memory://"
		cfg.VectorStore.Provider = "memory"
		cfg.Embedding.Dimensions = 64
	})

	It("requires a config and a logger", func() {
		_, err := engine.Open(ctx, nil, engine.Options{}, logger.Nop())
		Expect(err).To(HaveOccurred())

		_, err = engine.Open(ctx, cfg, engine.Options{}, nil)
		Expect(err).To(HaveOccurred())
	})

	It("ingests an owner and retrieves it as context", func() {
		e, err := engine.Open(ctx, cfg, engine.Options{}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		defer e.Close()

		Expect(e.Cache.Enabled()).To(BeTrue())
		Expect(e.Publisher).To(BeNil())

		pool, err := e.NewIngestPool()
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()

		err = pool.Process(ctx, ingest.Job{Owner: vector.Owner{
			ID:        "call-1",
			Scope:     "cust-42",
			Text:      "the customer asked about a refund for order 1001",
			Summary:   "refund request for order 1001",
			CreatedAt: time.Now(),
		}})
		Expect(err).NotTo(HaveOccurred())

		res, err := e.Retriever.Retrieve(ctx, retrieval.Request{Scope: "cust-42", Query: "refund"})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.ItemsIncluded).To(Equal(1))
		Expect(res.Text).To(ContainSubstring("refund request for order 1001"))

		v, err := e.Embeddings.Generate(ctx, "refund", true)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(HaveLen(64))
	})

	It("places default sqlite databases in the config dir", func() {
		dir := GinkgoT().TempDir()
		cfg.Cache.Target = "sqlite"
		cfg.VectorStore.Provider = "sqlite"
		cfg.VectorStore.Target = ""

		e, err := engine.Open(ctx, cfg, engine.Options{ConfigDir: dir}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Embeddings.Generate(ctx, "warm the cache", true)
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Close()).To(Succeed())

		_, err = os.Stat(filepath.Join(dir, "vectors.db"))
		Expect(err).NotTo(HaveOccurred())
		_, err = os.Stat(filepath.Join(dir, "cache.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("creates a publisher only when asked and brokers are set", func() {
		cfg.Events.Brokers = "localhost:9092"

		e, err := engine.Open(ctx, cfg, engine.Options{}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Publisher).To(BeNil())
		Expect(e.Close()).To(Succeed())

		e, err = engine.Open(ctx, cfg, engine.Options{WithPublisher: true}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Publisher).NotTo(BeNil())
		Expect(e.Close()).To(Succeed())
	})
})

var _ = Describe("SplitBrokers", func() {
	It("drops blanks and whitespace", func() {
		Expect(engine.SplitBrokers(" a:9092, ,b:9092 ")).To(Equal([]string{"a:9092", "b:9092"}))
		Expect(engine.SplitBrokers("")).To(BeEmpty())
	})
})
