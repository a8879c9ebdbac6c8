package client_test

import (
	"context"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/callctx/api"
	"github.com/papercomputeco/callctx/api/client"
	"github.com/papercomputeco/callctx/pkg/embeddings"
	"github.com/papercomputeco/callctx/pkg/embeddings/chain"
	"github.com/papercomputeco/callctx/pkg/embeddings/service"
	"github.com/papercomputeco/callctx/pkg/ingest"
	"github.com/papercomputeco/callctx/pkg/logger"
	"github.com/papercomputeco/callctx/pkg/retrieval"
	testutils "github.com/papercomputeco/callctx/pkg/utils/test"
	"github.com/papercomputeco/callctx/pkg/vector"
	"github.com/papercomputeco/callctx/pkg/vector/inmemory"
)

type recordingIngester struct {
	mu   sync.Mutex
	jobs []ingest.Job
	full bool
}

func (r *recordingIngester) Enqueue(job ingest.Job) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return false
	}
	r.jobs = append(r.jobs, job)
	return true
}

var _ = Describe("Client", func() {
	var (
		ctx      context.Context
		ts       *httptest.Server
		c        *client.Client
		store    *inmemory.Driver
		ingester *recordingIngester
	)

	BeforeEach(func() {
		ctx = context.Background()

		embedder := testutils.NewMockBatchEmbedder()
		embedder.Embeddings["refund"] = embeddings.Vector{0, 1, 0}
		ch, err := chain.New([]chain.Backend{{Name: "cpu", Embedder: embedder}}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		svc := service.New(service.Config{Encoder: ch, Model: "test-model", Logger: logger.Nop()})
		store = inmemory.NewDriver()
		ingester = &recordingIngester{}

		server, err := api.NewServer(api.Config{}, api.Deps{
			Embeddings: svc,
			Ingester:   ingester,
			Retriever:  retrieval.NewRetriever(store, svc, retrieval.Options{}, logger.Nop()),
		}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		ts = httptest.NewServer(server.Handler())
		c, err = client.New(ts.URL)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		ts.Close()
	})

	It("rejects targets without a scheme or host", func() {
		_, err := client.New("localhost")
		Expect(err).To(HaveOccurred())
	})

	It("embeds text", func() {
		res, err := c.Embed(ctx, api.EmbedRequest{Text: "refund"})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Embedding).To(Equal(embeddings.Vector{0, 1, 0}))
		Expect(res.Model).To(Equal("test-model"))
	})

	It("reports stats and clears the cache", func() {
		stats, err := c.Stats(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Model).To(Equal("test-model"))
		Expect(stats.Backends).To(HaveLen(1))

		removed, err := c.ClearCache(ctx, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(removed).To(BeZero())
	})

	It("queues owners", func() {
		res, err := c.Ingest(ctx, api.IngestRequest{OwnerID: "call-1", Scope: "cust-1", Text: "hello"})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Status).To(Equal("queued"))
		Expect(ingester.jobs).To(HaveLen(1))
		Expect(ingester.jobs[0].Owner.ID).To(Equal("call-1"))
	})

	It("surfaces API errors with their status", func() {
		_, err := c.Ingest(ctx, api.IngestRequest{OwnerID: "call-1", Text: "hello"})
		Expect(err).To(MatchError(ContainSubstring("scope is required")))
		Expect(client.IsUnavailable(err)).To(BeFalse())

		ingester.full = true
		_, err = c.Ingest(ctx, api.IngestRequest{OwnerID: "call-2", Scope: "cust-1", Text: "hello"})
		Expect(client.IsUnavailable(err)).To(BeTrue())
	})

	It("retrieves assembled context", func() {
		Expect(store.PutOwner(ctx, vector.Owner{
			ID:        "call-1",
			Scope:     "cust-1",
			Text:      "customer wants a refund",
			Summary:   "refund requested",
			CreatedAt: time.Now(),
		})).To(Succeed())
		Expect(store.StoreVector(ctx, "call-1", embeddings.Vector{0, 1, 0}, vector.TagFull)).To(Succeed())

		res, err := c.Context(ctx, retrieval.Request{Scope: "cust-1", Query: "refund"})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.ItemsIncluded).To(Equal(1))
		Expect(res.Text).To(ContainSubstring("refund requested"))
	})
})
