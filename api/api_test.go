package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/callctx/pkg/cache"
	"github.com/papercomputeco/callctx/pkg/embeddings"
	"github.com/papercomputeco/callctx/pkg/embeddings/chain"
	"github.com/papercomputeco/callctx/pkg/embeddings/service"
	"github.com/papercomputeco/callctx/pkg/ingest"
	"github.com/papercomputeco/callctx/pkg/lazy"
	"github.com/papercomputeco/callctx/pkg/logger"
	"github.com/papercomputeco/callctx/pkg/retrieval"
	testutils "github.com/papercomputeco/callctx/pkg/utils/test"
	"github.com/papercomputeco/callctx/pkg/vector"
)

type fakeIngester struct {
	mu   sync.Mutex
	jobs []ingest.Job
	full bool
}

func (f *fakeIngester) Enqueue(job ingest.Job) bool {
	if f.full {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return true
}

func doJSON(server *Server, method, path string, body any) (*http.Response, []byte) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, path, reader)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")

	resp, err := server.app.Test(req)
	Expect(err).NotTo(HaveOccurred())

	respBody, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp, respBody
}

var _ = Describe("API Server", func() {
	var (
		ctx      context.Context
		server   *Server
		embedder *testutils.MockBatchEmbedder
		backend  *testutils.MockCacheBackend
		store    *testutils.MockVectorStore
		ingester *fakeIngester
	)

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockBatchEmbedder()
		embedder.Embeddings["refund"] = embeddings.Vector{0, 1, 0}

		c, err := chain.New([]chain.Backend{{Name: "remote", Embedder: embedder}}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		backend = testutils.NewMockCacheBackend()
		cacheStore := cache.New("mock", lazy.New(func(context.Context) (cache.Backend, error) {
			return backend, nil
		}), cache.Options{}, logger.Nop())

		svc := service.New(service.Config{
			Encoder: c,
			Cache:   cacheStore,
			Model:   "test-model",
			Logger:  logger.Nop(),
		})

		store = testutils.NewMockVectorStore()
		ingester = &fakeIngester{}

		server, err = NewServer(Config{ListenAddr: ":0"}, Deps{
			Embeddings: svc,
			Ingester:   ingester,
			Retriever:  retrieval.NewRetriever(store, svc, retrieval.Options{}, logger.Nop()),
		}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires an embedding service", func() {
		_, err := NewServer(Config{}, Deps{}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("embedding service is required")))
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			resp, body := doJSON(server, http.MethodGet, "/ping", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(string(body)).To(Equal(`"pong"`))
		})
	})

	Describe("POST /v1/embeddings", func() {
		It("returns the embedding and caches it", func() {
			resp, body := doJSON(server, http.MethodPost, "/v1/embeddings", EmbedRequest{Text: "refund"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out EmbedResponse
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Embedding).To(Equal(embeddings.Vector{0, 1, 0}))
			Expect(out.Dimensions).To(Equal(3))
			Expect(out.Model).To(Equal("test-model"))
			Expect(backend.Keys()).To(HaveLen(1))
		})

		It("skips the cache when use_cache is false", func() {
			off := false
			resp, _ := doJSON(server, http.MethodPost, "/v1/embeddings", EmbedRequest{Text: "refund", UseCache: &off})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(backend.Keys()).To(BeEmpty())
		})

		It("rejects empty text", func() {
			resp, body := doJSON(server, http.MethodPost, "/v1/embeddings", EmbedRequest{})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(string(body)).To(ContainSubstring("text is required"))
		})

		It("returns 503 when every backend fails", func() {
			embedder.FailAll = true
			resp, _ := doJSON(server, http.MethodPost, "/v1/embeddings", EmbedRequest{Text: "refund"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
		})
	})

	Describe("POST /v1/embeddings/batch", func() {
		It("returns embeddings in input order", func() {
			embedder.Embeddings["a"] = embeddings.Vector{1, 0, 0}
			resp, body := doJSON(server, http.MethodPost, "/v1/embeddings/batch", EmbedBatchRequest{Texts: []string{"refund", "a"}})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out EmbedBatchResponse
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Count).To(Equal(2))
			Expect(out.Embeddings).To(Equal([]embeddings.Vector{{0, 1, 0}, {1, 0, 0}}))
		})
	})

	Describe("GET /v1/stats", func() {
		It("reports cache and backend health", func() {
			doJSON(server, http.MethodPost, "/v1/embeddings", EmbedRequest{Text: "refund"})

			resp, body := doJSON(server, http.MethodGet, "/v1/stats", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out service.Stats
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Model).To(Equal("test-model"))
			Expect(out.CacheEnabled).To(BeTrue())
			Expect(out.TotalKeys).To(Equal(int64(1)))
			Expect(out.Backends).To(HaveLen(1))
			Expect(out.Backends[0].Name).To(Equal("remote"))
			Expect(out.Backends[0].Successes).To(BeNumerically(">=", 1))
		})
	})

	Describe("DELETE /v1/cache", func() {
		It("clears the namespace and reports the count", func() {
			doJSON(server, http.MethodPost, "/v1/embeddings", EmbedRequest{Text: "refund"})

			resp, body := doJSON(server, http.MethodDelete, "/v1/cache", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out ClearCacheResponse
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Removed).To(Equal(int64(1)))
			Expect(backend.Keys()).To(BeEmpty())
		})
	})

	Describe("POST /v1/owners", func() {
		It("queues the owner and returns 202", func() {
			resp, body := doJSON(server, http.MethodPost, "/v1/owners", IngestRequest{
				OwnerID: "call-1",
				Scope:   "cust-1",
				Text:    "hello",
				Summary: "greeting",
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusAccepted))
			Expect(string(body)).To(ContainSubstring(`"status":"queued"`))

			Expect(ingester.jobs).To(HaveLen(1))
			Expect(ingester.jobs[0].Owner.ID).To(Equal("call-1"))
			Expect(ingester.jobs[0].Owner.Summary).To(Equal("greeting"))
			Expect(ingester.jobs[0].Owner.CreatedAt).NotTo(BeZero())
		})

		It("validates required fields", func() {
			resp, body := doJSON(server, http.MethodPost, "/v1/owners", IngestRequest{OwnerID: "call-1", Text: "hello"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(string(body)).To(ContainSubstring("scope is required"))
		})

		It("returns 503 when the queue is full", func() {
			ingester.full = true
			resp, _ := doJSON(server, http.MethodPost, "/v1/owners", IngestRequest{OwnerID: "o", Scope: "s", Text: "t"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
		})
	})

	Describe("POST /v1/context", func() {
		It("assembles a block for the scope", func() {
			owner := vector.Owner{ID: "call-1", Scope: "cust-1", Summary: "asked about a refund", CreatedAt: time.Now()}
			Expect(store.PutOwner(ctx, owner)).To(Succeed())

			resp, body := doJSON(server, http.MethodPost, "/v1/context", retrieval.Request{Scope: "cust-1", Query: "refund"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out retrieval.Result
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.ItemsIncluded).To(Equal(1))
			Expect(out.Text).To(ContainSubstring("asked about a refund"))
			Expect(out.Mode).To(Equal(retrieval.ModeRecency))
		})

		It("returns an empty block for an unknown scope", func() {
			resp, body := doJSON(server, http.MethodPost, "/v1/context", retrieval.Request{Scope: "nobody"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out retrieval.Result
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Text).To(BeEmpty())
			Expect(out.Mode).To(Equal(retrieval.ModeEmpty))
		})

		It("requires a scope", func() {
			resp, _ := doJSON(server, http.MethodPost, "/v1/context", retrieval.Request{Query: "refund"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})
})
