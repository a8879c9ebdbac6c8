// Package ingest provides an asynchronous worker pool that registers owners in
// the vector store and embeds their text and summary.
//
// The pool keeps embedding generation off the HTTP request path: the API
// enqueues a Job and answers immediately.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/callctx/pkg/embeddings"
	"github.com/papercomputeco/callctx/pkg/eventstream"
	"github.com/papercomputeco/callctx/pkg/textutil"
	"github.com/papercomputeco/callctx/pkg/vector"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// ErrEmptyText is returned for owners without text to embed.
var ErrEmptyText = errors.New("owner has no text")

// BatchGenerator generates embeddings for several texts at once.
type BatchGenerator interface {
	EmbedBatch(ctx context.Context, texts []string, useCache bool) ([]embeddings.Embedding, error)
}

// Job is a unit of work for the worker pool.
type Job struct {
	Owner vector.Owner
}

// Config is the configuration for the worker pool.
type Config struct {
	// Store persists owners and their vectors.
	Store vector.Store

	// Generator embeds owner text and summaries.
	Generator BatchGenerator

	// Publisher is optional. When set, a vector-stored event is published
	// after each owner's vectors are written.
	Publisher eventstream.Publisher

	// Model is recorded on published events.
	Model string

	// NumWorkers is the number of background workers (defaults to 3).
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// ChunkWords and ChunkOverlap split long texts into overlapping word
	// windows (defaults 500 and 100). The full vector of a chunked text is the
	// normalized mean of its chunk vectors.
	ChunkWords   int
	ChunkOverlap int

	Logger *slog.Logger
}

// Pool processes ingest jobs asynchronously.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewPool creates a pool and starts its workers.
func NewPool(c *Config) (*Pool, error) {
	if c.Store == nil {
		return nil, errors.New("vector store is required")
	}
	if c.Generator == nil {
		return nil, errors.New("embedding generator is required")
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}
	if c.ChunkWords <= 0 {
		c.ChunkWords = textutil.DefaultChunkSize
	}
	if c.ChunkOverlap <= 0 {
		c.ChunkOverlap = textutil.DefaultChunkOverlap
	}
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	p := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.worker(i)
	}
	return p, nil
}

// Enqueue submits a job. It returns false, dropping the job, when the queue
// is full.
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("ingest job queued", "owner_id", job.Owner.ID, "scope", job.Owner.Scope)
		return true
	default:
		p.logger.Error("ingest job not queued, queue full, job dropped",
			"owner_id", job.Owner.ID,
			"scope", job.Owner.Scope,
		)
		return false
	}
}

// Close stops accepting jobs and waits for in-flight jobs to drain.
// Call it after the HTTP server has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("ingest worker started", "worker_id", id)

	for job := range p.queue {
		if err := p.Process(context.Background(), job); err != nil {
			p.logger.Error("ingest failed", "owner_id", job.Owner.ID, "error", err)
		}
	}

	p.logger.Debug("ingest worker stopped", "worker_id", id)
}

// Process runs one job synchronously: it registers the owner, embeds the
// text and summary in one batch, stores both vectors and publishes an event.
// Text longer than one chunk is embedded chunk by chunk and the full vector is
// the normalized mean of the chunk vectors. Vectors from a fallback model are
// not stored, which leaves the owner retrievable by recency only. Publishing
// failures are logged and do not fail the job.
func (p *Pool) Process(ctx context.Context, job Job) error {
	owner := job.Owner
	if owner.Text == "" {
		return fmt.Errorf("%w: %s", ErrEmptyText, owner.ID)
	}

	if err := p.config.Store.PutOwner(ctx, owner); err != nil {
		return fmt.Errorf("registering owner: %w", err)
	}

	texts := textutil.Chunk(owner.Text, p.config.ChunkWords, p.config.ChunkOverlap)
	if len(texts) == 1 {
		texts[0] = owner.Text
	}
	chunks := len(texts)
	if owner.Summary != "" {
		texts = append(texts, owner.Summary)
	}

	es, err := p.config.Generator.EmbedBatch(ctx, texts, true)
	if err != nil {
		return fmt.Errorf("embedding owner %s: %w", owner.ID, err)
	}

	var (
		stored  []string
		skipped []string
		dims    int
	)

	if fallback := firstFallback(es[:chunks]); fallback != nil {
		skipped = append(skipped, vector.TagFull.String())
		p.logger.Warn("full text embedded by a fallback model, vector not stored",
			"owner_id", owner.ID,
			"backend", fallback.Backend,
			"model", fallback.Model,
		)
	} else {
		full := es[0].Vector
		if chunks > 1 {
			full, err = meanPool(vectors(es[:chunks]))
			if err != nil {
				return fmt.Errorf("pooling chunks of owner %s: %w", owner.ID, err)
			}
		}
		if err := p.config.Store.StoreVector(ctx, owner.ID, full, vector.TagFull); err != nil {
			return fmt.Errorf("storing %s vector: %w", vector.TagFull, err)
		}
		stored = append(stored, vector.TagFull.String())
		dims = len(full)
	}

	if owner.Summary != "" {
		summary := es[chunks]
		if summary.Fallback {
			skipped = append(skipped, vector.TagSummary.String())
			p.logger.Warn("summary embedded by a fallback model, vector not stored",
				"owner_id", owner.ID,
				"backend", summary.Backend,
				"model", summary.Model,
			)
		} else {
			if err := p.config.Store.StoreVector(ctx, owner.ID, summary.Vector, vector.TagSummary); err != nil {
				return fmt.Errorf("storing %s vector: %w", vector.TagSummary, err)
			}
			stored = append(stored, vector.TagSummary.String())
			if dims == 0 {
				dims = len(summary.Vector)
			}
		}
	}

	p.logger.Info("owner vectors stored",
		"owner_id", owner.ID,
		"scope", owner.Scope,
		"tags", stored,
		"skipped", skipped,
		"chunks", chunks,
		"dimensions", dims,
	)

	if len(stored) == 0 {
		return nil
	}

	if p.config.Publisher != nil {
		event := eventstream.NewVectorStoredEvent(owner.ID, owner.Scope, p.config.Model, dims, stored)
		if err := p.config.Publisher.PublishVectorStored(ctx, event); err != nil {
			p.logger.Warn("failed to publish vector event", "owner_id", owner.ID, "error", err)
		}
	}
	return nil
}

func firstFallback(es []embeddings.Embedding) *embeddings.Embedding {
	for i := range es {
		if es[i].Fallback {
			return &es[i]
		}
	}
	return nil
}

func vectors(es []embeddings.Embedding) []embeddings.Vector {
	out := make([]embeddings.Vector, len(es))
	for i, e := range es {
		out[i] = e.Vector
	}
	return out
}

// meanPool averages vecs and scales the result to unit length.
func meanPool(vecs []embeddings.Vector) (embeddings.Vector, error) {
	dim := len(vecs[0])
	sum := make([]float64, dim)
	for _, v := range vecs {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: %d != %d", embeddings.ErrDimensionMismatch, len(v), dim)
		}
		for i, f := range v {
			sum[i] += float64(f)
		}
	}

	var norm float64
	for _, f := range sum {
		norm += f * f
	}
	norm = math.Sqrt(norm)

	out := make(embeddings.Vector, dim)
	for i, f := range sum {
		if norm > 0 {
			f /= norm
		}
		out[i] = float32(f)
	}
	return out, nil
}
