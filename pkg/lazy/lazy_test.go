package lazy_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/callctx/pkg/lazy"
)

type closer struct {
	closed atomic.Bool
}

func (c *closer) Close() error {
	c.closed.Store(true)
	return nil
}

var _ = Describe("Handle", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("does not initialize until first use", func() {
		var calls atomic.Int32
		h := lazy.New(func(_ context.Context) (int, error) {
			calls.Add(1)
			return 42, nil
		})

		Expect(h.Loaded()).To(BeFalse())
		Expect(calls.Load()).To(BeZero())

		v, err := h.Get(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(42))
		Expect(h.Loaded()).To(BeTrue())
	})

	It("initializes exactly once under concurrent first use", func() {
		var calls atomic.Int32
		h := lazy.New(func(_ context.Context) (string, error) {
			calls.Add(1)
			time.Sleep(20 * time.Millisecond)
			return "model", nil
		})

		var wg sync.WaitGroup
		for range 16 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				v, err := h.Get(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(v).To(Equal("model"))
			}()
		}
		wg.Wait()

		Expect(calls.Load()).To(Equal(int32(1)))
		Expect(h.Loads()).To(Equal(int64(1)))
	})

	It("retries after a failed initialization", func() {
		var calls atomic.Int32
		h := lazy.New(func(_ context.Context) (int, error) {
			if calls.Add(1) == 1 {
				return 0, errors.New("warming up")
			}
			return 7, nil
		})

		_, err := h.Get(ctx)
		Expect(err).To(MatchError("warming up"))
		Expect(h.Loaded()).To(BeFalse())

		v, err := h.Get(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(7))
		Expect(h.Loads()).To(Equal(int64(2)))
	})

	It("closes io.Closer resources", func() {
		c := &closer{}
		h := lazy.New(func(_ context.Context) (*closer, error) {
			return c, nil
		})

		_, err := h.Get(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Close()).To(Succeed())
		Expect(c.closed.Load()).To(BeTrue())
		Expect(h.Loaded()).To(BeFalse())
	})

	It("is a no-op to close an uninitialized handle", func() {
		h := lazy.New(func(_ context.Context) (*closer, error) {
			return &closer{}, nil
		})
		Expect(h.Close()).To(Succeed())
	})
})
