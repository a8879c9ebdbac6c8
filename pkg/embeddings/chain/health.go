package chain

import (
	"time"
)

// Health is a point-in-time report of one backend's recent behavior.
type Health struct {
	Name        string        `json:"name"`
	Healthy     bool          `json:"healthy"`
	Batch       bool          `json:"batch"`
	Successes   int64         `json:"successes"`
	Failures    int64         `json:"failures"`
	LastError   string        `json:"last_error,omitempty"`
	LastLatency time.Duration `json:"last_latency"`
	LastAttempt time.Time     `json:"last_attempt,omitzero"`
}

// Health returns one report per backend, in fallback order. A backend that
// has never been attempted is reported healthy.
func (c *Chain) Health() []Health {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Health, 0, len(c.backends))
	for _, b := range c.backends {
		h := *c.health[b.Name]
		if h.LastAttempt.IsZero() {
			h.Healthy = true
		}
		out = append(out, h)
	}
	return out
}

func (c *Chain) record(name string, latency time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.health[name]
	if !ok {
		return
	}

	h.LastAttempt = time.Now()
	h.LastLatency = latency
	if err != nil {
		h.Failures++
		h.Healthy = false
		h.LastError = err.Error()
		return
	}
	h.Successes++
	h.Healthy = true
	h.LastError = ""
}
