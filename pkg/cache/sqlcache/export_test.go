package sqlcache

import "time"

// SetClock overrides the time source in tests.
func (b *Backend) SetClock(now func() time.Time) {
	b.now = now
}
