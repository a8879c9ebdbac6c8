package cache

// Health describes whether the cache backend is serving requests.
type Health string

const (
	HealthOK          Health = "ok"
	HealthUnavailable Health = "unavailable"
	HealthDisabled    Health = "disabled"
)

// Stats is a snapshot of the cache state and this process's counters.
type Stats struct {
	Enabled    bool   `json:"enabled"`
	Backend    string `json:"backend"`
	Health     Health `json:"health"`
	Namespace  string `json:"namespace"`
	TTLSeconds int64  `json:"ttl_seconds"`
	TotalKeys  int64  `json:"total_keys"`
	Hits       int64  `json:"hits"`
	Misses     int64  `json:"misses"`
	Writes     int64  `json:"writes"`
	Errors     int64  `json:"errors"`
}
