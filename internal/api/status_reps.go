package api

// StatusRep is the JSON representation returned by the status endpoint.
//
// This is exported for use in integration test code.
type StatusRep struct {
	Status       string     `json:"status"`
	Version      string     `json:"version"`
	CacheVersion string     `json:"cacheVersion"`
	Active       *WorkerRep `json:"active"`
	Waiting      *WorkerRep `json:"waiting,omitempty"`
	Storage      StorageRep `json:"storage"`
}

// WorkerRep describes one cache version worker in the status endpoint.
type WorkerRep struct {
	ID       string `json:"id"`
	Version  string `json:"version"`
	State    string `json:"state"`
	InFlight int    `json:"inFlight"`
}

// StorageRep describes the cache storage in the status endpoint.
type StorageRep struct {
	Kind      string   `json:"kind"`
	Available bool     `json:"available"`
	Stores    []string `json:"stores"`
}

const (
	// StatusHealthy is the overall status when a cache version is active and the storage is reachable.
	StatusHealthy = "healthy"
	// StatusDegraded is the overall status when no cache version is active yet, or the storage cannot be
	// reached so that every request goes to the network.
	StatusDegraded = "degraded"
)
