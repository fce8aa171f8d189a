package dto

import "time"

// MetricsSnapshot is the JSON view of service counters.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	AllocationRuns           uint64    `json:"allocationRuns"`
	AllocationFailures       uint64    `json:"allocationFailures"`
	StudentsSeated           uint64    `json:"studentsSeated"`
	Shortages                uint64    `json:"shortages"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
