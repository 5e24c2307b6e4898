package model

// ReplicaConnection is one slot in a region's read replica pool. The pool
// owns the slot; callers hold only the ID for the duration of a lease.
type ReplicaConnection struct {
	ID      string `json:"id"` // e.g., us-east-1-replica-1
	Region  string `json:"region"`
	InUse   bool   `json:"in_use"`
	Healthy bool   `json:"healthy"`
}

// PoolStats is a per-region summary of replica pool occupancy.
type PoolStats struct {
	Total   int `json:"total"`
	InUse   int `json:"in_use"`
	Healthy int `json:"healthy"`
}
