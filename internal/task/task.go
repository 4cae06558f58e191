package task

// Task is one immutable download descriptor derived from catalog
// metadata. All fields are fixed at extraction time; nothing is
// recomputed during execution.
type Task struct {
	// Index is a contiguous ordinal over all emitted tasks, assigned in
	// extraction order. It is stable for a fixed metadata snapshot and
	// fixed ignore/fix rules, and is the unit of cross-machine range
	// partitioning.
	Index int `json:"index"`

	// ID is a human-readable identifier built from the owning record.
	ID string `json:"id"`

	// URL is the asset URL after fixes were applied.
	URL string `json:"url"`

	// Destination is the storage key the asset is committed under,
	// derived once from the URL and the host→path mapping.
	Destination string `json:"destination"`

	// IsData distinguishes primary payload from documentation/browse
	// assets. It governs error-log placement, failure severity, and
	// wave ordering.
	IsData bool `json:"is_data"`

	// Namespace is the job name owning this task's completion logs.
	Namespace string `json:"namespace"`

	// Ignore carries the job's ignore substrings so the fetch stage can
	// recognize redirects into out-of-scope domains.
	Ignore []string `json:"-"`
}
