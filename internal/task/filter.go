package task

// Filter narrows an extracted task list down to what the current run
// should attempt.
type Filter struct {
	// Excluded holds URLs already resolved by earlier runs (the union
	// of the Success and Missing logs).
	Excluded map[string]bool

	// Whitelist holds URLs that are always re-attempted, overriding
	// Excluded.
	Whitelist map[string]bool

	// Start and End bound the half-open index range [Start, End).
	// End < 0 means unbounded.
	Start int
	End   int
}

// Apply returns the tasks to run, partitioned into data and non-data.
// Order within each partition follows extraction order.
func (f Filter) Apply(tasks []Task) (data, nonData []Task) {
	for _, t := range tasks {
		if t.Index < f.Start {
			continue
		}
		if f.End >= 0 && t.Index >= f.End {
			continue
		}
		if f.Excluded[t.URL] && !f.Whitelist[t.URL] {
			continue
		}
		if t.IsData {
			data = append(data, t)
		} else {
			nonData = append(nonData, t)
		}
	}
	return data, nonData
}
