package testutil

import (
	"sort"
	"sync"
	"time"
)

// ExecutionRecord holds the start and end times of one system invocation.
type ExecutionRecord struct {
	Name  string
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two invocations were running at the same time.
func (r ExecutionRecord) Overlaps(o ExecutionRecord) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

// Recorder collects execution records from concurrently running systems.
type Recorder struct {
	mu      sync.Mutex
	records []ExecutionRecord
}

// Track runs fn and records how long it ran under name.
func (r *Recorder) Track(name string, fn func()) {
	start := time.Now()
	fn()
	end := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, ExecutionRecord{Name: name, Start: start, End: end})
}

// Records returns a copy of everything recorded so far, ordered by start time.
func (r *Recorder) Records() []ExecutionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]ExecutionRecord(nil), r.records...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Named returns the records made under name.
func (r *Recorder) Named(name string) []ExecutionRecord {
	var out []ExecutionRecord
	for _, rec := range r.Records() {
		if rec.Name == name {
			out = append(out, rec)
		}
	}
	return out
}

// Order returns the recorded names ordered by start time.
func (r *Recorder) Order() []string {
	recs := r.Records()
	out := make([]string, len(recs))
	for i, rec := range recs {
		out[i] = rec.Name
	}
	return out
}

// Reset drops all records.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
}
