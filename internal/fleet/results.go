package fleet

import (
	"sync"

	"github.com/dwsmith1983/testgate/pkg/types"
)

// results is a write-once outcome map. Once sealed, late writes from jobs
// that outlived the kill grace are dropped.
type results struct {
	mu     sync.Mutex
	m      map[string]types.JobOutcome
	sealed bool
}

func newResults(n int) *results {
	return &results{m: make(map[string]types.JobOutcome, n)}
}

func (r *results) set(name string, o types.JobOutcome) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return false
	}
	if _, ok := r.m[name]; ok {
		return false
	}
	r.m[name] = o
	return true
}

// seal closes the map and records failed for every job in expected that
// has not reported. It returns the names it forced.
func (r *results) seal(expected []types.Job) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true

	var forced []string
	for _, j := range expected {
		if _, ok := r.m[j.Name]; !ok {
			r.m[j.Name] = types.OutcomeFailed
			forced = append(forced, j.Name)
		}
	}
	return forced
}

func (r *results) snapshot() map[string]types.JobOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]types.JobOutcome, len(r.m))
	for k, v := range r.m {
		out[k] = v
	}
	return out
}
