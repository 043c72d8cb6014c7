package query

import "fmt"

// Request accumulates the variables requested from one experiment. A
// variable is held at the single highest priority it was ever requested at.
type Request struct {
	Experiment string

	buckets map[string]map[string]struct{}
}

// NewRequest returns an empty request for an experiment.
func NewRequest(experiment string) *Request {
	r := &Request{Experiment: experiment, buckets: make(map[string]map[string]struct{}, len(PriorityLevels))}
	for _, p := range PriorityLevels {
		r.buckets[p] = make(map[string]struct{})
	}
	return r
}

// AddVars adds variable identifiers at a priority level, then removes from
// every lower level the identifiers present at any higher level.
func (r *Request) AddVars(ids []string, priority string) error {
	bucket, ok := r.buckets[Capitalize(priority)]
	if !ok {
		return Error.New("experiment %q: unknown priority level %q", r.Experiment, priority)
	}
	for _, id := range ids {
		bucket[id] = struct{}{}
	}
	r.demote()
	return nil
}

func (r *Request) demote() {
	for i, higher := range PriorityLevels {
		for _, lower := range PriorityLevels[i+1:] {
			for id := range r.buckets[higher] {
				delete(r.buckets[lower], id)
			}
		}
	}
}

// Check verifies the priority levels are pairwise disjoint.
func (r *Request) Check() error {
	seen := make(map[string]string)
	for _, p := range PriorityLevels {
		for id := range r.buckets[p] {
			if prev, ok := seen[id]; ok {
				return Error.New("experiment %q: variable %q requested at %s and %s", r.Experiment, id, prev, p)
			}
			seen[id] = p
		}
	}
	return nil
}

// Vars returns the variables at a priority level, sorted case-insensitively.
func (r *Request) Vars(priority string) []string {
	bucket := r.buckets[Capitalize(priority)]
	out := make([]string, 0, len(bucket))
	for id := range bucket {
		out = append(out, id)
	}
	SortFold(out)
	return out
}

// Len returns the number of variables requested at all levels.
func (r *Request) Len() int {
	n := 0
	for _, b := range r.buckets {
		n += len(b)
	}
	return n
}

// ToMap returns the request keyed by priority level, each list sorted.
func (r *Request) ToMap() map[string][]string {
	out := make(map[string][]string, len(PriorityLevels))
	for _, p := range PriorityLevels {
		out[p] = r.Vars(p)
	}
	return out
}

func (r *Request) String() string {
	return fmt.Sprintf("%s: Core=%d High=%d Medium=%d Low=%d", r.Experiment,
		len(r.buckets[Core]), len(r.buckets[High]), len(r.buckets[Medium]), len(r.buckets[Low]))
}
