package query

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Result is the merged request of a set of opportunities.
type Result struct {
	// Opportunities are the titles of the opportunities included, sorted.
	Opportunities []string
	// Version is the content version queried.
	Version string
	// Priorities are the levels included, highest first.
	Priorities []string
	// Experiments holds one request per experiment name.
	Experiments map[string]*Request
}

// Empty reports whether no experiment was requested.
func (r *Result) Empty() bool { return len(r.Experiments) == 0 }

// Message describes an empty result.
func (r *Result) Message() string {
	if len(r.Opportunities) == 0 {
		return "no opportunities selected, nothing was requested"
	}
	return fmt.Sprintf("the %d selected opportunities request no experiments", len(r.Opportunities))
}

// ExperimentNames returns the experiment names sorted case-insensitively.
func (r *Result) ExperimentNames() []string {
	names := make([]string, 0, len(r.Experiments))
	for name := range r.Experiments {
		names = append(names, name)
	}
	SortFold(names)
	return names
}

// ExperimentSummary counts the variables requested from one experiment.
type ExperimentSummary struct {
	Experiment string
	Counts     map[string]int
	Total      int
}

func (s ExperimentSummary) String() string {
	parts := make([]string, 0, len(PriorityLevels)+1)
	for _, p := range PriorityLevels {
		parts = append(parts, fmt.Sprintf("%s=%d", p, s.Counts[p]))
	}
	parts = append(parts, fmt.Sprintf("TOTAL=%d", s.Total))
	return s.Experiment + " : " + strings.Join(parts, ", ")
}

// Summary returns per-experiment counts in experiment order.
func (r *Result) Summary() []ExperimentSummary {
	out := make([]ExperimentSummary, 0, len(r.Experiments))
	for _, name := range r.ExperimentNames() {
		req := r.Experiments[name]
		s := ExperimentSummary{Experiment: name, Counts: make(map[string]int, len(PriorityLevels))}
		for _, p := range PriorityLevels {
			n := len(req.buckets[p])
			s.Counts[p] = n
			s.Total += n
		}
		out = append(out, s)
	}
	return out
}

// RequestedVariables merges the requests of the selected opportunities per
// experiment, keeping each variable at its highest requested priority. Only
// priorities at or above cutoff are considered. With checkCore every
// experiment must request the same non-empty set of Core variables.
func (e *Engine) RequestedVariables(sel Selector, cutoff string, checkCore bool) (*Result, error) {
	priorities, err := PriorityLevelsUpTo(cutoff)
	if err != nil {
		return nil, err
	}
	ids, err := e.ResolveOpportunityIDs(sel)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Version:     e.ctx.Version,
		Priorities:  priorities,
		Experiments: make(map[string]*Request),
	}
	for _, id := range ids {
		opp, err := e.opps.Record(id)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		res.Opportunities = append(res.Opportunities, opp.String(attrTitle))

		expts, err := e.OpportunityExperiments(opp)
		if err != nil {
			return nil, err
		}
		vars, err := e.OpportunityVariables(opp, priorities)
		if err != nil {
			return nil, err
		}
		e.log.Debug("opportunity request",
			zap.String("title", opp.String(attrTitle)),
			zap.Int("experiments", len(expts)))

		for _, name := range expts {
			req, ok := res.Experiments[name]
			if !ok {
				req = NewRequest(name)
				res.Experiments[name] = req
			}
			for _, p := range priorities {
				if err := req.AddVars(vars[p], p); err != nil {
					return nil, err
				}
			}
		}
	}
	SortFold(res.Opportunities)

	for _, name := range res.ExperimentNames() {
		if err := res.Experiments[name].Check(); err != nil {
			return nil, err
		}
	}
	if checkCore {
		if err := res.CheckCore(); err != nil {
			return nil, err
		}
	}
	if res.Empty() {
		e.log.Info(res.Message())
	}
	return res, nil
}

// CheckCore verifies that every experiment requests the same non-empty set of
// Core variables.
func (r *Result) CheckCore() error {
	var (
		first string
		core  map[string]struct{}
	)
	for _, name := range r.ExperimentNames() {
		vars := r.Experiments[name].buckets[Core]
		if len(vars) == 0 {
			return Error.New("empty Core variables list for experiment %q", name)
		}
		if core == nil {
			first, core = name, vars
			continue
		}
		if n := symmetricDifference(core, vars); n > 0 {
			return Error.New("inconsistent Core variables for experiment %q: %d differ from experiment %q",
				name, n, first)
		}
	}
	return nil
}

func symmetricDifference(a, b map[string]struct{}) int {
	n := 0
	for k := range a {
		if _, ok := b[k]; !ok {
			n++
		}
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			n++
		}
	}
	return n
}
