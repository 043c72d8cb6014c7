package report

import (
	"fmt"
	"io"
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/query"
)

// RequestedDescription heads every requested-variables file.
const RequestedDescription = "This file gives the names of output variables that are requested from CMIP experiments by the supported Opportunities. " +
	"The variables requested from each experiment are listed under each experiment name, grouped according to the priority level at which they are requested. " +
	"For each experiment, the prioritized list of variables was determined by compiling together all requests made by the supported Opportunities for output from that experiment."

// Requested builds the requested-variables document: a header followed by
// the variables of each experiment keyed by priority level. Levels below the
// result's cutoff are left out and must be empty.
func Requested(res *query.Result, prov Provenance) (*orderedmap.OrderedMap[string, any], error) {
	header := orderedmap.New[string, any]()
	header.Set("Description", RequestedDescription)

	opps := slices.Clone(res.Opportunities)
	query.SortFold(opps)
	header.Set("Opportunities supported", nonNil(opps))
	header.Set("Priority levels supported", nonNil(res.Priorities))

	names := res.ExperimentNames()
	header.Set("Experiments included", nonNil(names))
	prov.addTo(header)

	experiments := orderedmap.New[string, any]()
	for _, name := range names {
		req := res.Experiments[name]
		levels := orderedmap.New[string, []string]()
		for _, p := range query.PriorityLevels {
			vars := req.Vars(p)
			if !slices.Contains(res.Priorities, p) {
				if len(vars) > 0 {
					return nil, Error.New("experiment %q requests %d variables at unsupported priority %s", name, len(vars), p)
				}
				continue
			}
			levels.Set(p, vars)
		}
		experiments.Set(name, levels)
	}

	out := orderedmap.New[string, any]()
	out.Set("Header", header)
	out.Set("experiment", experiments)
	return out, nil
}

// WriteRequested writes the requested-variables document as JSON.
func WriteRequested(w io.Writer, res *query.Result, prov Provenance) error {
	doc, err := Requested(res, prov)
	if err != nil {
		return err
	}
	return encode(w, doc)
}

// WriteRequestedFile writes the requested-variables document to a JSON file.
func WriteRequestedFile(path string, res *query.Result, prov Provenance) error {
	if f, err := FormatOf(path); err != nil || f != FormatJSON {
		return Error.New("requested variables are written as JSON, not %s", path)
	}
	return createFile(path, func(w io.Writer) error {
		return WriteRequested(w, res, prov)
	})
}

// WriteSummary prints the number of variables requested per experiment.
func WriteSummary(w io.Writer, res *query.Result) error {
	if res.Empty() {
		_, err := fmt.Fprintln(w, res.Message())
		return Error.Wrap(err)
	}
	if _, err := fmt.Fprintf(w, "For data request version %s, number of requested variables found by experiment:\n", res.Version); err != nil {
		return Error.Wrap(err)
	}
	for _, s := range res.Summary() {
		if _, err := fmt.Fprintf(w, "  %s\n", s); err != nil {
			return Error.Wrap(err)
		}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
