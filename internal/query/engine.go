package query

import (
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/table"
)

// Table names the engine reads.
const (
	OpportunityTable     = "Opportunity"
	ExperimentGroupTable = "Experiment Group"
	ExperimentTable      = "Experiments"
	VariableGroupTable   = "Variable Group"
	VariableTable        = "Variables"
	PriorityTable        = "Priority Level"
)

// Attribute names the engine reads.
const (
	attrTitle           = "title"
	attrStatus          = "status"
	attrExperimentGroup = "experiment_groups"
	attrVariableGroups  = "variable_groups"
	attrExperiments     = "experiments"
	attrExperiment      = "experiment"
	attrVariables       = "variables"
	attrPriority        = "priority_level"
	attrName            = "name"
	// AttrCompoundName identifies a variable.
	AttrCompoundName = "compound_name"
	attrCMIP6Compound = "cmip6_compound_name"
)

// ValidStatus lists the opportunity statuses that survive quality control.
var ValidStatus = []string{"Accepted", "Under review"}

// Fallback attributes holding an opportunity's variable groups, preferred
// first.
var variableGroupFallbacks = []string{"working_updated_variable_groups", "originally_requested_variable_groups"}

// Engine answers requests against one table set. It prepares and then
// mutates the set (quality control removes opportunities), so callers that
// share a loaded set must hand each engine its own Clone.
type Engine struct {
	ctx Context
	log *zap.Logger
	set *table.Set

	opps, groups, expts, varGroups, vars, priorities *table.Table
}

// NewEngine prepares set for querying.
func NewEngine(set *table.Set, ctx Context) (*Engine, error) {
	e := &Engine{ctx: ctx, log: ctx.logger(), set: set}
	if e.ctx.Version == "" {
		e.ctx.Version = set.Version
	}

	var err error
	for _, t := range []struct {
		name string
		dst  **table.Table
	}{
		{OpportunityTable, &e.opps},
		{ExperimentGroupTable, &e.groups},
		{ExperimentTable, &e.expts},
		{VariableGroupTable, &e.varGroups},
		{VariableTable, &e.vars},
	} {
		if *t.dst, err = set.Table(t.name); err != nil {
			return nil, Error.Wrap(err)
		}
	}
	if set.Has(PriorityTable) {
		e.priorities, _ = set.Table(PriorityTable)
		if err := e.checkPriorityTable(); err != nil {
			return nil, err
		}
	}

	if err := e.prepareOpportunities(); err != nil {
		return nil, err
	}
	if err := e.prepareCompoundNames(); err != nil {
		return nil, err
	}
	return e, nil
}

// Context returns the query context.
func (e *Engine) Context() Context { return e.ctx }

// Set returns the prepared table set.
func (e *Engine) Set() *table.Set { return e.set }

func (e *Engine) prepareOpportunities() error {
	if err := e.opps.RenameAttr("title_of_opportunity", attrTitle); err != nil {
		return Error.Wrap(err)
	}
	for _, opp := range e.opps.Records() {
		if opp.Has(attrTitle) {
			opp.Set(attrTitle, strings.TrimSpace(opp.String(attrTitle)))
		}
	}

	if !e.opps.HasAttr(attrVariableGroups) {
		for _, attr := range variableGroupFallbacks {
			if e.opps.HasAttr(attr) {
				if err := e.opps.RenameAttr(attr, attrVariableGroups); err != nil {
					return Error.Wrap(err)
				}
				break
			}
		}
		if !e.opps.HasAttr(attrVariableGroups) {
			return Error.New("unable to determine the variable groups attribute of %s", OpportunityTable)
		}
	}

	for _, opp := range e.opps.Records() {
		var missing []string
		if !opp.Has(attrExperimentGroup) {
			missing = append(missing, attrExperimentGroup)
		}
		if !opp.Has(attrVariableGroups) {
			missing = append(missing, attrVariableGroups)
		}
		if len(missing) == 0 {
			continue
		}
		e.log.Warn("excluding opportunity",
			zap.String("title", opp.String(attrTitle)),
			zap.String("id", opp.ID),
			zap.Strings("missing", missing))
		e.opps.DeleteRecord(opp.ID)
	}
	if e.opps.Len() == 0 {
		return Error.New("all opportunities were removed by quality control")
	}
	return nil
}

func (e *Engine) prepareCompoundNames() error {
	newer, err := e.ctx.AtLeast(1, 2)
	if err != nil {
		return err
	}
	if !newer {
		return nil
	}
	for _, v := range e.vars.Records() {
		if v.Has(AttrCompoundName) {
			return Error.New("%s: %s attribute is already defined (record %q)", VariableTable, AttrCompoundName, v.ID)
		}
		if !v.Has(attrCMIP6Compound) {
			return Error.New("%s: record %q has no %s", VariableTable, v.ID, attrCMIP6Compound)
		}
		v.Set(AttrCompoundName, v.String(attrCMIP6Compound))
	}
	return nil
}

func (e *Engine) checkPriorityTable() error {
	var names []string
	for _, r := range e.priorities.Records() {
		names = append(names, r.String(attrName))
	}
	got := slices.Clone(names)
	slices.Sort(got)
	got = slices.Compact(got)
	want := slices.Clone(PriorityLevels)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		return Error.New("inconsistent priority levels: expected %v, %s table has %v", PriorityLevels, PriorityTable, names)
	}
	return nil
}

// Opportunities returns the titles of all opportunities, sorted
// case-insensitively.
func (e *Engine) Opportunities() []string {
	titles := make([]string, 0, e.opps.Len())
	for _, opp := range e.opps.Records() {
		titles = append(titles, opp.String(attrTitle))
	}
	SortFold(titles)
	return titles
}

// ResolveOpportunityIDs returns the record identifiers of the selected
// opportunities. Opportunities with a status other than ValidStatus are
// removed from the opportunity table and from the result.
func (e *Engine) ResolveOpportunityIDs(sel Selector) ([]string, error) {
	var ids []string
	switch {
	case sel.All:
		ids = e.opps.IDs()
	default:
		byTitle := make(map[string]string, e.opps.Len())
		for _, opp := range e.opps.Records() {
			title := opp.String(attrTitle)
			if prev, ok := byTitle[title]; ok {
				return nil, Error.New("opportunity titles are not unique: %q (records %q and %q)", title, prev, opp.ID)
			}
			byTitle[title] = opp.ID
		}
		for _, title := range Titles(sel.Titles...).Titles {
			id, ok := byTitle[title]
			if !ok {
				return nil, Error.New("opportunity not found: %q", title)
			}
			ids = append(ids, id)
		}
	}

	kept := ids[:0:0]
	for _, id := range ids {
		opp, err := e.opps.Record(id)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		if opp.Has(attrStatus) && !slices.Contains(ValidStatus, opp.String(attrStatus)) {
			e.log.Warn("quality control removed opportunity",
				zap.String("title", opp.String(attrTitle)),
				zap.String("status", opp.String(attrStatus)))
			e.opps.DeleteRecord(id)
			continue
		}
		kept = append(kept, id)
	}
	return kept, nil
}

// OpportunityExperiments returns the names of the experiments an opportunity
// requests, sorted. Experiment groups without experiments contribute nothing.
func (e *Engine) OpportunityExperiments(opp *table.Record) ([]string, error) {
	seen := make(map[string]struct{})
	for _, link := range opp.Links(attrExperimentGroup) {
		group, err := e.set.Resolve(link)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		for _, el := range group.Links(attrExperiments) {
			expt, err := e.set.Resolve(el)
			if err != nil {
				return nil, Error.Wrap(err)
			}
			seen[expt.String(attrExperiment)] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	SortFold(out)
	return out, nil
}

// OpportunityVariables returns the compound names an opportunity requests,
// by priority level. Only levels in priorities are returned; groups at other
// levels are skipped.
func (e *Engine) OpportunityVariables(opp *table.Record, priorities []string) (map[string][]string, error) {
	out := make(map[string][]string, len(priorities))
	for _, p := range priorities {
		out[p] = nil
	}
	for _, link := range opp.Links(attrVariableGroups) {
		group, err := e.set.Resolve(link)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		priority, err := e.groupPriority(group)
		if err != nil {
			return nil, err
		}
		if priority == Undefined {
			e.log.Debug("variable group has no priority level",
				zap.String("group", group.String(attrName)),
				zap.String("id", group.ID))
		}
		if _, ok := out[priority]; !ok {
			continue
		}
		for _, vl := range group.Links(attrVariables) {
			v, err := e.set.Resolve(vl)
			if err != nil {
				return nil, Error.Wrap(err)
			}
			name := v.String(AttrCompoundName)
			if name == "" {
				return nil, Error.New("variable %q has no %s", v.ID, AttrCompoundName)
			}
			out[priority] = append(out[priority], name)
		}
	}
	return out, nil
}

// groupPriority returns the priority level of a variable group, which is
// either a plain string or a single link into the priority table.
func (e *Engine) groupPriority(group *table.Record) (string, error) {
	v, ok := group.Get(attrPriority)
	if !ok {
		return Undefined, nil
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case []table.Link:
		if len(x) != 1 {
			return "", Error.New("variable group %q (%s) should have one priority level, found %d",
				group.String(attrName), group.ID, len(x))
		}
		rec, err := e.set.Resolve(x[0])
		if err != nil {
			return "", Error.Wrap(err)
		}
		return rec.String(attrName), nil
	case []any:
		if len(x) != 1 {
			return "", Error.New("variable group %q (%s) should have one priority level, found %d",
				group.String(attrName), group.ID, len(x))
		}
		if s, ok := x[0].(string); ok {
			return s, nil
		}
	}
	return "", Error.New("variable group %q (%s): cannot determine priority level from %T",
		group.String(attrName), group.ID, v)
}
