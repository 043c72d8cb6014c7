package dreqtest

import (
	"fmt"
	"math/rand/v2"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/export"
)

// SyntheticOptions size a generated export.
type SyntheticOptions struct {
	Opportunities int
	Experiments   int
	Variables     int
	// GroupsPerOpportunity is the number of non-Core variable groups each
	// opportunity requests.
	GroupsPerOpportunity int
	// VariablesPerGroup is the size of each non-Core variable group.
	VariablesPerGroup int
	// CoreVariables are requested by every opportunity at Core.
	CoreVariables int
}

// DefaultSyntheticOptions roughly match the shape of a real release.
func DefaultSyntheticOptions() SyntheticOptions {
	return SyntheticOptions{
		Opportunities:        40,
		Experiments:          120,
		Variables:            2000,
		GroupsPerOpportunity: 6,
		VariablesPerGroup:    80,
		CoreVariables:        50,
	}
}

func (o SyntheticOptions) normalize() SyntheticOptions {
	o.Opportunities = max(o.Opportunities, 1)
	o.Experiments = max(o.Experiments, 1)
	o.Variables = max(o.Variables, 1)
	o.CoreVariables = min(max(o.CoreVariables, 1), o.Variables)
	o.VariablesPerGroup = min(max(o.VariablesPerGroup, 1), o.Variables)
	return o
}

// Synthetic returns a partitioned export laid out like Partitioned, sized by
// opts and wired at random by rng. Every opportunity is accepted and
// requests the same Core group, so Core checks pass.
func Synthetic(opts SyntheticOptions, rng *rand.Rand) *export.Content {
	opts = opts.normalize()
	levels := []string{"recPriHigh", "recPriMedium", "recPriLow"}

	varID := func(i int) string { return fmt.Sprintf("recVar%05d", i) }
	copyID := func(i int) string { return fmt.Sprintf("recCopy%05d", i) }
	ppID := func(i int) string { return fmt.Sprintf("recPP%05d", i) }
	name := func(i int) string { return fmt.Sprintf("v%05d", i) }

	opp := Table("tblOpp", "Opportunity").
		Fields("Title of opportunity", "Status").
		Link("Experiment Groups", "tblEG").
		Link("Variable Groups", "tblVG")
	eg := Table("tblEG", "Experiment Group").
		Fields("Name", "Status", "Status (from Opportunities)").
		Link("Experiments", "tblExp")
	expt := Table("tblExp", "Experiment").Fields("Experiment")
	vg := Table("tblVG", "Variable Group").
		Fields("Name", "Opportunity Status").
		Link("Variables", "tblVarCopy").
		Link("Priority Level", "tblPri").
		Link("Final Opportunity selection", "tblOpp")
	pri := Table("tblPri", "Priority level").
		Fields("Name").
		Rec("recPriCore", "Name", "Core").
		Rec("recPriHigh", "Name", "High").
		Rec("recPriMedium", "Name", "Medium").
		Rec("recPriLow", "Name", "Low")
	copies := Table("tblVarCopy", "Variables").Fields("UID", "Compound Name")

	for i := range opts.Experiments {
		expt.Rec(fmt.Sprintf("recExp%04d", i), "Experiment", fmt.Sprintf("exp-%04d", i))
	}

	oppID := func(i int) string { return fmt.Sprintf("recOpp%04d", i) }
	allOpps := make([]string, opts.Opportunities)
	for i := range allOpps {
		allOpps[i] = oppID(i)
	}

	core := make([]string, opts.CoreVariables)
	for i := range core {
		core[i] = copyID(i)
	}
	vg.Rec("recVGcore",
		"Name", "vg-core",
		"Opportunity Status", List("Accepted"),
		"Variables", Links(core...),
		"Priority Level", Links("recPriCore"),
		"Final Opportunity selection", Links(allOpps...))

	for o := range opts.Opportunities {
		egID := fmt.Sprintf("recEG%04d", o)
		n := 1 + rng.IntN(min(opts.Experiments, 8))
		expts := make([]string, 0, n)
		for _, e := range rng.Perm(opts.Experiments)[:n] {
			expts = append(expts, fmt.Sprintf("recExp%04d", e))
		}
		eg.Rec(egID,
			"Name", fmt.Sprintf("eg-%04d", o),
			"Status", "Final",
			"Status (from Opportunities)", List("Accepted"),
			"Experiments", Links(expts...))

		groups := []string{"recVGcore"}
		for g := range opts.GroupsPerOpportunity {
			id := fmt.Sprintf("recVG%04d_%02d", o, g)
			members := make([]string, 0, opts.VariablesPerGroup)
			for _, v := range rng.Perm(opts.Variables)[:opts.VariablesPerGroup] {
				members = append(members, copyID(v))
			}
			vg.Rec(id,
				"Name", fmt.Sprintf("vg-%04d-%02d", o, g),
				"Opportunity Status", List("Accepted"),
				"Variables", Links(members...),
				"Priority Level", Links(levels[rng.IntN(len(levels))]),
				"Final Opportunity selection", Links(oppID(o)))
			groups = append(groups, id)
		}
		opp.Rec(oppID(o),
			"Title of opportunity", fmt.Sprintf("Opportunity %04d", o),
			"Status", "Accepted",
			"Experiment Groups", Links(egID),
			"Variable Groups", Links(groups...))
	}

	vars := Table("tblVar", "Variable").
		Fields("UID", "CMIP6 Compound Name", "Title", "Type",
			"CMIP7 Variable Groups", "Opportunity Status (from CMIP7 Variable Groups)").
		Link("CMIP7 Frequency", "tblFreq").
		Link("Temporal Shape", "tblTS").
		Link("Spatial Shape", "tblSS").
		Link("Physical Parameter", "tblPPcopy").
		Link("Modeling Realm", "tblRealm").
		Link("Table", "tblTI")
	ppCopies := Table("tblPPcopy", "Physical Parameter").Fields("UID", "Name")
	params := Table("tblPP", "Physical Parameter").
		Fields("UID", "Name", "Units", "Proposed CF Standard Name").
		Link("CF Standard Name", "tblCF")
	cf := Table("tblCF", "CF Standard Name").Fields("name")

	for i := range opts.Variables {
		uid := fmt.Sprintf("uid-%05d", i)
		copies.Rec(copyID(i), "UID", uid, "Compound Name", "atmos."+name(i))
		vars.Rec(varID(i),
			"UID", uid,
			"CMIP6 Compound Name", "Amon."+name(i),
			"Title", "Synthetic variable "+name(i),
			"Type", "real",
			"CMIP7 Variable Groups", "generated",
			"Opportunity Status (from CMIP7 Variable Groups)", List("Accepted"),
			"CMIP7 Frequency", Links("recFreqMon"),
			"Temporal Shape", Links("recTSmean"),
			"Spatial Shape", Links("recSSxy"),
			"Physical Parameter", Links(fmt.Sprintf("recPPcopy%05d", i)),
			"Modeling Realm", Links("recRealmAtmos"),
			"Table", Links("recTIAmon"))
		ppCopies.Rec(fmt.Sprintf("recPPcopy%05d", i), "UID", "pp-"+name(i), "Name", name(i))
		if i%2 == 0 {
			cfID := fmt.Sprintf("recCF%05d", i)
			cf.Rec(cfID, "name", "standard_"+name(i))
			params.Rec(ppID(i), "UID", "pp-"+name(i), "Name", name(i), "Units", "1", "CF Standard Name", Links(cfID))
		} else {
			params.Rec(ppID(i), "UID", "pp-"+name(i), "Name", name(i), "Units", "1", "Proposed CF Standard Name", "proposed_"+name(i))
		}
	}

	c := export.NewContent()
	c.Set(OpportunitiesBase, Base(opp, eg, expt, vg, pri, copies))
	c.Set(VariablesBase, Base(vars, ppCopies,
		Table("tblFreq", "CMIP7 Frequency").Fields("Name").Rec("recFreqMon", "Name", "mon"),
		Table("tblTS", "Temporal Shape").Fields("Name").Rec("recTSmean", "Name", "time-intv"),
		Table("tblSS", "Spatial Shape").
			Fields("Name").
			Link("Dimensions", "tblDim").
			Rec("recSSxy", "Name", "XY-na", "Dimensions", Links("recDimLon", "recDimLat")),
		Table("tblDim", "Coordinate or Dimension").
			Fields("Name").
			Rec("recDimLon", "Name", "longitude").
			Rec("recDimLat", "Name", "latitude"),
		Table("tblRealm", "Modeling Realm").Fields("id").Rec("recRealmAtmos", "id", "atmos"),
		Table("tblTI", "Table Identifiers").Fields("Name").Rec("recTIAmon", "Name", "Amon"),
	))
	c.Set(ParametersBase, Base(params, cf))
	return c
}
