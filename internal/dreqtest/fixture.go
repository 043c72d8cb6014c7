package dreqtest

import "github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/export"

// Partition names of a working export.
const (
	OpportunitiesBase = "Data Request Opportunities (Public)"
	VariablesBase     = "Data Request Variables (Public)"
	ParametersBase    = "Data Request Physical Parameters (Public)"
)

// Version is the content version the fixture export represents.
const Version = "v1.2"

// Records filtered out of the fixture by the default mapping rules.
var Filtered = []string{"recO3", "recEG3", "recVG4", "recVarOrphan"}

// Partitioned returns a small three-partition working export laid out like
// the real one. Two opportunities survive the filters:
//
//	O1: experiments {A, B}; tas at High; ps at Core
//	O2: experiment  {B};    tas at Medium, pr at Low; ps at Core
//
// O3 is rejected and everything only it references is filtered as well.
func Partitioned() *export.Content {
	c := export.NewContent()
	c.Set(OpportunitiesBase, opportunities())
	c.Set(VariablesBase, variables())
	c.Set(ParametersBase, parameters())
	return c
}

func opportunities() *export.Base {
	return Base(
		Table("tblOpp", "Opportunity").
			Fields("Title of opportunity", "Status", "Comments").
			Link("Experiment Groups", "tblEG").
			Link("Variable Groups", "tblVG").
			Rec("recO1",
				"Title of opportunity", "O1",
				"Status", "Accepted",
				"Comments", "keep it short",
				"Experiment Groups", Links("recEG1"),
				"Variable Groups", Links("recVG1", "recVGcore")).
			Rec("recO2",
				"Title of opportunity", " O2 ",
				"Status", "Under review",
				"Experiment Groups", Links("recEG2"),
				"Variable Groups", Links("recVG2", "recVG3", "recVGcore")).
			Rec("recO3",
				"Title of opportunity", "O3",
				"Status", "Rejected",
				"Experiment Groups", Links("recEG2"),
				"Variable Groups", Links("recVG4")),
		Table("tblEG", "Experiment Group").
			Fields("Name", "Status", "Status (from Opportunities)").
			Link("Experiments", "tblExp").
			Link("Opportunities", "tblOpp").
			Rec("recEG1",
				"Name", "eg-AB",
				"Status", "Final",
				"Status (from Opportunities)", List("Accepted"),
				"Experiments", Links("recExpA", "recExpB"),
				"Opportunities", Links("recO1")).
			Rec("recEG2",
				"Name", "eg-B",
				"Status", "Draft",
				"Status (from Opportunities)", List("Under review", "Rejected"),
				"Experiments", Links("recExpB"),
				"Opportunities", Links("recO2", "recO3")).
			Rec("recEG3",
				"Name", "eg-junk",
				"Status", "Junk",
				"Status (from Opportunities)", List("Accepted"),
				"Experiments", Links("recExpB")),
		Table("tblExp", "Experiment").
			Fields("Experiment").
			Link("Experiment Groups", "tblEG").
			Rec("recExpA", "Experiment", "A", "Experiment Groups", Links("recEG1")).
			Rec("recExpB", "Experiment", "B", "Experiment Groups", Links("recEG1", "recEG2", "recEG3")),
		Table("tblVG", "Variable Group").
			Fields("Name", "Opportunity Status", "Comments").
			Link("Variables", "tblVarCopy").
			Link("Priority Level", "tblPri").
			Link("Final Opportunity selection", "tblOpp").
			Rec("recVG1",
				"Name", "vg-tas-high",
				"Opportunity Status", List("Accepted"),
				"Variables", Links("recCopyTas"),
				"Priority Level", Links("recPriHigh"),
				"Final Opportunity selection", Links("recO1")).
			Rec("recVG2",
				"Name", "vg-tas-medium",
				"Opportunity Status", List("Under review"),
				"Variables", Links("recCopyTas"),
				"Priority Level", Links("recPriMedium"),
				"Final Opportunity selection", Links("recO2")).
			Rec("recVG3",
				"Name", "vg-pr-low",
				"Opportunity Status", List("Under review"),
				"Variables", Links("recCopyPr"),
				"Priority Level", Links("recPriLow"),
				"Final Opportunity selection", Links("recO2")).
			Rec("recVGcore",
				"Name", "vg-core",
				"Opportunity Status", List("Accepted", "Under review"),
				"Variables", Links("recCopyPs"),
				"Priority Level", Links("recPriCore"),
				"Final Opportunity selection", Links("recO1", "recO2")).
			Rec("recVG4",
				"Name", "vg-junk",
				"Opportunity Status", List("Rejected"),
				"Variables", Links("recCopyPr"),
				"Priority Level", Links("recPriHigh"),
				"Final Opportunity selection", Links("recO3")),
		Table("tblPri", "Priority level").
			Fields("Name").
			Rec("recPriCore", "Name", "Core").
			Rec("recPriHigh", "Name", "High").
			Rec("recPriMedium", "Name", "Medium").
			Rec("recPriLow", "Name", "Low"),
		Table("tblVarCopy", "Variables").
			Fields("UID", "Compound Name").
			Rec("recCopyTas", "UID", "uid-tas", "Compound Name", "atmos.tas.tavg-h2m-hxy-u.mon.glb").
			Rec("recCopyPr", "UID", "uid-pr", "Compound Name", "atmos.pr.tavg-u-hxy-u.mon.glb").
			Rec("recCopyPs", "UID", "uid-ps", "Compound Name", "atmos.ps.tavg-u-hxy-u.mon.glb"),
	)
}

func variables() *export.Base {
	return Base(
		Table("tblVar", "Variable").
			Fields("UID", "CMIP6 Compound Name", "Title", "Type", "Description",
				"Positive Direction", "CMIP7 Variable Groups", "Opportunity Status (from CMIP7 Variable Groups)", "Comments").
			Link("CMIP7 Frequency", "tblFreq").
			Link("Temporal Shape", "tblTS").
			Link("Spatial Shape", "tblSS").
			Link("Coordinates", "tblDim").
			Link("Physical Parameter", "tblPPcopy").
			Link("Modeling Realm", "tblRealm").
			Link("Table", "tblTI").
			Link("Cell Methods", "tblCM").
			Link("Cell Measures", "tblCMe").
			Rec("recVarTas",
				"UID", "uid-tas",
				"CMIP6 Compound Name", "Amon.tas",
				"Title", "Near-Surface Air Temperature",
				"Type", "real",
				"Description", " near-surface (usually, 2 meter) air\\_temperature ",
				"CMIP7 Variable Groups", "vg-tas-high, vg-tas-medium",
				"Opportunity Status (from CMIP7 Variable Groups)", List("Accepted", "Under review"),
				"Comments", "drop me",
				"CMIP7 Frequency", Links("recFreqMon"),
				"Temporal Shape", Links("recTSmean"),
				"Spatial Shape", Links("recSSxy"),
				"Coordinates", Links("recDimH2m"),
				"Physical Parameter", Links("recPPcopyTas"),
				"Modeling Realm", Links("recRealmAtmos"),
				"Table", Links("recTIAmon"),
				"Cell Methods", Links("recCMmean"),
				"Cell Measures", Links("recCMeArea")).
			Rec("recVarPr",
				"UID", "uid-pr",
				"CMIP6 Compound Name", "Amon.pr",
				"Title", "Precipitation",
				"Type", "real",
				"Description", "includes both liquid and solid phases",
				"CMIP7 Variable Groups", "vg-pr-low, vg-junk",
				"Opportunity Status (from CMIP7 Variable Groups)", List("Under review", "Rejected"),
				"CMIP7 Frequency", Links("recFreqMon"),
				"Temporal Shape", Links("recTSmean"),
				"Spatial Shape", Links("recSSxy"),
				"Physical Parameter", Links("recPPcopyPr"),
				"Modeling Realm", Links("recRealmAtmos"),
				"Table", Links("recTIAmon"),
				"Cell Methods", Links("recCMmean"),
				"Cell Measures", Links("recCMeArea")).
			Rec("recVarPs",
				"UID", "uid-ps",
				"CMIP6 Compound Name", "Amon.ps",
				"Title", "Surface Air Pressure",
				"Type", "real",
				"Positive Direction", "",
				"CMIP7 Variable Groups", "vg-core",
				"Opportunity Status (from CMIP7 Variable Groups)", List("Accepted"),
				"CMIP7 Frequency", Links("recFreqMon"),
				"Temporal Shape", Links("recTSmean"),
				"Spatial Shape", Links("recSSxy"),
				"Physical Parameter", Links("recPPcopyPs"),
				"Modeling Realm", Links("recRealmAtmos", "recRealmLand"),
				"Table", Links("recTIAmon")).
			Rec("recVarOrphan",
				"UID", "uid-orphan",
				"CMIP6 Compound Name", "Amon.orphan",
				"Title", "Unrequested",
				"Type", "real",
				"CMIP7 Variable Groups", "",
				"Opportunity Status (from CMIP7 Variable Groups)", List()),
		Table("tblPPcopy", "Physical Parameter").
			Fields("UID", "Name").
			Rec("recPPcopyTas", "UID", "pp-tas", "Name", "tas").
			Rec("recPPcopyPr", "UID", "pp-pr", "Name", "pr").
			Rec("recPPcopyPs", "UID", "pp-ps", "Name", "ps"),
		Table("tblFreq", "CMIP7 Frequency").
			Fields("Name").
			Rec("recFreqMon", "Name", "mon"),
		Table("tblTS", "Temporal Shape").
			Fields("Name", "Comments").
			Rec("recTSmean", "Name", "time-intv", "Comments", "mean over interval"),
		Table("tblSS", "Spatial Shape").
			Fields("Name").
			Link("Dimensions", "tblDim").
			Rec("recSSxy", "Name", "XY-na", "Dimensions", Links("recDimLon", "recDimLat")),
		Table("tblDim", "Coordinate or Dimension").
			Fields("Name").
			Rec("recDimLon", "Name", "longitude").
			Rec("recDimLat", "Name", "latitude").
			Rec("recDimH2m", "Name", "height2m"),
		Table("tblRealm", "Modeling Realm").
			Fields("id", "Name").
			Rec("recRealmAtmos", "id", "atmos", "Name", "Atmosphere").
			Rec("recRealmLand", "id", "land", "Name", "Land"),
		Table("tblTI", "Table Identifiers").
			Fields("Name", "Comment").
			Rec("recTIAmon", "Name", "Amon", "Comment", "monthly atmosphere"),
		Table("tblCM", "Cell Methods").
			Fields("Cell Methods", "Comments").
			Rec("recCMmean", "Cell Methods", "area: time: mean", "Comments", "drop me"),
		Table("tblCMe", "Cell Measures").
			Fields("Name").
			Rec("recCMeArea", "Name", "area: areacella"),
	)
}

func parameters() *export.Base {
	return Base(
		Table("tblPP", "Physical Parameter").
			Fields("UID", "Name", "Units", "Proposed CF Standard Name", "Comments").
			Link("CF Standard Name", "tblCF").
			Rec("recPPtas", "UID", "pp-tas", "Name", "tas", "Units", "K", "CF Standard Name", Links("recCFtas")).
			Rec("recPPpr", "UID", "pp-pr", "Name", "pr", "Units", "kg m-2 s-1", "CF Standard Name", Links("recCFpr")).
			Rec("recPPps", "UID", "pp-ps", "Name", "ps", "Units", "Pa", "Proposed CF Standard Name", "surface_air_pressure"),
		Table("tblCF", "CF Standard Name").
			Fields("name", "Comments").
			Rec("recCFtas", "name", "air_temperature").
			Rec("recCFpr", "name", "precipitation_flux"),
	)
}
