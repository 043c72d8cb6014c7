// Package metadata assembles the flat CMOR metadata of variables by
// following the links of the Variables table: frequency, realm, standard
// name, dimensions, cell methods and the CMOR table the variable belongs to.
package metadata

import (
	"slices"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/query"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/table"
)

// Error is the class of metadata resolution errors.
var Error = errs.Class("metadata")

// Metadata attribute names.
const (
	AttrFrequency            = "frequency"
	AttrModelingRealm        = "modeling_realm"
	AttrStandardName         = "standard_name"
	AttrStandardNameProposed = "standard_name_proposed"
	AttrUnits                = "units"
	AttrCellMethods          = "cell_methods"
	AttrCellMeasures         = "cell_measures"
	AttrLongName             = "long_name"
	AttrComment              = "comment"
	AttrDimensions           = "dimensions"
	AttrOutName              = "out_name"
	AttrType                 = "type"
	AttrPositive             = "positive"
	AttrSpatialShape         = "spatial_shape"
	AttrTemporalShape        = "temporal_shape"
	AttrTable                = "table"
)

// Tables holding CMOR table identifiers, preferred first.
const (
	TableIdentifiers       = "Table Identifiers"
	LegacyTableIdentifiers = "CMIP6 Table Identifiers (legacy)"
)

// frequencyAttrs are the variable attributes that may hold the frequency,
// preferred first.
var frequencyAttrs = []string{
	table.AttrName("Frequency"),
	table.AttrName("CMIP7 Frequency"),
	table.AttrName("CMIP6 Frequency (legacy)"),
}

const legacyFrequencyAttr = "cmip6_frequency_legacy"

// Content versions in which some variables lack a frequency link and use
// their CMIP6 frequency instead.
var legacyFrequencyVersions = []string{"v1.0", "v1.1"}

var substitutions = strings.NewReplacer(`\_`, "_")

// Options restricts the variables resolved. Empty lists select everything.
type Options struct {
	CompoundNames []string
	CMORTables    []string
	// CMORVariables filters by out_name.
	CMORVariables []string
}

// Resolver reads variable metadata from a table set. It never modifies the
// set.
type Resolver struct {
	ctx query.Context
	log *zap.Logger
	set *table.Set

	vars       *table.Table
	nameAttr   string
	freqAttr   string
	tableAttr  string
	realmAttr  string
	legacyFreq bool
}

// NewResolver checks that set holds what variable metadata is read from.
func NewResolver(set *table.Set, ctx query.Context) (*Resolver, error) {
	if ctx.Version == "" {
		ctx.Version = set.Version
	}
	if ctx.Version == "" {
		return nil, Error.New("content version is required to resolve frequencies")
	}
	r := &Resolver{ctx: ctx, log: ctx.Log, set: set}
	if r.log == nil {
		r.log = zap.NewNop()
	}

	var err error
	if r.vars, err = set.Table(query.VariableTable); err != nil {
		return nil, Error.Wrap(err)
	}

	newer, err := ctx.AtLeast(1, 2)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	r.nameAttr = query.AttrCompoundName
	if newer {
		r.nameAttr = "cmip6_compound_name"
	}

	for _, attr := range frequencyAttrs {
		if r.vars.HasAttr(attr) {
			r.freqAttr = attr
			break
		}
	}
	if r.freqAttr == "" {
		return nil, Error.New("%s: no attribute gives the frequency (tried %v)", query.VariableTable, frequencyAttrs)
	}

	switch {
	case set.Has(TableIdentifiers):
		r.tableAttr, r.realmAttr = "table", "modelling_realm"
	case set.Has(LegacyTableIdentifiers):
		r.tableAttr, r.realmAttr = "cmip6_table_legacy", "modelling_realm___primary"
	default:
		return nil, Error.New("no table holds CMOR table identifiers (tried %q and %q)", TableIdentifiers, LegacyTableIdentifiers)
	}
	r.legacyFreq = slices.Contains(legacyFrequencyVersions, strings.TrimSpace(ctx.Version))
	return r, nil
}

// Resolve is shorthand for NewResolver followed by Resolver.Resolve.
func Resolve(set *table.Set, ctx query.Context, opts Options) (*Catalog, error) {
	r, err := NewResolver(set, ctx)
	if err != nil {
		return nil, err
	}
	return r.Resolve(opts)
}

// Resolve returns the metadata of the selected variables.
func (r *Resolver) Resolve(opts Options) (*Catalog, error) {
	byName := make(map[string]string, r.vars.Len())
	for _, v := range r.vars.Records() {
		name := v.String(r.nameAttr)
		if name == "" {
			return nil, Error.New("%s: record %q has no %s", query.VariableTable, v.ID, r.nameAttr)
		}
		if prev, ok := byName[name]; ok {
			return nil, Error.New("compound name %q is not unique (records %q and %q)", name, prev, v.ID)
		}
		byName[name] = v.ID
	}

	if len(opts.CMORTables) > 0 {
		r.log.Info("retaining only these CMOR tables", zap.Strings("tables", opts.CMORTables))
	}
	if len(opts.CMORVariables) > 0 {
		r.log.Info("retaining only these CMOR variables", zap.Strings("variables", opts.CMORVariables))
	}
	if len(opts.CompoundNames) > 0 {
		r.log.Info("retaining only these compound names", zap.Strings("compound_names", opts.CompoundNames))
	}

	found := make(map[string]*Variable)
	var names []string
	for _, v := range r.vars.Records() {
		name := v.String(r.nameAttr)
		if len(opts.CompoundNames) > 0 && !slices.Contains(opts.CompoundNames, name) {
			continue
		}
		info, err := r.variable(v, name, opts)
		if err != nil {
			return nil, err
		}
		if info == nil {
			continue
		}
		if _, ok := found[name]; ok {
			return nil, Error.New("non-unique variable name %q", name)
		}
		found[name] = info
		names = append(names, name)
	}

	query.SortFold(names)
	c := &Catalog{Version: r.ctx.Version, vars: orderedmap.New[string, *Variable]()}
	for _, name := range names {
		c.vars.Set(name, found[name])
	}
	return c, nil
}

// variable assembles one variable, or returns nil when a CMOR filter
// excludes it.
func (r *Resolver) variable(v *table.Record, name string, opts Options) (*Variable, error) {
	tables, err := r.follow(v, name, r.tableAttr, 1, 1)
	if err != nil {
		return nil, err
	}
	cmorTable := tables[0].String("name")
	if len(opts.CMORTables) > 0 && !slices.Contains(opts.CMORTables, cmorTable) {
		return nil, nil
	}

	frequency, err := r.frequency(v, name)
	if err != nil {
		return nil, err
	}

	temporal, err := r.follow(v, name, "temporal_shape", 1, 1)
	if err != nil {
		return nil, err
	}

	cellMethods := ""
	cms, err := r.follow(v, name, "cell_methods", 0, 1)
	if err != nil {
		return nil, err
	}
	if len(cms) == 1 {
		cellMethods = cms[0].String("cell_methods")
	}

	spatial, err := r.follow(v, name, "spatial_shape", 1, 1)
	if err != nil {
		return nil, err
	}
	var dims []string
	for _, l := range spatial[0].Links("dimensions") {
		d, err := r.set.Resolve(l)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		dims = append(dims, d.String("name"))
	}
	dims = append(dims, temporal[0].String("name"))
	coords, err := r.follow(v, name, "coordinates", 0, -1)
	if err != nil {
		return nil, err
	}
	for _, c := range coords {
		dims = append(dims, c.String("name"))
	}

	params, err := r.follow(v, name, "physical_parameter", 1, 1)
	if err != nil {
		return nil, err
	}
	param := params[0]
	outName := param.String("name")
	if len(opts.CMORVariables) > 0 && !slices.Contains(opts.CMORVariables, outName) {
		return nil, nil
	}

	standardAttr, standardName, err := r.standardName(param, name)
	if err != nil {
		return nil, err
	}

	realms, err := r.follow(v, name, r.realmAttr, 1, -1)
	if err != nil {
		return nil, err
	}
	realmIDs := make([]string, len(realms))
	for i, realm := range realms {
		realmIDs[i] = realm.String("id")
	}

	measures, err := r.follow(v, name, "cell_measures", 0, -1)
	if err != nil {
		return nil, err
	}
	measureNames := make([]string, len(measures))
	for i, m := range measures {
		measureNames[i] = m.String("name")
	}

	info := newVariable(name)
	put := func(attr, value string) {
		info.attrs.Set(attr, substitutions.Replace(strings.TrimSpace(value)))
	}
	put(AttrFrequency, frequency)
	put(AttrModelingRealm, strings.Join(realmIDs, " "))
	put(standardAttr, standardName)
	put(AttrUnits, param.String("units"))
	put(AttrCellMethods, cellMethods)
	put(AttrCellMeasures, strings.Join(measureNames, " "))
	put(AttrLongName, v.String("title"))
	put(AttrComment, v.String("description"))
	put(AttrDimensions, strings.Join(dims, " "))
	put(AttrOutName, outName)
	put(AttrType, v.String("type"))
	put(AttrPositive, v.String("positive_direction"))
	put(AttrSpatialShape, spatial[0].String("name"))
	put(AttrTemporalShape, temporal[0].String("name"))
	put(AttrTable, cmorTable)
	return info, nil
}

// follow resolves the links of a variable attribute, checking there are at
// least min and, unless max is negative, at most max of them.
func (r *Resolver) follow(v *table.Record, name, attr string, min, max int) ([]*table.Record, error) {
	links := v.Links(attr)
	if len(links) < min || (max >= 0 && len(links) > max) {
		want := "exactly one"
		switch {
		case min == 0 && max == 1:
			want = "at most one"
		case max < 0:
			want = "at least one"
		}
		return nil, Error.New("variable %q should have %s %s link, found %d", name, want, attr, len(links))
	}
	out := make([]*table.Record, 0, len(links))
	for _, l := range links {
		rec, err := r.set.Resolve(l)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *Resolver) frequency(v *table.Record, name string) (string, error) {
	value, ok := v.Get(r.freqAttr)
	if !ok && r.legacyFreq {
		legacy, err := r.follow(v, name, legacyFrequencyAttr, 1, 1)
		if err != nil {
			return "", err
		}
		r.log.Debug("using CMIP6 frequency", zap.String("variable", name))
		return legacy[0].String("name"), nil
	}
	if !ok {
		return "", Error.New("variable %q has no %s", name, r.freqAttr)
	}
	if _, isLinks := value.([]table.Link); isLinks {
		freq, err := r.follow(v, name, r.freqAttr, 1, 1)
		if err != nil {
			return "", err
		}
		return freq[0].String("name"), nil
	}
	values := v.Strings(r.freqAttr)
	if len(values) == 0 {
		return "", Error.New("variable %q has an empty %s", name, r.freqAttr)
	}
	return values[0], nil
}

// standardName returns the CF standard name of a physical parameter, or its
// proposed name. Exactly one of the two must be present.
func (r *Resolver) standardName(param *table.Record, name string) (attr, value string, err error) {
	hasCF, hasProposed := param.Has("cf_standard_name"), param.Has("proposed_cf_standard_name")
	switch {
	case hasCF && hasProposed:
		return "", "", Error.New("variable %q: physical parameter %q has both a standard name and a proposed standard name", name, param.String("name"))
	case hasProposed:
		return AttrStandardNameProposed, param.String("proposed_cf_standard_name"), nil
	case !hasCF:
		return "", "", Error.New("variable %q: physical parameter %q has neither a standard name nor a proposed standard name", name, param.String("name"))
	}
	links := param.Links("cf_standard_name")
	if links == nil {
		return AttrStandardName, param.String("cf_standard_name"), nil
	}
	if len(links) != 1 {
		return "", "", Error.New("variable %q: physical parameter %q should have one standard name, found %d", name, param.String("name"), len(links))
	}
	cf, err := r.set.Resolve(links[0])
	if err != nil {
		return "", "", Error.Wrap(err)
	}
	return AttrStandardName, cf.String("name"), nil
}
