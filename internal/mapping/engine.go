package mapping

import (
	"strings"

	"go.uber.org/zap"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/api"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/export"
)

// Engine consolidates exports according to a mapping spec.
type Engine struct {
	spec *api.MappingSpec
	log  *zap.Logger
}

// NewEngine validates spec and returns an engine. A nil logger discards
// diagnostics.
func NewEngine(spec *api.MappingSpec, log *zap.Logger) (*Engine, error) {
	if err := Validate(spec); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{spec: spec, log: log}, nil
}

// Spec returns the mapping spec driving the engine.
func (e *Engine) Spec() *api.MappingSpec { return e.spec }

// Consolidate turns content into a unified export for the given content
// version. A single-partition export only receives version-consistency
// fixes; a partitioned export is fully mapped. The input is not modified
// and no partial result is returned on error.
func (e *Engine) Consolidate(content *export.Content, version string) (*export.Unified, error) {
	switch content.Shape() {
	case export.ShapeUnified:
		return e.passThrough(content, version)
	case export.ShapePartitioned:
		return e.consolidate(content, version)
	default:
		return nil, Error.New("unexpected export structure: %d top-level partitions", content.Len())
	}
}

func (e *Engine) passThrough(content *export.Content, version string) (*export.Unified, error) {
	name := content.Names()[0]
	src, _ := content.Get(name)
	base := src.Clone()

	if inferred, ok := strings.CutPrefix(name, export.UnifiedBaseName+" "); ok {
		switch {
		case version == "":
			version = inferred
		case inferred != version:
			e.log.Warn("content version inferred from the export differs from the requested version",
				zap.String("inferred", inferred),
				zap.String("requested", version))
		}
	}
	if err := ApplyConsistency(e.spec.Consistency, base, version, api.ScopeUnified, e.log); err != nil {
		return nil, err
	}
	return &export.Unified{Version: version, Base: base}, nil
}

// sourceTable returns the first acceptable source table of a rule present in
// the export.
func sourceTable(content *export.Content, rule api.TableRule) (*export.Table, bool) {
	base, ok := content.Get(rule.SourceBase)
	if !ok {
		return nil, false
	}
	for _, name := range rule.SourceTable {
		if t, ok := base.Get(name); ok {
			return t, true
		}
	}
	return nil, false
}

func (e *Engine) consolidate(content *export.Content, version string) (*export.Unified, error) {
	work := content.Clone()
	for _, name := range work.Names() {
		b, _ := work.Get(name)
		if err := ApplyConsistency(e.spec.Consistency, b, version, api.ScopePartitioned, e.log); err != nil {
			return nil, err
		}
	}

	var missingBases, missingTables []string
	seenBase := map[string]bool{}
	for _, rule := range e.spec.Tables {
		if _, ok := work.Get(rule.SourceBase); !ok {
			if !seenBase[rule.SourceBase] {
				seenBase[rule.SourceBase] = true
				missingBases = append(missingBases, rule.SourceBase)
			}
			continue
		}
		if _, ok := sourceTable(work, rule); !ok {
			missingTables = append(missingTables, rule.SourceTable[0])
		}
	}
	if len(missingBases) > 0 {
		e.log.Warn("missing partitions when consolidating", zap.Strings("partitions", missingBases))
	}
	if len(missingTables) > 0 {
		e.log.Info("missing tables when consolidating (not necessarily problematic)", zap.Strings("tables", missingTables))
	}

	excluded := NewExclusions()
	for _, rule := range e.spec.Tables {
		src, ok := sourceTable(work, rule)
		if !ok {
			continue
		}
		excluded = e.filterTable(rule, src, excluded)
	}
	for _, name := range excluded.Tables() {
		e.log.Debug("filtered records", zap.String("table", name), zap.Int("count", excluded.CountFor(name)))
	}
	e.log.Info("filtered records in total", zap.Int("count", excluded.Len()))

	out := export.NewUnified(version)
	idx := newMatchIndex()
	for _, rule := range e.spec.Tables {
		src, ok := sourceTable(work, rule)
		if !ok {
			continue
		}
		e.log.Debug("mapping table",
			zap.String("base", rule.SourceBase),
			zap.String("source", src.Name),
			zap.String("table", rule.Name))
		dst, err := e.mapTable(work, rule, src, excluded, idx)
		if err != nil {
			return nil, err
		}
		out.Base.Set(rule.Name, dst)
	}
	return out, nil
}

func (e *Engine) mapTable(work *export.Content, rule api.TableRule, src *export.Table, excluded *Exclusions, idx *matchIndex) (*export.Table, error) {
	drop := make(map[string]bool, len(rule.Drop))
	for _, d := range rule.Drop {
		drop[d] = true
	}
	canonical := func(name string) string {
		if to, ok := rule.Rename[name]; ok {
			return to
		}
		return name
	}

	dst := export.NewTable(src.ID, rule.Name)
	dst.BaseID = src.BaseID
	dst.BaseName = src.BaseName
	dst.Description = src.Description
	for pair := src.Fields.Oldest(); pair != nil; pair = pair.Next() {
		if drop[pair.Value.Name] {
			continue
		}
		f := pair.Value
		f.Name = canonical(f.Name)
		dst.Fields.Set(pair.Key, f)
	}
	for pair := src.Records.Oldest(); pair != nil; pair = pair.Next() {
		if excluded.Contains(pair.Key) {
			continue
		}
		rec := make(export.Record, len(pair.Value))
		for k, v := range pair.Value {
			if drop[k] {
				continue
			}
			rec[canonical(k)] = e.scrub(export.CloneValue(v), k, rule.Name, pair.Key, excluded)
		}
		dst.Records.Set(pair.Key, rec)
	}

	for _, link := range rule.Links {
		if err := e.mapLink(work, rule, src, dst, link, canonical(link.Attribute), excluded, idx); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func (e *Engine) mapLink(work *export.Content, rule api.TableRule, src, dst *export.Table, link api.CrossLink, attr string, excluded *Exclusions, idx *matchIndex) error {
	lt := linkTarget{link: link, table: rule.Name}
	// bind looks the target tables up once a record needs them.
	bind := func() error {
		targetBase, ok := work.Get(link.Base)
		if !ok {
			return Error.New("%s: attribute %q links into missing partition %q", rule.Name, link.Attribute, link.Base)
		}
		if lt.target, ok = targetBase.Get(link.Table); !ok {
			return Error.New("%s: attribute %q links into missing table %q of %q", rule.Name, link.Attribute, link.Table, link.Base)
		}
		if link.EntryType == api.EntryRecordID {
			srcBase, _ := work.Get(rule.SourceBase)
			if lt.copies, ok = srcBase.Get(link.BaseCopyOfTable); !ok {
				return Error.New("%s: attribute %q needs table %q in %q", rule.Name, link.Attribute, link.BaseCopyOfTable, rule.SourceBase)
			}
		}
		return nil
	}

	for pair := src.Records.Oldest(); pair != nil; pair = pair.Next() {
		if excluded.Contains(pair.Key) {
			continue
		}
		v, ok := pair.Value[link.Attribute]
		if !ok || !export.Truthy(v) {
			continue
		}
		if lt.target == nil {
			if err := bind(); err != nil {
				return err
			}
		}
		var ids []string
		for _, entry := range linkValues(link, v) {
			if id := e.resolve(lt, entry, idx, excluded); id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return Error.New("%s (record %q): no records could be mapped for attribute %q", rule.Name, pair.Key, link.Attribute)
		}
		rec, _ := dst.Records.Get(pair.Key)
		rec[attr] = export.ListValue(ids)
	}

	if lt.target == nil {
		if err := bind(); err != nil {
			e.log.Info("link target absent and no record carries the attribute",
				zap.String("table", rule.Name),
				zap.String("attribute", link.Attribute),
				zap.Error(err))
			return nil
		}
	}
	if fid, f, ok := src.FieldByName(link.Attribute); ok {
		if df, ok := dst.Fields.Get(fid); ok {
			f = df
		} else {
			f.Name = attr
		}
		f.LinkedTableID = lt.target.ID
		f.Type = "multipleRecordLinks"
		dst.Fields.Set(fid, f)
	}
	return nil
}
