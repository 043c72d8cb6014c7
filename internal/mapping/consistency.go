package mapping

import (
	"sort"

	"go.uber.org/zap"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/api"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/export"
)

func ruleApplies(r api.ConsistencyRule, version, scope string) bool {
	if r.Version != "*" && r.Version != version {
		return false
	}
	rs := r.Scope
	if rs == "" {
		rs = api.ScopeUnified
	}
	return rs == api.ScopeAll || rs == scope
}

// ApplyConsistency renames and drops tables and fields of base in place,
// using the rules declared for version and scope. Renaming a table onto an
// existing name fails.
func ApplyConsistency(rules []api.ConsistencyRule, base *export.Base, version, scope string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	for _, r := range rules {
		if !ruleApplies(r, version, scope) {
			continue
		}
		for _, from := range sortedKeys(r.RenameTables) {
			to := r.RenameTables[from]
			t, ok := base.Get(from)
			if !ok {
				continue
			}
			if base.Has(to) {
				return Error.New("cannot rename table %q to %q: a table of that name exists", from, to)
			}
			log.Debug("renaming table", zap.String("from", from), zap.String("to", to))
			base.Rename(from, to)
			t.Name = to
		}
		for _, name := range r.DropTables {
			if base.Delete(name) {
				log.Debug("dropping table", zap.String("table", name))
			}
		}
		for _, fr := range r.Fields {
			t, ok := base.Get(fr.Table)
			if !ok {
				continue
			}
			for _, from := range sortedKeys(fr.Rename) {
				renameField(t, from, fr.Rename[from], log)
			}
			for _, name := range fr.Drop {
				dropField(t, name, log)
			}
		}
	}
	return nil
}

func renameField(t *export.Table, from, to string, log *zap.Logger) {
	id, f, ok := t.FieldByName(from)
	if !ok {
		return
	}
	log.Debug("renaming field", zap.String("table", t.Name), zap.String("from", from), zap.String("to", to))
	f.Name = to
	t.Fields.Set(id, f)
	for pair := t.Records.Oldest(); pair != nil; pair = pair.Next() {
		if v, ok := pair.Value[from]; ok {
			delete(pair.Value, from)
			pair.Value[to] = v
		}
	}
}

func dropField(t *export.Table, name string, log *zap.Logger) {
	id, _, ok := t.FieldByName(name)
	if !ok {
		return
	}
	log.Debug("dropping field", zap.String("table", t.Name), zap.String("field", name))
	t.Fields.Delete(id)
	for pair := t.Records.Oldest(); pair != nil; pair = pair.Next() {
		delete(pair.Value, name)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
