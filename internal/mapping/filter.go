package mapping

import (
	"strings"

	"go.uber.org/zap"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/api"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/export"
)

// keep reports whether a record passes every filter of a rule.
func keep(filters []api.Filter, rec export.Record) bool {
	for _, f := range filters {
		if !evalFilter(f, rec) {
			return false
		}
	}
	return true
}

// evalFilter evaluates one filter. A record carrying none of the attribute's
// names fails. For "in" and "not in" the first present name is checked; list
// values pass "in" when any element is allowed and "not in" only when no
// element is disallowed.
func evalFilter(f api.Filter, rec export.Record) bool {
	var present []any
	for _, name := range f.Names() {
		if v, ok := rec[name]; ok {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return false
	}
	switch f.Operator {
	case api.OpNonEmpty:
		for _, v := range present {
			if export.Truthy(v) {
				return true
			}
		}
		return false
	case api.OpIn:
		return anyMember(present[0], f.Values)
	case api.OpNotIn:
		return !anyMember(present[0], f.Values)
	}
	return false
}

func anyMember(v any, values []string) bool {
	for _, s := range export.Strings(v) {
		for _, allowed := range values {
			if s == allowed {
				return true
			}
		}
	}
	return false
}

// filterTable evaluates a rule's filters over its source table and returns
// the accumulator extended with every failing record.
func (e *Engine) filterTable(rule api.TableRule, src *export.Table, excluded *Exclusions) *Exclusions {
	if len(rule.Filters) == 0 {
		return excluded
	}
	for pair := src.Records.Oldest(); pair != nil; pair = pair.Next() {
		if keep(rule.Filters, pair.Value) {
			continue
		}
		e.log.Debug("filtered record",
			zap.String("table", rule.Name),
			zap.String("record", pair.Key),
			zap.String("name", export.ValueString(pair.Value["Name"])))
		excluded.Add(rule.Name, pair.Key)
	}
	return excluded
}

// scrub removes references to excluded records from a value. Every string
// element of a list is checked. A string is treated as references only when
// it is made solely of comma-separated record identifiers.
func (e *Engine) scrub(v any, attr, table, rid string, excluded *Exclusions) any {
	if excluded.Len() == 0 {
		return v
	}
	switch x := v.(type) {
	case []any:
		kept := make([]any, 0, len(x))
		for _, item := range x {
			if s, ok := item.(string); ok && excluded.Contains(strings.TrimSpace(s)) {
				continue
			}
			kept = append(kept, item)
		}
		if len(kept) == len(x) {
			return v
		}
		e.reportLoss(table, attr, rid, len(x), len(kept))
		return kept
	case string:
		parts := strings.Split(x, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if !export.IsRecordRef(parts[i]) {
				return v
			}
		}
		kept := parts[:0:0]
		for _, p := range parts {
			if !excluded.Contains(p) {
				kept = append(kept, p)
			}
		}
		if len(kept) == len(parts) {
			return v
		}
		e.reportLoss(table, attr, rid, len(parts), len(kept))
		return strings.Join(kept, ",")
	default:
		return v
	}
}

func (e *Engine) reportLoss(table, attr, rid string, before, after int) {
	if before == after {
		return
	}
	fields := []zap.Field{
		zap.String("table", table),
		zap.String("attribute", attr),
		zap.String("record", rid),
		zap.Int("references", before),
		zap.Int("removed", before-after),
	}
	if after == 0 {
		e.log.Warn("filtered every reference of a record attribute", fields...)
		return
	}
	e.log.Debug("filtered some references of a record attribute", fields...)
}
