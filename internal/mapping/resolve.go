package mapping

import (
	"regexp"

	"go.uber.org/zap"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/api"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/export"
)

var splitRe = regexp.MustCompile(`\s*,\s*`)

// matchIndex caches, per target table and key, the record identifiers
// grouped by key value in source order.
type matchIndex struct {
	byKey map[indexKey]map[string][]string
}

type indexKey struct {
	base, table, key string
}

func newMatchIndex() *matchIndex {
	return &matchIndex{byKey: make(map[indexKey]map[string][]string)}
}

func (m *matchIndex) lookup(base string, t *export.Table, key string, value any) []string {
	k := indexKey{base: base, table: t.Name, key: key}
	idx, ok := m.byKey[k]
	if !ok {
		idx = make(map[string][]string)
		for pair := t.Records.Oldest(); pair != nil; pair = pair.Next() {
			v, ok := pair.Value[key]
			if !ok {
				continue
			}
			mk := export.MatchKey(v)
			idx[mk] = append(idx[mk], pair.Key)
		}
		m.byKey[k] = idx
	}
	return idx[export.MatchKey(value)]
}

// linkValues turns a link attribute into the list of entries to resolve.
func linkValues(link api.CrossLink, v any) []string {
	if link.Operation == api.OperationSplit {
		if s, ok := v.(string); ok {
			return splitRe.Split(s, -1)
		}
	}
	return export.Strings(v)
}

// linkTarget bundles what resolution of one link needs.
type linkTarget struct {
	link   api.CrossLink
	table  string // destination table name, for diagnostics
	target *export.Table
	copies *export.Table // only for record_id links
}

// resolve maps one entry to a target record identifier. It returns "" when
// nothing usable matched; excluded candidates are dropped, never retried.
func (e *Engine) resolve(lt linkTarget, entry string, idx *matchIndex, excluded *Exclusions) string {
	var matches []string
	switch lt.link.EntryType {
	case api.EntryRecordID:
		copyRec, ok := lt.copies.Records.Get(entry)
		if !ok {
			e.log.Debug("record copy not found",
				zap.String("table", lt.table),
				zap.String("attribute", lt.link.Attribute),
				zap.String("record", entry))
			return ""
		}
		for _, key := range lt.link.MapByKey {
			v, ok := copyRec[key]
			if !ok {
				continue
			}
			matches = idx.lookup(lt.link.Base, lt.target, key, v)
			if len(matches) == 1 {
				break
			}
		}
	case api.EntryName:
		matches = idx.lookup(lt.link.Base, lt.target, lt.link.MapByKey[0], entry)
	}

	var usable []string
	for _, id := range matches {
		if !excluded.Contains(id) {
			usable = append(usable, id)
		}
	}
	switch {
	case len(usable) == 0:
		if len(matches) == 0 {
			e.log.Debug("no matching record",
				zap.String("table", lt.table),
				zap.String("target", lt.link.Table),
				zap.String("attribute", lt.link.Attribute),
				zap.String("value", entry))
		}
		return ""
	case len(usable) > 1:
		e.log.Warn("ambiguous cross-link match, using first",
			zap.String("table", lt.table),
			zap.String("target", lt.link.Table),
			zap.String("attribute", lt.link.Attribute),
			zap.String("value", entry),
			zap.Strings("candidates", usable))
	}
	return usable[0]
}
