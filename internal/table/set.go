package table

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/export"
)

// CanonicalNames maps table names of working exports to the names used by
// the query and metadata engines.
var CanonicalNames = map[string]string{
	"Experiment":              "Experiments",
	"Priority level":          "Priority Level",
	"Variable":                "Variables",
	"Coordinate or Dimension": "Coordinates and Dimensions",
	"Physical Parameter":      "Physical Parameters",
}

// Set is the unified table set of one content version.
type Set struct {
	Version string

	tables map[string]*Table
	order  []string
	byID   map[string]string
}

func newSet(version string) *Set {
	return &Set{
		Version: version,
		tables:  make(map[string]*Table),
		byID:    make(map[string]string),
	}
}

// FromUnified builds a table set from a consolidated export. Empty records
// are skipped, table names are normalised with CanonicalNames, and links to
// absent tables or records are pruned.
func FromUnified(u *export.Unified, log *zap.Logger) (*Set, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := newSet(u.Version)

	idToName := make(map[string]string, u.Base.Len())
	for _, name := range u.Base.Names() {
		t, _ := u.Base.Get(name)
		if prev, ok := idToName[t.ID]; ok && t.ID != "" {
			return nil, Error.New("tables %q and %q share identifier %q", prev, name, t.ID)
		}
		idToName[t.ID] = name
	}

	for _, name := range u.Base.Names() {
		raw, _ := u.Base.Get(name)
		t, err := buildTable(name, raw, idToName)
		if err != nil {
			return nil, err
		}
		s.add(t)
	}

	for _, old := range sortedKeys(CanonicalNames) {
		if err := s.RenameTable(old, CanonicalNames[old]); err != nil {
			return nil, err
		}
	}

	s.pruneDangling(log)
	return s, nil
}

func buildTable(name string, raw *export.Table, idToName map[string]string) (*Table, error) {
	t := newTable(raw.ID, name)
	t.Description = raw.Description
	byName := make(map[string]*Field, raw.Fields.Len())
	for pair := raw.Fields.Oldest(); pair != nil; pair = pair.Next() {
		f := &Field{
			Name:          pair.Value.Name,
			Attr:          AttrName(pair.Value.Name),
			LinkedTableID: pair.Value.LinkedTableID,
		}
		if f.IsLink() {
			f.LinkedTable = idToName[f.LinkedTableID]
		}
		if err := t.addField(f); err != nil {
			return nil, err
		}
		byName[f.Name] = f
	}

	for pair := raw.Records.Oldest(); pair != nil; pair = pair.Next() {
		if len(pair.Value) == 0 {
			continue
		}
		r := newRecord(pair.Key)
		for _, key := range recordKeys(pair.Value) {
			v := pair.Value[key]
			f, ok := byName[key]
			if !ok {
				// Undeclared attributes become plain fields.
				f = &Field{Name: key, Attr: AttrName(key)}
				if err := t.addField(f); err != nil {
					return nil, err
				}
				byName[key] = f
			}
			if r.Has(f.Attr) {
				return nil, Error.New("%s: record %q: attribute %q defined twice", name, pair.Key, f.Attr)
			}
			if f.IsLink() {
				r.attrs[f.Attr] = toLinks(f, v)
				continue
			}
			r.attrs[f.Attr] = export.CloneValue(v)
		}
		t.addRecord(r)
	}
	return t, nil
}

func toLinks(f *Field, v any) []Link {
	ids := export.Strings(v)
	links := make([]Link, 0, len(ids))
	for _, id := range ids {
		links = append(links, Link{TableID: f.LinkedTableID, Table: f.LinkedTable, RecordID: id})
	}
	return links
}

func (s *Set) add(t *Table) {
	if _, ok := s.tables[t.Name]; !ok {
		s.order = append(s.order, t.Name)
	}
	s.tables[t.Name] = t
	s.byID[t.ID] = t.Name
}

// pruneDangling drops links whose target table or record is absent.
// Attributes left without links are removed.
func (s *Set) pruneDangling(log *zap.Logger) {
	for _, name := range s.order {
		t := s.tables[name]
		for _, r := range t.Records() {
			for _, attr := range r.Attrs() {
				links, ok := r.attrs[attr].([]Link)
				if !ok {
					continue
				}
				kept := links[:0]
				for _, l := range links {
					if _, err := s.Resolve(l); err == nil {
						kept = append(kept, l)
					}
				}
				if len(kept) == len(links) {
					continue
				}
				log.Debug("pruned dangling links",
					zap.String("table", name),
					zap.String("record", r.ID),
					zap.String("attribute", attr),
					zap.Int("removed", len(links)-len(kept)))
				if len(kept) == 0 {
					delete(r.attrs, attr)
					continue
				}
				r.attrs[attr] = kept
			}
		}
	}
}

// Table returns the named table.
func (s *Set) Table(name string) (*Table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("table %q: %w", name, ErrNotFound)
	}
	return t, nil
}

// Has reports whether the named table exists.
func (s *Set) Has(name string) bool {
	_, ok := s.tables[name]
	return ok
}

// Names returns table names in source order.
func (s *Set) Names() []string { return append([]string(nil), s.order...) }

// TableByID returns the table with the given identifier.
func (s *Set) TableByID(id string) (*Table, bool) {
	name, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	t, ok := s.tables[name]
	return t, ok
}

// RenameTable renames a table. An absent source is a no-op; renaming onto
// an existing table fails.
func (s *Set) RenameTable(old, new string) error {
	t, ok := s.tables[old]
	if !ok {
		return nil
	}
	if _, exists := s.tables[new]; exists {
		return Error.New("cannot rename table %q to %q: table exists", old, new)
	}
	delete(s.tables, old)
	t.Name = new
	s.tables[new] = t
	s.byID[t.ID] = new
	for i, n := range s.order {
		if n == old {
			s.order[i] = new
		}
	}
	for _, other := range s.tables {
		for _, f := range other.fields {
			if f.LinkedTableID == t.ID {
				f.LinkedTable = new
			}
		}
		for _, r := range other.records {
			for _, v := range r.attrs {
				links, ok := v.([]Link)
				if !ok {
					continue
				}
				for i := range links {
					if links[i].TableID == t.ID {
						links[i].Table = new
					}
				}
			}
		}
	}
	return nil
}

// Resolve returns the record a link points to.
func (s *Set) Resolve(l Link) (*Record, error) {
	t, ok := s.TableByID(l.TableID)
	if !ok {
		return nil, fmt.Errorf("link %s: table %q: %w", l, l.TableID, ErrNotFound)
	}
	return t.Record(l.RecordID)
}

// Clone returns a deep copy, so that callers may mutate tables (for example
// quality-control removal of opportunities) without affecting others.
func (s *Set) Clone() *Set {
	c := newSet(s.Version)
	for _, name := range s.order {
		c.add(s.tables[name].clone())
	}
	return c
}

func recordKeys(r export.Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
