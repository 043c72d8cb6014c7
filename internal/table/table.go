// Package table is the record/table/link model of a unified data request.
// Link-valued attributes hold Link values that are resolved through the
// owning Set at query time; a Link never owns its target.
package table

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/zeebo/errs"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/export"
)

var (
	// Error is the class of table model errors.
	Error = errs.Class("table")
	// ErrNotFound is returned (wrapped) for missing tables and records.
	ErrNotFound = errors.New("not found")
)

// AttrName derives an attribute name from a field name. The name is trimmed
// and lower-cased; spaces, dots, hyphens and hashes become underscores;
// parentheses and commas are removed.
func AttrName(field string) string {
	return attrReplacer.Replace(strings.ToLower(strings.TrimSpace(field)))
}

var attrReplacer = strings.NewReplacer(
	" ", "_", ".", "_", "-", "_", "#", "_",
	"(", "", ")", "", ",", "",
)

// Field describes one attribute of a table.
type Field struct {
	// Name is the field name as exported.
	Name string
	// Attr is the attribute name records are keyed by.
	Attr string
	// LinkedTableID and LinkedTable identify the target of a link field.
	LinkedTableID string
	LinkedTable   string
}

// IsLink reports whether the field holds links to another table.
func (f *Field) IsLink() bool { return f.LinkedTableID != "" }

// Link is a non-owning reference to a record of another table.
type Link struct {
	TableID  string
	Table    string
	RecordID string
}

func (l Link) String() string { return l.Table + "/" + l.RecordID }

// Record is one row. Attributes absent from the export are absent here too,
// so Has is the presence check.
type Record struct {
	ID    string
	attrs map[string]any
}

func newRecord(id string) *Record {
	return &Record{ID: id, attrs: make(map[string]any)}
}

// Has reports whether the attribute is present.
func (r *Record) Has(attr string) bool {
	_, ok := r.attrs[attr]
	return ok
}

// Get returns the raw attribute value.
func (r *Record) Get(attr string) (any, bool) {
	v, ok := r.attrs[attr]
	return v, ok
}

// String returns a scalar attribute as text. Lists are joined with ", ".
func (r *Record) String(attr string) string {
	switch v := r.attrs[attr].(type) {
	case []Link:
		ids := make([]string, len(v))
		for i, l := range v {
			ids[i] = l.RecordID
		}
		return strings.Join(ids, ", ")
	case []any, []string:
		return strings.Join(export.Strings(v), ", ")
	default:
		return export.ValueString(v)
	}
}

// Strings returns the attribute as a list of strings.
func (r *Record) Strings(attr string) []string {
	v, ok := r.attrs[attr]
	if !ok {
		return nil
	}
	if links, ok := v.([]Link); ok {
		out := make([]string, len(links))
		for i, l := range links {
			out[i] = l.RecordID
		}
		return out
	}
	return export.Strings(v)
}

// Links returns the links held by a link attribute.
func (r *Record) Links(attr string) []Link {
	links, _ := r.attrs[attr].([]Link)
	return links
}

// IsLinks reports whether the attribute holds links.
func (r *Record) IsLinks(attr string) bool {
	_, ok := r.attrs[attr].([]Link)
	return ok
}

// Set assigns an attribute value.
func (r *Record) Set(attr string, v any) { r.attrs[attr] = v }

// Delete removes an attribute.
func (r *Record) Delete(attr string) { delete(r.attrs, attr) }

// Attrs returns the attribute names present, sorted.
func (r *Record) Attrs() []string {
	names := make([]string, 0, len(r.attrs))
	for k := range r.attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of attributes.
func (r *Record) Len() int { return len(r.attrs) }

func (r *Record) clone() *Record {
	c := newRecord(r.ID)
	for k, v := range r.attrs {
		if links, ok := v.([]Link); ok {
			c.attrs[k] = append([]Link(nil), links...)
			continue
		}
		c.attrs[k] = export.CloneValue(v)
	}
	return c
}

// Table is a named collection of records with field metadata.
type Table struct {
	ID          string
	Name        string
	Description string

	fields  []*Field
	byAttr  map[string]*Field
	records map[string]*Record
	order   []string
}

func newTable(id, name string) *Table {
	return &Table{
		ID:      id,
		Name:    name,
		byAttr:  make(map[string]*Field),
		records: make(map[string]*Record),
	}
}

func (t *Table) addField(f *Field) error {
	if prev, ok := t.byAttr[f.Attr]; ok {
		return Error.New("%s: fields %q and %q share attribute %q", t.Name, prev.Name, f.Name, f.Attr)
	}
	t.fields = append(t.fields, f)
	t.byAttr[f.Attr] = f
	return nil
}

func (t *Table) addRecord(r *Record) {
	if _, ok := t.records[r.ID]; !ok {
		t.order = append(t.order, r.ID)
	}
	t.records[r.ID] = r
}

// Record returns the record with the given identifier.
func (t *Table) Record(id string) (*Record, error) {
	r, ok := t.records[id]
	if !ok {
		return nil, fmt.Errorf("%s: record %q: %w", t.Name, id, ErrNotFound)
	}
	return r, nil
}

// Records returns all records in source order.
func (t *Table) Records() []*Record {
	out := make([]*Record, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.records[id])
	}
	return out
}

// IDs returns record identifiers in source order.
func (t *Table) IDs() []string { return append([]string(nil), t.order...) }

// Len returns the number of records.
func (t *Table) Len() int { return len(t.order) }

// Fields returns the field metadata in declaration order.
func (t *Table) Fields() []*Field { return t.fields }

// Field returns the field for an attribute.
func (t *Table) Field(attr string) (*Field, bool) {
	f, ok := t.byAttr[attr]
	return f, ok
}

// HasAttr reports whether the table declares the attribute.
func (t *Table) HasAttr(attr string) bool {
	_, ok := t.byAttr[attr]
	return ok
}

// RenameAttr renames an attribute in the field metadata and every record.
// Renaming an absent attribute is a no-op; renaming onto a declared
// attribute fails.
func (t *Table) RenameAttr(old, new string) error {
	f, ok := t.byAttr[old]
	if !ok {
		return nil
	}
	if _, exists := t.byAttr[new]; exists {
		return Error.New("%s: cannot rename attribute %q to %q: already defined", t.Name, old, new)
	}
	delete(t.byAttr, old)
	f.Attr = new
	t.byAttr[new] = f
	for _, r := range t.records {
		if v, ok := r.attrs[old]; ok {
			delete(r.attrs, old)
			r.attrs[new] = v
		}
	}
	return nil
}

// DeleteRecord removes a record and reports whether it existed.
func (t *Table) DeleteRecord(id string) bool {
	if _, ok := t.records[id]; !ok {
		return false
	}
	delete(t.records, id)
	for i, rid := range t.order {
		if rid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

func (t *Table) clone() *Table {
	c := newTable(t.ID, t.Name)
	c.Description = t.Description
	for _, f := range t.fields {
		cf := *f
		c.fields = append(c.fields, &cf)
		c.byAttr[cf.Attr] = &cf
	}
	for _, id := range t.order {
		c.addRecord(t.records[id].clone())
	}
	return c
}
