// Package export models the raw data request export: partitions (bases)
// holding tables, each table holding field metadata and records keyed by
// record identifier. Source order is preserved everywhere because several
// resolution rules pick the first match in source iteration order.
package export

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"github.com/zeebo/errs"
)

// Error is the class of export decoding errors.
var Error = errs.Class("export")

// UnifiedBaseName is the partition name of a consolidated export.
const UnifiedBaseName = "Data Request"

// Shape describes the top-level layout of an export.
type Shape int

const (
	ShapeUnknown Shape = iota
	// ShapeUnified is a single partition (a tagged release or a consolidated export).
	ShapeUnified
	// ShapePartitioned is the three partitions of a working export, plus an optional schema partition.
	ShapePartitioned
)

func (s Shape) String() string {
	switch s {
	case ShapeUnified:
		return "unified"
	case ShapePartitioned:
		return "partitioned"
	default:
		return "unknown"
	}
}

// Field is the metadata of one table column.
type Field struct {
	Name          string `json:"name"`
	Type          string `json:"type,omitempty"`
	LinkedTableID string `json:"linked_table_id,omitempty"`
	Description   string `json:"description,omitempty"`
}

// Record maps attribute (field) names to values as decoded from JSON.
type Record = map[string]any

// Table is one table of a partition.
type Table struct {
	ID          string                                 `json:"id"`
	Name        string                                 `json:"name"`
	BaseID      string                                 `json:"base_id,omitempty"`
	BaseName    string                                 `json:"base_name,omitempty"`
	Description string                                 `json:"description,omitempty"`
	Fields      *orderedmap.OrderedMap[string, Field]  `json:"fields"`
	Records     *orderedmap.OrderedMap[string, Record] `json:"records"`
}

// NewTable returns an empty table.
func NewTable(id, name string) *Table {
	return &Table{
		ID:      id,
		Name:    name,
		Fields:  orderedmap.New[string, Field](),
		Records: orderedmap.New[string, Record](),
	}
}

func (t *Table) ensure() {
	if t.Fields == nil {
		t.Fields = orderedmap.New[string, Field]()
	}
	if t.Records == nil {
		t.Records = orderedmap.New[string, Record]()
	}
}

// FieldByName returns the field ID and metadata of the named field.
func (t *Table) FieldByName(name string) (string, Field, bool) {
	for pair := t.Fields.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Name == name {
			return pair.Key, pair.Value, true
		}
	}
	return "", Field{}, false
}

// FieldNames returns the names of all fields in declaration order.
func (t *Table) FieldNames() []string {
	names := make([]string, 0, t.Fields.Len())
	for pair := t.Fields.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Value.Name)
	}
	return names
}

// RecordIDs returns record identifiers in source order.
func (t *Table) RecordIDs() []string {
	ids := make([]string, 0, t.Records.Len())
	for pair := t.Records.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	c := &Table{
		ID:          t.ID,
		Name:        t.Name,
		BaseID:      t.BaseID,
		BaseName:    t.BaseName,
		Description: t.Description,
		Fields:      orderedmap.New[string, Field](),
		Records:     orderedmap.New[string, Record](),
	}
	for pair := t.Fields.Oldest(); pair != nil; pair = pair.Next() {
		c.Fields.Set(pair.Key, pair.Value)
	}
	for pair := t.Records.Oldest(); pair != nil; pair = pair.Next() {
		c.Records.Set(pair.Key, CloneRecord(pair.Value))
	}
	return c
}

// Base is one partition: an ordered set of tables keyed by table name.
type Base struct {
	tables *orderedmap.OrderedMap[string, *Table]
	// opaque is set for partitions whose JSON value is not an object of tables.
	opaque bool
}

// NewBase returns an empty partition.
func NewBase() *Base {
	return &Base{tables: orderedmap.New[string, *Table]()}
}

// Get returns the named table.
func (b *Base) Get(name string) (*Table, bool) {
	return b.tables.Get(name)
}

// Has reports whether the named table exists.
func (b *Base) Has(name string) bool {
	_, ok := b.tables.Get(name)
	return ok
}

// Set adds or replaces a table.
func (b *Base) Set(name string, t *Table) {
	t.ensure()
	b.tables.Set(name, t)
}

// Delete removes the named table and reports whether it existed.
func (b *Base) Delete(name string) bool {
	_, ok := b.tables.Delete(name)
	return ok
}

// Rename moves a table to a new name, keeping its position. It reports false
// when from does not exist or to is already taken.
func (b *Base) Rename(from, to string) bool {
	if _, ok := b.tables.Get(from); !ok || b.Has(to) {
		return false
	}
	renamed := orderedmap.New[string, *Table]()
	for pair := b.tables.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key == from {
			renamed.Set(to, pair.Value)
			continue
		}
		renamed.Set(pair.Key, pair.Value)
	}
	b.tables = renamed
	return true
}

// Len returns the number of tables.
func (b *Base) Len() int { return b.tables.Len() }

// Names returns table names in source order.
func (b *Base) Names() []string {
	names := make([]string, 0, b.tables.Len())
	for pair := b.tables.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// TableByID returns the table with the given table identifier.
func (b *Base) TableByID(id string) (string, *Table, bool) {
	for pair := b.tables.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.ID == id {
			return pair.Key, pair.Value, true
		}
	}
	return "", nil, false
}

// Clone returns a deep copy of the partition.
func (b *Base) Clone() *Base {
	c := NewBase()
	c.opaque = b.opaque
	for pair := b.tables.Oldest(); pair != nil; pair = pair.Next() {
		c.tables.Set(pair.Key, pair.Value.Clone())
	}
	return c
}

// MarshalJSON implements json.Marshaler.
func (b *Base) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.tables)
}

// UnmarshalJSON implements json.Unmarshaler. Values that are not JSON objects
// are skipped, since a schema partition may carry non-table entries.
func (b *Base) UnmarshalJSON(data []byte) error {
	b.tables = orderedmap.New[string, *Table]()
	if !isObject(data) {
		b.opaque = true
		return nil
	}
	raw := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(data, raw); err != nil {
		return Error.Wrap(err)
	}
	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		if !isObject(pair.Value) {
			continue
		}
		t := &Table{}
		if err := json.Unmarshal(pair.Value, t); err != nil {
			return Error.New("table %q: %v", pair.Key, err)
		}
		t.ensure()
		b.tables.Set(pair.Key, t)
	}
	return nil
}

// Content is a complete raw export keyed by partition name.
type Content struct {
	bases *orderedmap.OrderedMap[string, *Base]
}

// NewContent returns an empty export.
func NewContent() *Content {
	return &Content{bases: orderedmap.New[string, *Base]()}
}

// Get returns the named partition.
func (c *Content) Get(name string) (*Base, bool) {
	return c.bases.Get(name)
}

// Set adds or replaces a partition.
func (c *Content) Set(name string, b *Base) {
	c.bases.Set(name, b)
}

// Len returns the number of top-level partitions.
func (c *Content) Len() int { return c.bases.Len() }

// Names returns partition names in source order.
func (c *Content) Names() []string {
	names := make([]string, 0, c.bases.Len())
	for pair := c.bases.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Shape classifies the export by its number of top-level partitions.
func (c *Content) Shape() Shape {
	switch c.bases.Len() {
	case 1:
		return ShapeUnified
	case 3, 4:
		return ShapePartitioned
	default:
		return ShapeUnknown
	}
}

// Table returns a table from a partition.
func (c *Content) Table(base, table string) (*Table, bool) {
	b, ok := c.bases.Get(base)
	if !ok {
		return nil, false
	}
	return b.Get(table)
}

// Clone returns a deep copy of the export.
func (c *Content) Clone() *Content {
	n := NewContent()
	for pair := c.bases.Oldest(); pair != nil; pair = pair.Next() {
		n.bases.Set(pair.Key, pair.Value.Clone())
	}
	return n
}

// MarshalJSON implements json.Marshaler.
func (c *Content) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.bases)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Content) UnmarshalJSON(data []byte) error {
	if !isObject(data) {
		return Error.New("export is not a JSON object")
	}
	raw := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(data, raw); err != nil {
		return Error.Wrap(err)
	}
	c.bases = orderedmap.New[string, *Base]()
	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		b := NewBase()
		if err := b.UnmarshalJSON(pair.Value); err != nil {
			return Error.New("base %q: %v", pair.Key, err)
		}
		c.bases.Set(pair.Key, b)
	}
	return nil
}

// Parse decodes an export from JSON.
func Parse(data []byte) (*Content, error) {
	c := NewContent()
	if err := c.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return c, nil
}

// Decode reads and decodes an export.
func Decode(r io.Reader) (*Content, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return Parse(data)
}

// Load reads an export from a JSON file.
func Load(path string) (*Content, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Error.New("read %s: %v", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, Error.New("parse %s: %v", path, err)
	}
	return c, nil
}

// Unified is a consolidated, single-partition export.
type Unified struct {
	Version string
	Base    *Base
}

// NewUnified returns an empty consolidated export.
func NewUnified(version string) *Unified {
	return &Unified{Version: version, Base: NewBase()}
}

// Clone returns a deep copy.
func (u *Unified) Clone() *Unified {
	return &Unified{Version: u.Version, Base: u.Base.Clone()}
}

// MarshalJSON implements json.Marshaler.
func (u *Unified) MarshalJSON() ([]byte, error) {
	out := orderedmap.New[string, any]()
	out.Set(UnifiedBaseName, u.Base)
	out.Set("version", u.Version)
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *Unified) UnmarshalJSON(data []byte) error {
	var raw struct {
		Base    json.RawMessage `json:"Data Request"`
		Version string          `json:"version"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Error.Wrap(err)
	}
	if raw.Base == nil {
		return Error.New("missing %q partition", UnifiedBaseName)
	}
	u.Version = raw.Version
	u.Base = NewBase()
	return u.Base.UnmarshalJSON(raw.Base)
}

// Content returns u as a single-partition export named after its version,
// the layout of a tagged release. Tables are shared, not copied.
func (u *Unified) Content() *Content {
	name := UnifiedBaseName
	if u.Version != "" {
		name += " " + u.Version
	}
	c := NewContent()
	c.Set(name, u.Base)
	return c
}

// LoadUnified reads a consolidated export written by Unified.MarshalJSON.
func LoadUnified(path string) (*Unified, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Error.New("read %s: %v", path, err)
	}
	u := &Unified{}
	if err := u.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return u, nil
}

func isObject(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// IsRecordRef reports whether s looks like a record identifier.
func IsRecordRef(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) <= 3 || !strings.HasPrefix(s, "rec") {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
