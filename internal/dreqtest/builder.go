// Package dreqtest builds synthetic data request exports for tests.
package dreqtest

import (
	"fmt"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/export"
)

// TableBuilder assembles an export table field by field and record by record.
type TableBuilder struct {
	t *export.Table
	n int
}

// Table starts a table with the given identifier and name.
func Table(id, name string) *TableBuilder {
	return &TableBuilder{t: export.NewTable(id, name)}
}

func (b *TableBuilder) addField(f export.Field) {
	b.n++
	b.t.Fields.Set(fmt.Sprintf("fld%s%02d", b.t.ID, b.n), f)
}

// Fields declares plain (non-link) fields.
func (b *TableBuilder) Fields(names ...string) *TableBuilder {
	for _, name := range names {
		b.addField(export.Field{Name: name, Type: "singleLineText"})
	}
	return b
}

// Link declares a field linking to records of the table with tableID.
func (b *TableBuilder) Link(name, tableID string) *TableBuilder {
	b.addField(export.Field{Name: name, Type: "multipleRecordLinks", LinkedTableID: tableID})
	return b
}

// Rec adds a record from alternating attribute names and values.
func (b *TableBuilder) Rec(id string, kv ...any) *TableBuilder {
	if len(kv)%2 != 0 {
		panic("dreqtest: odd number of key/value arguments")
	}
	rec := export.Record{}
	for i := 0; i < len(kv); i += 2 {
		rec[kv[i].(string)] = kv[i+1]
	}
	b.t.Records.Set(id, rec)
	return b
}

// Build returns the table.
func (b *TableBuilder) Build() *export.Table { return b.t }

// Base collects tables into a partition keyed by table name.
func Base(tables ...*TableBuilder) *export.Base {
	base := export.NewBase()
	for _, tb := range tables {
		base.Set(tb.t.Name, tb.t)
	}
	return base
}

// Links returns a link list value.
func Links(ids ...string) []any {
	return export.ListValue(ids)
}

// List returns a list of plain values.
func List(values ...string) []any {
	return export.ListValue(values)
}

// Unified wraps a partition as a consolidated export.
func Unified(version string, tables ...*TableBuilder) *export.Unified {
	return &export.Unified{Version: version, Base: Base(tables...)}
}
