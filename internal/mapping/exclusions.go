package mapping

import (
	"sort"

	"github.com/RoaringBitmap/roaring"
)

// Exclusions accumulates the identifiers of records removed by filters.
// Identifiers are interned to uint32 and kept in roaring bitmaps, one per
// destination table plus a global union that every later pass consults.
type Exclusions struct {
	intID   map[string]uint32
	ids     []string // reverse: uint32 → record identifier
	all     *roaring.Bitmap
	byTable map[string]*roaring.Bitmap
}

// NewExclusions returns an empty accumulator.
func NewExclusions() *Exclusions {
	return &Exclusions{
		intID:   make(map[string]uint32),
		all:     roaring.New(),
		byTable: make(map[string]*roaring.Bitmap),
	}
}

func (x *Exclusions) intern(id string) uint32 {
	n, ok := x.intID[id]
	if !ok {
		n = uint32(len(x.ids))
		x.intID[id] = n
		x.ids = append(x.ids, id)
	}
	return n
}

// Add records that id was filtered out of table.
func (x *Exclusions) Add(table, id string) {
	n := x.intern(id)
	bm, ok := x.byTable[table]
	if !ok {
		bm = roaring.New()
		x.byTable[table] = bm
	}
	bm.Add(n)
	x.all.Add(n)
}

// Contains reports whether id was filtered out of any table.
func (x *Exclusions) Contains(id string) bool {
	n, ok := x.intID[id]
	return ok && x.all.Contains(n)
}

// Len returns the number of distinct excluded identifiers.
func (x *Exclusions) Len() int {
	return int(x.all.GetCardinality())
}

// CountFor returns the number of identifiers excluded from table.
func (x *Exclusions) CountFor(table string) int {
	bm, ok := x.byTable[table]
	if !ok {
		return 0
	}
	return int(bm.GetCardinality())
}

// IDs returns every excluded identifier in the order it was first excluded.
func (x *Exclusions) IDs() []string {
	out := make([]string, 0, x.all.GetCardinality())
	it := x.all.Iterator()
	for it.HasNext() {
		out = append(out, x.ids[it.Next()])
	}
	return out
}

// Tables returns the names of tables with exclusions, sorted.
func (x *Exclusions) Tables() []string {
	names := make([]string, 0, len(x.byTable))
	for name := range x.byTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
