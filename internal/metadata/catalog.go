package metadata

import (
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Variable is the flat metadata of one variable, attributes in output order.
type Variable struct {
	CompoundName string

	attrs *orderedmap.OrderedMap[string, string]
}

func newVariable(name string) *Variable {
	return &Variable{CompoundName: name, attrs: orderedmap.New[string, string]()}
}

// Get returns an attribute value.
func (v *Variable) Get(attr string) (string, bool) { return v.attrs.Get(attr) }

// Attrs returns the attribute names in output order.
func (v *Variable) Attrs() []string {
	out := make([]string, 0, v.attrs.Len())
	for pair := v.attrs.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (v *Variable) MarshalJSON() ([]byte, error) { return json.Marshal(v.attrs) }

// Catalog holds variable metadata keyed by compound name, sorted
// case-insensitively.
type Catalog struct {
	Version string

	vars *orderedmap.OrderedMap[string, *Variable]
}

// Len returns the number of variables.
func (c *Catalog) Len() int { return c.vars.Len() }

// Names returns the compound names in order.
func (c *Catalog) Names() []string {
	out := make([]string, 0, c.vars.Len())
	for pair := c.vars.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Get returns the metadata of one variable.
func (c *Catalog) Get(name string) (*Variable, bool) { return c.vars.Get(name) }

// Variables returns the variables in order.
func (c *Catalog) Variables() []*Variable {
	out := make([]*Variable, 0, c.vars.Len())
	for pair := c.vars.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (c *Catalog) MarshalJSON() ([]byte, error) { return json.Marshal(c.vars) }
