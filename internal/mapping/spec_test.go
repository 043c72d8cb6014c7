package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/api"
)

func TestDefaultSpec(t *testing.T) {
	spec, err := DefaultSpec()
	require.NoError(t, err)

	names := make([]string, 0, len(spec.Tables))
	for _, r := range spec.Tables {
		names = append(names, r.Name)
	}
	assert.Contains(t, names, "Variables")
	assert.Contains(t, names, "Variable Group")
	assert.Contains(t, names, "Opportunity")
	assert.Len(t, names, 25)

	var vg api.TableRule
	for _, r := range spec.Tables {
		if r.Name == "Variable Group" {
			vg = r
		}
	}
	require.Len(t, vg.Links, 1)
	assert.Equal(t, api.EntryRecordID, vg.Links[0].EntryType)
	assert.Equal(t, []string{"UID", "Compound Name"}, vg.Links[0].MapByKey)
	assert.Equal(t, "Opportunity", vg.Rename["Final Opportunity selection"])
	require.Len(t, vg.Filters, 2)
	assert.Equal(t, []string{"Final Opportunity selection", "Opportunity"}, vg.Filters[0].Names())

	require.NotEmpty(t, spec.Consistency)
	assert.Equal(t, "v1.0alpha", spec.Consistency[0].Version)
	assert.Equal(t, "CMIP7 Frequency", spec.Consistency[0].RenameTables["Frequency"])
}

func TestParseSpecErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{
			name: "unknown operator",
			src: `
table "T" {
  source_base  = "B"
  source_table = ["T"]
  filter "Status" {
    operator = "like"
    values   = ["x"]
  }
}`,
			msg: `unknown operator "like"`,
		},
		{
			name: "unknown entry type",
			src: `
table "T" {
  source_base  = "B"
  source_table = ["T"]
  link "L" {
    base       = "B2"
    table      = "U"
    map_by_key = ["Name"]
    entry_type = "uuid"
  }
}`,
			msg: `unknown entry type "uuid"`,
		},
		{
			name: "record id without copy table",
			src: `
table "T" {
  source_base  = "B"
  source_table = ["T"]
  link "L" {
    base       = "B2"
    table      = "U"
    map_by_key = ["UID"]
    entry_type = "record_id"
  }
}`,
			msg: "requires base_copy_of_table",
		},
		{
			name: "unknown operation",
			src: `
table "T" {
  source_base  = "B"
  source_table = ["T"]
  link "L" {
    base       = "B2"
    table      = "U"
    operation  = "explode"
    map_by_key = ["Name"]
    entry_type = "name"
  }
}`,
			msg: `unknown operation "explode"`,
		},
		{
			name: "duplicate table",
			src: `
table "T" {
  source_base  = "B"
  source_table = ["T"]
}
table "T" {
  source_base  = "B"
  source_table = ["T2"]
}`,
			msg: `duplicate table rule "T"`,
		},
		{
			name: "unknown scope",
			src: `
consistency "v1" {
  scope = "sometimes"
}`,
			msg: `unknown scope "sometimes"`,
		},
		{
			name: "syntax",
			src:  `table "T" {`,
			msg:  "mapping.hcl",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSpec("mapping.hcl", []byte(tt.src))
			require.Error(t, err)
			assert.True(t, SpecError.Has(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLoadSpecFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.hcl")
	require.NoError(t, os.WriteFile(path, DefaultSpecSource(), 0o644))

	spec, err := LoadSpecFile(path)
	require.NoError(t, err)
	def, err := DefaultSpec()
	require.NoError(t, err)
	assert.Equal(t, def, spec)

	_, err = LoadSpecFile(filepath.Join(t.TempDir(), "missing.hcl"))
	require.Error(t, err)
	assert.True(t, SpecError.Has(err))
}

func TestEvalFilter(t *testing.T) {
	in := api.Filter{Attribute: "Status", Operator: api.OpIn, Values: []string{"Accepted", "Under review"}}
	notIn := api.Filter{Attribute: "Status", Operator: api.OpNotIn, Values: []string{"Junk"}}
	nonEmpty := api.Filter{Attribute: "Groups", Operator: api.OpNonEmpty, Aliases: []string{"Old Groups"}}

	tests := []struct {
		name   string
		filter api.Filter
		rec    map[string]any
		want   bool
	}{
		{"in scalar", in, map[string]any{"Status": "Accepted"}, true},
		{"in scalar rejected", in, map[string]any{"Status": "Rejected"}, false},
		{"in list any element", in, map[string]any{"Status": []any{"Rejected", "Accepted"}}, true},
		{"in empty list", in, map[string]any{"Status": []any{}}, false},
		{"attribute missing", in, map[string]any{"Other": "Accepted"}, false},
		{"not in scalar", notIn, map[string]any{"Status": "Final"}, true},
		{"not in scalar rejected", notIn, map[string]any{"Status": "Junk"}, false},
		{"not in list", notIn, map[string]any{"Status": []any{"Final", "Junk"}}, false},
		{"not in missing", notIn, map[string]any{}, false},
		{"nonempty", nonEmpty, map[string]any{"Groups": "a"}, true},
		{"nonempty empty", nonEmpty, map[string]any{"Groups": ""}, false},
		{"nonempty alias", nonEmpty, map[string]any{"Groups": "", "Old Groups": []any{"recX1"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evalFilter(tt.filter, tt.rec))
		})
	}
}

func TestExclusions(t *testing.T) {
	x := NewExclusions()
	x.Add("B", "rec2")
	x.Add("A", "rec1")
	x.Add("A", "rec2")

	assert.True(t, x.Contains("rec1"))
	assert.False(t, x.Contains("rec3"))
	assert.Equal(t, 2, x.Len())
	assert.Equal(t, 2, x.CountFor("A"))
	assert.Equal(t, 1, x.CountFor("B"))
	assert.Zero(t, x.CountFor("C"))
	assert.Equal(t, []string{"rec2", "rec1"}, x.IDs())
	assert.Equal(t, []string{"A", "B"}, x.Tables())
}
