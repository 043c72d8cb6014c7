// Package mapping consolidates a partitioned data request export into a
// single unified partition, driven by a declarative api.MappingSpec.
package mapping

import (
	"embed"
	"os"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zeebo/errs"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/api"
)

var (
	// SpecError is the class of malformed mapping rules. These are bugs in the
	// declarative configuration, never data errors.
	SpecError = errs.Class("mapping spec")
	// Error is the class of data-integrity failures during consolidation.
	Error = errs.Class("mapping")
)

//go:embed default_mapping.hcl
var defaultFS embed.FS

const defaultSpecName = "default_mapping.hcl"

// ParseSpec decodes an HCL (or HCL-JSON, by file extension) mapping spec and
// validates it.
func ParseSpec(filename string, src []byte) (*api.MappingSpec, error) {
	var spec api.MappingSpec
	if err := hclsimple.Decode(filename, src, nil, &spec); err != nil {
		return nil, SpecError.New("%s: %v", filename, err)
	}
	if err := Validate(&spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

// LoadSpecFile reads a mapping spec from disk.
func LoadSpecFile(path string) (*api.MappingSpec, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, SpecError.New("read %s: %v", path, err)
	}
	return ParseSpec(path, src)
}

// DefaultSpec returns the embedded production mapping spec.
func DefaultSpec() (*api.MappingSpec, error) {
	src, err := defaultFS.ReadFile(defaultSpecName)
	if err != nil {
		return nil, SpecError.Wrap(err)
	}
	return ParseSpec(defaultSpecName, src)
}

// DefaultSpecSource returns the embedded mapping spec text.
func DefaultSpecSource() []byte {
	src, _ := defaultFS.ReadFile(defaultSpecName)
	return src
}

// Validate checks a spec for unknown operators, entry types, operations and
// scopes, and for incomplete rules.
func Validate(spec *api.MappingSpec) error {
	if spec == nil {
		return SpecError.New("nil mapping spec")
	}
	seen := make(map[string]bool, len(spec.Tables))
	for _, rule := range spec.Tables {
		if rule.Name == "" {
			return SpecError.New("table rule without a name")
		}
		if seen[rule.Name] {
			return SpecError.New("duplicate table rule %q", rule.Name)
		}
		seen[rule.Name] = true
		if rule.SourceBase == "" {
			return SpecError.New("table %q: missing source_base", rule.Name)
		}
		if len(rule.SourceTable) == 0 {
			return SpecError.New("table %q: missing source_table", rule.Name)
		}
		for _, f := range rule.Filters {
			if err := validateFilter(rule.Name, f); err != nil {
				return err
			}
		}
		for _, l := range rule.Links {
			if err := validateLink(rule.Name, l); err != nil {
				return err
			}
		}
	}
	for _, c := range spec.Consistency {
		if c.Version == "" {
			return SpecError.New("consistency rule without a version")
		}
		switch c.Scope {
		case "", api.ScopeUnified, api.ScopePartitioned, api.ScopeAll:
		default:
			return SpecError.New("consistency %q: unknown scope %q", c.Version, c.Scope)
		}
	}
	return nil
}

func validateFilter(table string, f api.Filter) error {
	switch f.Operator {
	case api.OpNonEmpty:
	case api.OpIn, api.OpNotIn:
		if len(f.Values) == 0 {
			return SpecError.New("table %q: filter %q: operator %q needs values", table, f.Attribute, f.Operator)
		}
	default:
		return SpecError.New("table %q: filter %q: unknown operator %q", table, f.Attribute, f.Operator)
	}
	return nil
}

func validateLink(table string, l api.CrossLink) error {
	switch l.EntryType {
	case api.EntryName:
	case api.EntryRecordID:
		if l.BaseCopyOfTable == "" {
			return SpecError.New("table %q: link %q: entry type %q requires base_copy_of_table", table, l.Attribute, l.EntryType)
		}
	default:
		return SpecError.New("table %q: link %q: unknown entry type %q", table, l.Attribute, l.EntryType)
	}
	switch l.Operation {
	case api.OperationNone, api.OperationSplit:
	default:
		return SpecError.New("table %q: link %q: unknown operation %q", table, l.Attribute, l.Operation)
	}
	if l.Base == "" || l.Table == "" {
		return SpecError.New("table %q: link %q: missing target base or table", table, l.Attribute)
	}
	if len(l.MapByKey) == 0 {
		return SpecError.New("table %q: link %q: missing map_by_key", table, l.Attribute)
	}
	return nil
}
