package api

// MappingSpec is the declarative description of how a partitioned data request
// export is consolidated into a single unified base.
// Rules are applied in declaration order.
type MappingSpec struct {
	// Version of the mapping description.
	Version string `json:"version,omitempty" hcl:"version,optional"`
	// Tables lists one rule per destination table.
	Tables []TableRule `json:"tables" hcl:"table,block"`
	// Consistency holds table/field renames and drops keyed by content version.
	Consistency []ConsistencyRule `json:"consistency,omitempty" hcl:"consistency,block"`
}

// TableRule describes how one destination table is obtained from a source base.
type TableRule struct {
	// Name of the destination table in the unified base.
	Name string `json:"name" hcl:"name,label"`
	// SourceBase is the partition containing the source table.
	SourceBase string `json:"source_base" hcl:"source_base"`
	// SourceTable lists acceptable source table names. The first one present wins.
	SourceTable []string `json:"source_table" hcl:"source_table"`
	// Filters must all pass for a record to be retained.
	Filters []Filter `json:"filters,omitempty" hcl:"filter,block"`
	// Rename maps source attribute names to canonical names.
	Rename map[string]string `json:"rename,omitempty" hcl:"rename,optional"`
	// Drop lists source attributes omitted from the destination table.
	Drop []string `json:"drop,omitempty" hcl:"drop,optional"`
	// Links declares attributes that must be resolved into another partition.
	Links []CrossLink `json:"links,omitempty" hcl:"link,block"`
}

// Filter operators.
const (
	OpNonEmpty = "nonempty"
	OpIn       = "in"
	OpNotIn    = "not in"
)

// Filter is a record-level predicate evaluated against one attribute.
type Filter struct {
	// Attribute is the attribute name checked first.
	Attribute string `json:"attribute" hcl:"attribute,label"`
	// Operator is one of "nonempty", "in", "not in".
	Operator string `json:"operator" hcl:"operator"`
	// Values is the allowed (or disallowed) set. Unused for "nonempty".
	Values []string `json:"values,omitempty" hcl:"values,optional"`
	// Aliases are alternative names of the attribute in other content versions.
	Aliases []string `json:"aliases,omitempty" hcl:"aliases,optional"`
}

// Names returns the attribute name followed by its aliases.
func (f Filter) Names() []string {
	return append([]string{f.Attribute}, f.Aliases...)
}

// Cross-link entry types.
const (
	EntryRecordID = "record_id"
	EntryName     = "name"
)

// Cross-link operations applied to the attribute value before matching.
const (
	OperationNone  = ""
	OperationSplit = "split"
)

// CrossLink resolves an attribute into records of a table in another partition.
type CrossLink struct {
	// Attribute is the source attribute holding the references.
	Attribute string `json:"attribute" hcl:"attribute,label"`
	// BaseCopyOfTable names the table in the source partition holding copies of
	// the target records. Required for entry type "record_id".
	BaseCopyOfTable string `json:"base_copy_of_table,omitempty" hcl:"base_copy_of_table,optional"`
	// Base is the partition holding the target table.
	Base string `json:"base" hcl:"base"`
	// Table is the target table in Base.
	Table string `json:"table" hcl:"table"`
	// Operation is "" or "split".
	Operation string `json:"operation,omitempty" hcl:"operation,optional"`
	// MapByKey lists the attributes compared when matching.
	MapByKey []string `json:"map_by_key" hcl:"map_by_key"`
	// EntryType is "record_id" or "name".
	EntryType string `json:"entry_type" hcl:"entry_type"`
}

// Consistency rule scopes.
const (
	ScopeUnified     = "unified"
	ScopePartitioned = "partitioned"
	ScopeAll         = "all"
)

// ConsistencyRule renames or drops tables and fields for one content version.
// A Version of "*" applies to every content version.
type ConsistencyRule struct {
	Version string `json:"version" hcl:"version,label"`
	// Scope selects the export shape the rule applies to. Defaults to "unified".
	Scope        string            `json:"scope,omitempty" hcl:"scope,optional"`
	RenameTables map[string]string `json:"rename_tables,omitempty" hcl:"rename_tables,optional"`
	DropTables   []string          `json:"drop_tables,omitempty" hcl:"drop_tables,optional"`
	Fields       []FieldRule       `json:"fields,omitempty" hcl:"fields,block"`
}

// FieldRule renames or drops fields of one table.
type FieldRule struct {
	Table  string            `json:"table" hcl:"table,label"`
	Rename map[string]string `json:"rename,omitempty" hcl:"rename,optional"`
	Drop   []string          `json:"drop,omitempty" hcl:"drop,optional"`
}
