package servicenow

import "fmt"

// Reserved record fields used for link building and identity.
const (
	FieldSysID     string = "sys_id"
	FieldClassName string = "sys_class_name"

	FieldCreatedOn string = "sys_created_on"
	FieldUpdatedOn string = "sys_updated_on"
)

// Record is a single row from a table, an arbitrary mapping from
// field name to value. The table API returns field values as strings,
// but reference fields may decode to nested objects when link
// inclusion is requested.
type Record map[string]any

// SysID returns the record identifier, or an empty string when the
// field is missing or not a string.
func (r Record) SysID() string {
	return r.StringValue(FieldSysID)
}

// ClassName returns the record's type name (the table it belongs to).
func (r Record) ClassName() string {
	return r.StringValue(FieldClassName)
}

// StringValue returns the named field rendered as a string. Missing
// fields render as the empty string.
func (r Record) StringValue(field string) string {
	value, ok := r[field]
	if !ok || value == nil {
		return ""
	}

	if s, ok := value.(string); ok {
		return s
	}

	return fmt.Sprintf("%v", value)
}

// RecordSet is an ordered collection of records, typically the result
// of running a query.
type RecordSet []Record

// SysIDs returns the identifiers of all records in the set.
func (rs RecordSet) SysIDs() []string {
	ids := make([]string, 0, len(rs))
	for _, r := range rs {
		ids = append(ids, r.SysID())
	}
	return ids
}
