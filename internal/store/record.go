// Package store implements the polymorphic Pharos record store: an
// in-memory engine, a JSON file-backed decorator around it, and a
// directory-server (LDAP) adapter, all behind the same Store contract
// (§4.2).
package store

import "strings"

// RecordType is the record-type discriminator derived from a record's
// "type" field (§3).
type RecordType string

const (
	// TypeNone means the record carries no discriminator.
	TypeNone RecordType = ""
	Person   RecordType = "person"
	Machine  RecordType = "machine"
)

// RecordTypeFromString case-folds s and maps it to Person or Machine; any
// other non-empty value becomes an Other(name) discriminator, represented
// here simply as RecordType(s) since Go has no sum-type variant to carry a
// payload more cheaply than the string itself.
func RecordTypeFromString(s string) RecordType {
	switch strings.ToLower(s) {
	case "person":
		return Person
	case "machine":
		return Machine
	default:
		return RecordType(strings.ToLower(s))
	}
}

// Record is one stored entity: a server-assigned id, an optional type
// discriminator, and a field map.
type Record struct {
	ID     int               `json:"id"`
	Type   RecordType        `json:"record_type,omitempty"`
	Fields map[string]string `json:"fields"`
}

// Selection is one entry of a selection clause: an optional field name
// (empty means "any field") paired with a value to match.
type Selection struct {
	Field string
	Value string
}
