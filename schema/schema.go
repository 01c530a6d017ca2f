// Package schema describes record types to the query and migration
// engine. A Model is the static description of one table: its name and
// its ordered column descriptors. Models are built once at process
// start and never mutated afterwards.
package schema

import (
	"fmt"

	"github.com/syssam/quill/schema/field"
)

// A Model describes one record type. Field order defines column order
// in generated SQL and the positional row mapping used when scanning.
type Model struct {
	Table  string
	Fields []*field.Descriptor
}

// New returns a model descriptor for the given table.
func New(table string, fields ...*field.Descriptor) *Model {
	return &Model{Table: table, Fields: fields}
}

// Field returns the descriptor with the given column name, or nil.
func (m *Model) Field(name string) *field.Descriptor {
	for _, f := range m.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// FieldIndex returns the position of the named column, or -1.
func (m *Model) FieldIndex(name string) int {
	for i, f := range m.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// PrimaryKey returns the primary-key descriptor, or nil if the model
// is malformed.
func (m *Model) PrimaryKey() *field.Descriptor {
	for _, f := range m.Fields {
		if f.PrimaryKey {
			return f
		}
	}
	return nil
}

// Columns returns the column names in declaration order.
func (m *Model) Columns() []string {
	cols := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		cols[i] = f.Name
	}
	return cols
}

// Validate checks the structural invariants of the model: a table
// name, at least one field, unique column names and exactly one
// primary key.
func (m *Model) Validate() error {
	if m.Table == "" {
		return fmt.Errorf("schema: model has no table name")
	}
	if len(m.Fields) == 0 {
		return fmt.Errorf("schema: table %s has no fields", m.Table)
	}
	seen := make(map[string]struct{}, len(m.Fields))
	pks := 0
	for _, f := range m.Fields {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("schema: table %s: %w", m.Table, err)
		}
		if _, ok := seen[f.Name]; ok {
			return fmt.Errorf("schema: table %s: duplicate column %s", m.Table, f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.PrimaryKey {
			pks++
		}
	}
	if pks != 1 {
		return fmt.Errorf("schema: table %s: expected exactly one primary key, got %d", m.Table, pks)
	}
	return nil
}
