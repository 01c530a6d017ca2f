// Package schema creates database tables from model descriptors. The
// only operation it performs is idempotent CREATE TABLE IF NOT EXISTS;
// it never diffs columns and never emits a destructive statement, so
// running a migration against an existing schema is a no-op.
package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/syssam/quill/dialect"
	"github.com/syssam/quill/dialect/sql"
	"github.com/syssam/quill/schema"
)

// UnresolvedForeignKeyError is returned when table creation cannot be
// ordered: a foreign key points at an unregistered table or column, or
// the dependency graph contains a cycle.
type UnresolvedForeignKeyError struct {
	Table  string
	Column string
	Ref    string // "table.column" the foreign key points at, empty on cycles
	Cycle  bool
}

// Error returns the error string.
func (e *UnresolvedForeignKeyError) Error() string {
	if e.Cycle {
		return fmt.Sprintf("schema: foreign-key cycle involving table %q", e.Table)
	}
	return fmt.Sprintf("schema: %s.%s references unknown %s", e.Table, e.Column, e.Ref)
}

// IsUnresolvedForeignKey returns true if the error is an
// UnresolvedForeignKeyError.
func IsUnresolvedForeignKey(err error) bool {
	if err == nil {
		return false
	}
	var e *UnresolvedForeignKeyError
	return errors.As(err, &e)
}

// A StepError reports which table a migration batch failed on. Tables
// created before the failing one stay in place; DDL is often
// non-transactional, so no rollback is attempted.
type StepError struct {
	Table string
	Err   error
}

// Error returns the error string.
func (e *StepError) Error() string {
	return fmt.Sprintf("schema: creating table %q: %v", e.Table, e.Err)
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error { return e.Err }

// Migrate creates tables for model descriptors over a driver.
type Migrate struct {
	drv     dialect.Driver
	builder *sql.Builder
}

// NewMigrate returns a migration engine for the driver's dialect.
func NewMigrate(drv dialect.Driver) (*Migrate, error) {
	b, err := sql.NewBuilder(drv.Dialect())
	if err != nil {
		return nil, err
	}
	return &Migrate{drv: drv, builder: b}, nil
}

// Create creates all given tables, ordering them so that every
// referenced table is created before its dependents. Registration
// order is preserved between independent tables. The batch stops at
// the first failing statement and reports its table.
func (m *Migrate) Create(ctx context.Context, models ...*schema.Model) error {
	ordered, err := resolve(models)
	if err != nil {
		return err
	}
	for _, model := range ordered {
		query, err := m.builder.CreateTable(model)
		if err != nil {
			return &StepError{Table: model.Table, Err: err}
		}
		slog.Debug("migrate: creating table", "table", model.Table)
		if err := m.drv.Exec(ctx, query, []any{}, nil); err != nil {
			return &StepError{Table: model.Table, Err: err}
		}
	}
	return nil
}

// resolve orders models so foreign-key targets come first. Self
// references are allowed. The sort is stable: independent tables keep
// their registration order.
func resolve(models []*schema.Model) ([]*schema.Model, error) {
	byName := make(map[string]*schema.Model, len(models))
	for _, m := range models {
		byName[m.Table] = m
	}
	// Validate every reference up front so a bad foreign key fails
	// before any DDL is issued.
	for _, m := range models {
		for _, f := range m.Fields {
			if f.Ref == nil {
				continue
			}
			ref, ok := byName[f.Ref.Table]
			if !ok {
				return nil, &UnresolvedForeignKeyError{
					Table: m.Table, Column: f.Name,
					Ref: f.Ref.Table + "." + f.Ref.Column,
				}
			}
			if ref.Field(f.Ref.Column) == nil {
				return nil, &UnresolvedForeignKeyError{
					Table: m.Table, Column: f.Name,
					Ref: f.Ref.Table + "." + f.Ref.Column,
				}
			}
		}
	}
	ordered := make([]*schema.Model, 0, len(models))
	placed := make(map[string]bool, len(models))
	for len(ordered) < len(models) {
		progressed := false
		for _, m := range models {
			if placed[m.Table] {
				continue
			}
			ready := true
			for _, f := range m.Fields {
				if f.Ref != nil && f.Ref.Table != m.Table && !placed[f.Ref.Table] {
					ready = false
					break
				}
			}
			if ready {
				ordered = append(ordered, m)
				placed[m.Table] = true
				progressed = true
			}
		}
		if !progressed {
			for _, m := range models {
				if !placed[m.Table] {
					return nil, &UnresolvedForeignKeyError{Table: m.Table, Cycle: true}
				}
			}
		}
	}
	return ordered, nil
}
