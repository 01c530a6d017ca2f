// Package field provides fluent builders for describing model columns.
//
// A field descriptor carries everything the SQL layer needs to emit DDL
// and to validate values on write:
//
//	field.Int("id").AsPrimaryKey().AutoIncrement()
//	field.Int("age")
//	field.String("role").SetDefault("user")
//	field.Time("created_at").DefaultNow()
//	field.Int("owner").References("users", "id")
package field

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// A Type represents a field kind. The kind drives the per-dialect
// column type and value validation on write.
type Type uint8

// Field kinds.
const (
	TypeInvalid Type = iota
	TypeInt
	TypeSerial
	TypeFloat64
	TypeString
	TypeText
	TypeBool
	TypeDate
	TypeTime
	TypeUUID
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeInt:     "int",
	TypeSerial:  "serial",
	TypeFloat64: "float64",
	TypeString:  "string",
	TypeText:    "text",
	TypeBool:    "bool",
	TypeDate:    "date",
	TypeTime:    "time",
	TypeUUID:    "uuid",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("invalid(%d)", t)
}

// Numeric reports whether the type is stored as a number.
func (t Type) Numeric() bool {
	return t == TypeInt || t == TypeSerial || t == TypeFloat64
}

// AcceptsValue reports whether v can be bound to a column of this type.
// A nil value is accepted here; nullability is enforced by the caller.
func (t Type) AcceptsValue(v any) bool {
	if v == nil {
		return true
	}
	switch t {
	case TypeInt, TypeSerial:
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		}
	case TypeFloat64:
		switch v.(type) {
		case float32, float64, int, int32, int64:
			return true
		}
	case TypeString, TypeText:
		_, ok := v.(string)
		return ok
	case TypeBool:
		_, ok := v.(bool)
		return ok
	case TypeDate, TypeTime:
		switch v.(type) {
		case time.Time, string:
			return true
		}
	case TypeUUID:
		switch v.(type) {
		case uuid.UUID, string:
			return true
		}
	}
	return false
}

// Generated enumerates defaults computed by the engine at insert time.
type Generated uint8

// Generated default kinds.
const (
	GeneratedNone Generated = iota
	// GeneratedNow resolves to the current date or timestamp. In DDL it
	// lowers to the dialect's CURRENT_DATE/CURRENT_TIMESTAMP function.
	GeneratedNow
	// GeneratedUUID resolves to a random UUID string.
	GeneratedUUID
)

// A Reference names the column a foreign key points at.
type Reference struct {
	Table  string
	Column string
}

// A Descriptor describes one column of a model.
type Descriptor struct {
	Name       string    // column name
	Type       Type      // field kind
	Size       int       // varchar size for TypeString; 0 means 255
	Nullable   bool      // NULL allowed, field optional on create
	Unique     bool      // unique constraint
	PrimaryKey bool      // primary-key column
	Increment  bool      // auto-increment; requires PrimaryKey and an integer kind
	Default    any       // literal default, nil if unset
	Generated  Generated // engine-generated default
	Ref        *Reference
}

// Int returns a new integer field.
func Int(name string) *Descriptor {
	return &Descriptor{Name: name, Type: TypeInt}
}

// Serial returns a new auto-numbered integer field.
func Serial(name string) *Descriptor {
	return &Descriptor{Name: name, Type: TypeSerial}
}

// Float64 returns a new float field.
func Float64(name string) *Descriptor {
	return &Descriptor{Name: name, Type: TypeFloat64}
}

// String returns a new varchar field. The size defaults to 255 and can
// be changed with MaxLen.
func String(name string) *Descriptor {
	return &Descriptor{Name: name, Type: TypeString}
}

// Text returns a new unbounded text field.
func Text(name string) *Descriptor {
	return &Descriptor{Name: name, Type: TypeText}
}

// Bool returns a new boolean field.
func Bool(name string) *Descriptor {
	return &Descriptor{Name: name, Type: TypeBool}
}

// Date returns a new date field (no time of day).
func Date(name string) *Descriptor {
	return &Descriptor{Name: name, Type: TypeDate}
}

// Time returns a new timestamp field.
func Time(name string) *Descriptor {
	return &Descriptor{Name: name, Type: TypeTime}
}

// UUID returns a new UUID field.
func UUID(name string) *Descriptor {
	return &Descriptor{Name: name, Type: TypeUUID}
}

// MaxLen sets the varchar size for string fields.
func (d *Descriptor) MaxLen(size int) *Descriptor {
	d.Size = size
	return d
}

// Nillable marks the field as nullable in the database and optional
// on create.
func (d *Descriptor) Nillable() *Descriptor {
	d.Nullable = true
	return d
}

// SetUnique adds a unique constraint to the field.
func (d *Descriptor) SetUnique() *Descriptor {
	d.Unique = true
	return d
}

// AsPrimaryKey marks the field as the model's primary key.
func (d *Descriptor) AsPrimaryKey() *Descriptor {
	d.PrimaryKey = true
	return d
}

// AutoIncrement marks a primary-key field as auto-incrementing.
func (d *Descriptor) AutoIncrement() *Descriptor {
	d.Increment = true
	return d
}

// SetDefault sets a literal default value.
func (d *Descriptor) SetDefault(v any) *Descriptor {
	d.Default = v
	return d
}

// DefaultNow sets the default to the current date or timestamp,
// resolved at insert time for values and to the dialect's
// current-timestamp function in DDL.
func (d *Descriptor) DefaultNow() *Descriptor {
	d.Generated = GeneratedNow
	return d
}

// DefaultUUID sets the default to a freshly generated UUID.
func (d *Descriptor) DefaultUUID() *Descriptor {
	d.Generated = GeneratedUUID
	return d
}

// References declares a foreign key to table.column.
func (d *Descriptor) References(table, column string) *Descriptor {
	d.Ref = &Reference{Table: table, Column: column}
	return d
}

// Validate reports structural problems with the descriptor itself.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("field: descriptor is missing a name")
	}
	if d.Type == TypeInvalid || int(d.Type) >= len(typeNames) {
		return fmt.Errorf("field: %s has no valid type", d.Name)
	}
	if d.Increment {
		if !d.PrimaryKey {
			return fmt.Errorf("field: %s is auto-increment but not a primary key", d.Name)
		}
		if d.Type != TypeInt && d.Type != TypeSerial {
			return fmt.Errorf("field: %s is auto-increment but not an integer kind", d.Name)
		}
	}
	if d.Generated == GeneratedNow && d.Type != TypeDate && d.Type != TypeTime {
		return fmt.Errorf("field: %s has a now default but is not a date or time field", d.Name)
	}
	if d.Generated == GeneratedUUID && d.Type != TypeUUID {
		return fmt.Errorf("field: %s has a uuid default but is not a uuid field", d.Name)
	}
	if d.Size < 0 {
		return fmt.Errorf("field: %s has a negative size", d.Name)
	}
	if d.Ref != nil && (d.Ref.Table == "" || d.Ref.Column == "") {
		return fmt.Errorf("field: %s has an incomplete foreign-key reference", d.Name)
	}
	return nil
}
