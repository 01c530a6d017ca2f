// Package quill is a model-metadata-driven query and migration engine.
// A record type describes itself once through a schema.Model
// descriptor; that description drives table creation, value
// validation and CRUD/JOIN SQL generation across SQLite, Postgres,
// MySQL and a remote SQL-over-HTTP backend.
//
// A record type implements the Model interface:
//
//	type User struct {
//	    ID   int
//	    Name string
//	    Age  int
//	    Role string
//	}
//
//	var userSchema = schema.New("users",
//	    field.Int("id").AsPrimaryKey().AutoIncrement(),
//	    field.String("name").SetUnique(),
//	    field.Int("age"),
//	    field.String("role").SetDefault("user"),
//	)
//
//	func (u *User) Schema() *schema.Model { return userSchema }
//	func (u *User) Values() []any         { return []any{u.ID, u.Name, u.Age, u.Role} }
//	func (u *User) Pointers() []any       { return []any{&u.ID, &u.Name, &u.Age, &u.Role} }
//
// and is then queried with predicate trees:
//
//	client, _ := quill.Open(dialect.SQLite, "file:app.db")
//	client.Register(&User{})
//	client.Migrate(ctx)
//
//	jane, _ := quill.Create[User](ctx, client, sql.Set("name", "Jane"), sql.Set("age", 28))
//	adults, _ := quill.Filter[User](ctx, client, sql.GTE("age", 18))
package quill

import (
	"github.com/syssam/quill/schema"
)

// Model is the capability a record type provides to the engine: its
// schema descriptor plus positional (de)composition of an instance.
// Values and Pointers must follow the descriptor's field order. The
// engine never retains a record after a call returns and performs no
// change tracking; a mutated record must be passed back to Update
// explicitly.
type Model interface {
	// Schema returns the model descriptor. It must be stable across
	// calls and instances.
	Schema() *schema.Model

	// Values decomposes the record into column values in field order.
	Values() []any

	// Pointers returns scan destinations for every column in field
	// order.
	Pointers() []any
}

// ModelPtr is the constraint used by the generic query entry points:
// a pointer to T that implements Model.
type ModelPtr[T any] interface {
	*T
	Model
}
