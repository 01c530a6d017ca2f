package quill

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/quill/dialect"
	"github.com/syssam/quill/dialect/sql"
	sqlschema "github.com/syssam/quill/dialect/sql/schema"
	"github.com/syssam/quill/schema"
	"github.com/syssam/quill/schema/field"
)

// Client executes model operations over a dialect driver. It holds no
// mutable state besides the append-only registry, so a single Client
// is safe for concurrent use; isolation across concurrent writes is
// the database's concern.
type Client struct {
	drv      dialect.Driver
	builder  *sql.Builder
	registry *Registry
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCache wraps the client's driver with query-result caching.
func WithCache(cache Cache, ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.drv = NewCacheDriver(c.drv, cache, ttl)
	}
}

// NewClient returns a Client over the given driver. The driver's
// dialect selects the SQL generation strategy.
func NewClient(drv dialect.Driver, opts ...ClientOption) (*Client, error) {
	b, err := sql.NewBuilder(drv.Dialect())
	if err != nil {
		return nil, err
	}
	c := &Client{drv: drv, builder: b, registry: NewRegistry()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Open opens a database/sql connection for the dialect and returns a
// Client over it. The matching driver package (modernc.org/sqlite,
// lib/pq or go-sql-driver/mysql) must be imported by the caller.
func Open(dialectName, source string, opts ...ClientOption) (*Client, error) {
	drv, err := sql.Open(dialectName, source)
	if err != nil {
		return nil, err
	}
	return NewClient(drv, opts...)
}

// Driver returns the client's driver.
func (c *Client) Driver() dialect.Driver { return c.drv }

// Registry returns the client's model registry.
func (c *Client) Registry() *Registry { return c.registry }

// Close closes the underlying driver.
func (c *Client) Close() error { return c.drv.Close() }

// Register adds the models' descriptors to the registry. Registration
// is append-only and idempotent; it must happen before Migrate.
func (c *Client) Register(models ...Model) error {
	for _, m := range models {
		if err := c.registry.Register(m.Schema()); err != nil {
			return err
		}
	}
	return nil
}

// Migrate creates tables for every registered model in dependency
// order. Running it against an existing schema is a no-op.
func (c *Client) Migrate(ctx context.Context) error {
	m, err := sqlschema.NewMigrate(c.drv)
	if err != nil {
		return err
	}
	return m.Create(ctx, c.registry.Models()...)
}

// generatedPK reports whether the database produces the primary-key
// value.
func generatedPK(pk *field.Descriptor) bool {
	return pk.Increment || pk.Type == field.TypeSerial
}

// generatedValue resolves an engine-generated default at call time.
// Timestamps resolve to a literal now so the returned record matches
// what was written.
func generatedValue(f *field.Descriptor) any {
	switch f.Generated {
	case field.GeneratedNow:
		if f.Type == field.TypeDate {
			return time.Now().Format("2006-01-02")
		}
		return time.Now().UTC().Truncate(time.Second)
	case field.GeneratedUUID:
		return uuid.NewString()
	}
	return nil
}

// completeAssignments validates user-provided assignments against the
// model and fills defaults for missing fields, in field order. A
// missing non-nullable field without any default is a validation
// error.
func completeAssignments(sc *schema.Model, assigns []sql.Assignment) ([]sql.Assignment, error) {
	provided := make(map[string]any, len(assigns))
	for _, a := range assigns {
		if sc.Field(a.Column) == nil {
			return nil, &sql.InvalidFieldError{Table: sc.Table, Field: a.Column}
		}
		provided[a.Column] = a.Value
	}
	out := make([]sql.Assignment, 0, len(sc.Fields))
	for _, f := range sc.Fields {
		if v, ok := provided[f.Name]; ok {
			out = append(out, sql.Set(f.Name, v))
			continue
		}
		if f.PrimaryKey && generatedPK(f) {
			continue
		}
		if f.Generated != field.GeneratedNone {
			out = append(out, sql.Set(f.Name, generatedValue(f)))
			continue
		}
		if f.Default != nil {
			out = append(out, sql.Set(f.Name, f.Default))
			continue
		}
		if f.Nullable {
			continue
		}
		return nil, &ValidationError{
			Table: sc.Table, Field: f.Name,
			Err: fmt.Errorf("required field has no value and no default"),
		}
	}
	return out, nil
}

// insert runs a rendered INSERT and returns the generated primary key
// when the database produces one. On Postgres the key comes back via
// RETURNING; elsewhere via LastInsertId.
func (c *Client) insert(ctx context.Context, sc *schema.Model, assigns []sql.Assignment) (int64, bool, error) {
	query, args, err := c.builder.Insert(sc, assigns)
	if err != nil {
		return 0, false, err
	}
	op := "insert " + sc.Table
	if c.builder.ReturnsInsertID(sc) {
		var rows sql.Rows
		if err := c.drv.Query(ctx, query, args, &rows); err != nil {
			return 0, false, &ConnectionError{Op: op, Err: err}
		}
		defer rows.Close()
		var id int64
		if rows.Next() {
			if err := rows.Scan(&id); err != nil {
				return 0, false, &ConnectionError{Op: op, Err: err}
			}
		}
		return id, true, rows.Err()
	}
	var res sql.Result
	if err := c.drv.Exec(ctx, query, args, &res); err != nil {
		return 0, false, &ConnectionError{Op: op, Err: err}
	}
	pk := sc.PrimaryKey()
	if pk == nil || !generatedPK(pk) {
		return 0, false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		// Driver cannot report the generated key; the row is written.
		return 0, false, nil
	}
	return id, true, nil
}

// Create inserts a record built from the given assignments and
// returns it populated with defaults and the generated primary key.
func Create[T any, PT ModelPtr[T]](ctx context.Context, c *Client, assigns ...sql.Assignment) (*T, error) {
	rec := new(T)
	sc := PT(rec).Schema()
	complete, err := completeAssignments(sc, assigns)
	if err != nil {
		return nil, err
	}
	id, hasID, err := c.insert(ctx, sc, complete)
	if err != nil {
		return nil, err
	}
	ptrs := PT(rec).Pointers()
	for _, a := range complete {
		if err := setValue(ptrs[sc.FieldIndex(a.Column)], a.Value); err != nil {
			return nil, fmt.Errorf("quill: populate %s.%s: %w", sc.Table, a.Column, err)
		}
	}
	if hasID {
		if err := setValue(ptrs[sc.FieldIndex(sc.PrimaryKey().Name)], id); err != nil {
			return nil, fmt.Errorf("quill: populate %s.%s: %w", sc.Table, sc.PrimaryKey().Name, err)
		}
	}
	return rec, nil
}

// Save inserts the record when its primary key is zero, and otherwise
// updates the row with that key. The one entry point covers both
// paths so callers need not track whether a record was stored before.
func (c *Client) Save(ctx context.Context, m Model) error {
	sc := m.Schema()
	pk := sc.PrimaryKey()
	pkIdx := sc.FieldIndex(pk.Name)
	vals := m.Values()
	if !isZero(vals[pkIdx]) {
		return c.Update(ctx, m)
	}
	assigns := make([]sql.Assignment, 0, len(sc.Fields))
	for i, f := range sc.Fields {
		if f.PrimaryKey && generatedPK(f) {
			continue
		}
		v := vals[i]
		if f.Generated != field.GeneratedNone && isZero(v) {
			v = generatedValue(f)
		}
		assigns = append(assigns, sql.Set(f.Name, v))
	}
	id, hasID, err := c.insert(ctx, sc, assigns)
	if err != nil {
		return err
	}
	if hasID {
		if err := setValue(m.Pointers()[pkIdx], id); err != nil {
			return fmt.Errorf("quill: populate %s.%s: %w", sc.Table, pk.Name, err)
		}
	}
	return nil
}

// Get returns the first record matching the predicate, or nil with no
// error when nothing matches.
func Get[T any, PT ModelPtr[T]](ctx context.Context, c *Client, p *sql.Predicate) (*T, error) {
	recs, err := filter[T, PT](ctx, c, p, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

// Filter returns every record matching the predicate. Result order is
// storage-defined. A nil predicate matches every row.
func Filter[T any, PT ModelPtr[T]](ctx context.Context, c *Client, p *sql.Predicate) ([]*T, error) {
	return filter[T, PT](ctx, c, p, 0)
}

// All returns every record of the model. Result order is
// storage-defined.
func All[T any, PT ModelPtr[T]](ctx context.Context, c *Client) ([]*T, error) {
	return filter[T, PT](ctx, c, nil, 0)
}

func filter[T any, PT ModelPtr[T]](ctx context.Context, c *Client, p *sql.Predicate, limit int) ([]*T, error) {
	sc := PT(new(T)).Schema()
	query, args, err := c.builder.Select(sc, p)
	if err != nil {
		return nil, err
	}
	var rows sql.Rows
	if err := c.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, &ConnectionError{Op: "select " + sc.Table, Err: err}
	}
	defer rows.Close()
	var out []*T
	for rows.Next() {
		rec := new(T)
		if err := rows.Scan(PT(rec).Pointers()...); err != nil {
			return nil, &ConnectionError{Op: "scan " + sc.Table, Err: err}
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &ConnectionError{Op: "select " + sc.Table, Err: err}
	}
	return out, nil
}

// Count returns the number of records matching the predicate. A nil
// predicate counts every row.
func Count[T any, PT ModelPtr[T]](ctx context.Context, c *Client, p *sql.Predicate) (int64, error) {
	sc := PT(new(T)).Schema()
	query, args, err := c.builder.Count(sc, p)
	if err != nil {
		return 0, err
	}
	var rows sql.Rows
	if err := c.drv.Query(ctx, query, args, &rows); err != nil {
		return 0, &ConnectionError{Op: "count " + sc.Table, Err: err}
	}
	defer rows.Close()
	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, &ConnectionError{Op: "count " + sc.Table, Err: err}
		}
	}
	return n, rows.Err()
}

// Set updates the given columns of the row whose primary key equals
// key, without loading the record first.
func Set[T any, PT ModelPtr[T]](ctx context.Context, c *Client, key any, assigns ...sql.Assignment) error {
	sc := PT(new(T)).Schema()
	return c.update(ctx, sc, assigns, key)
}

// Update writes the record's current field values to the row with its
// primary key. Zero affected rows is reported as ErrNotFound.
func (c *Client) Update(ctx context.Context, m Model) error {
	sc := m.Schema()
	pk := sc.PrimaryKey()
	vals := m.Values()
	assigns := make([]sql.Assignment, 0, len(sc.Fields))
	for i, f := range sc.Fields {
		if f.PrimaryKey {
			continue
		}
		assigns = append(assigns, sql.Set(f.Name, vals[i]))
	}
	return c.update(ctx, sc, assigns, vals[sc.FieldIndex(pk.Name)])
}

func (c *Client) update(ctx context.Context, sc *schema.Model, assigns []sql.Assignment, key any) error {
	pk := sc.PrimaryKey()
	query, args, err := c.builder.Update(sc, assigns, sql.EQ(pk.Name, key))
	if err != nil {
		return err
	}
	var res sql.Result
	if err := c.drv.Exec(ctx, query, args, &res); err != nil {
		return &ConnectionError{Op: "update " + sc.Table, Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil
	}
	if affected == 0 {
		return &NotFoundError{Table: sc.Table, Key: key}
	}
	return nil
}

// Delete removes the row with the record's primary key. Zero affected
// rows is reported as ErrNotFound.
func (c *Client) Delete(ctx context.Context, m Model) error {
	sc := m.Schema()
	pk := sc.PrimaryKey()
	key := m.Values()[sc.FieldIndex(pk.Name)]
	query, args, err := c.builder.Delete(sc, sql.EQ(pk.Name, key))
	if err != nil {
		return err
	}
	var res sql.Result
	if err := c.drv.Exec(ctx, query, args, &res); err != nil {
		return &ConnectionError{Op: "delete " + sc.Table, Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil
	}
	if affected == 0 {
		return &NotFoundError{Table: sc.Table, Key: key}
	}
	return nil
}

// DeleteMany deletes each record by primary key, one statement per
// record. The first failure aborts the remaining deletions; its error
// names the failing key and rows already deleted stay deleted.
func (c *Client) DeleteMany(ctx context.Context, models ...Model) error {
	for _, m := range models {
		if err := c.Delete(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// A Joined pairs one record of each side of an inner join.
type Joined[L, R any] struct {
	Left  *L
	Right *R
}

// Join executes an inner join between the two models and returns one
// Joined pair per matching row. The ON predicate typically compares
// qualified columns: sql.EQ("users.id", sql.Col("profiles.user_id")).
func Join[L, R any, PL ModelPtr[L], PR ModelPtr[R]](ctx context.Context, c *Client, on *sql.Predicate) ([]Joined[L, R], error) {
	left := PL(new(L)).Schema()
	right := PR(new(R)).Schema()
	query, args, err := c.builder.InnerJoin(left, right, on)
	if err != nil {
		return nil, err
	}
	var rows sql.Rows
	if err := c.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, &ConnectionError{Op: "join " + left.Table + "/" + right.Table, Err: err}
	}
	defer rows.Close()
	var out []Joined[L, R]
	for rows.Next() {
		l, r := new(L), new(R)
		dest := append(PL(l).Pointers(), PR(r).Pointers()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, &ConnectionError{Op: "scan join", Err: err}
		}
		out = append(out, Joined[L, R]{Left: l, Right: r})
	}
	if err := rows.Err(); err != nil {
		return nil, &ConnectionError{Op: "join " + left.Table + "/" + right.Table, Err: err}
	}
	return out, nil
}

// isZero reports whether v is nil or its type's zero value.
func isZero(v any) bool {
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).IsZero()
}

// setValue stores v through the given pointer, converting between
// numeric types where needed (e.g. an int64 insert id into an int
// field).
func setValue(ptr, v any) error {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("destination is not a pointer")
	}
	dst := rv.Elem()
	src := reflect.ValueOf(v)
	switch {
	case src.Type().AssignableTo(dst.Type()):
		dst.Set(src)
		return nil
	case numericKind(src.Kind()) && numericKind(dst.Kind()):
		dst.Set(src.Convert(dst.Type()))
		return nil
	}
	// String forms of richer types.
	if s, ok := v.(string); ok {
		switch dst.Interface().(type) {
		case time.Time:
			t, err := time.Parse("2006-01-02", s)
			if err != nil {
				t, err = time.Parse(time.RFC3339, s)
			}
			if err != nil {
				return err
			}
			dst.Set(reflect.ValueOf(t))
			return nil
		case uuid.UUID:
			u, err := uuid.Parse(s)
			if err != nil {
				return err
			}
			dst.Set(reflect.ValueOf(u))
			return nil
		}
	}
	return fmt.Errorf("cannot store %T into %s", v, dst.Type())
}

func numericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
