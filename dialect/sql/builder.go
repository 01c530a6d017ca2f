package sql

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/quill/dialect"
	"github.com/syssam/quill/schema"
	"github.com/syssam/quill/schema/field"
)

// validIdentRe validates SQL identifiers (alphanumeric, underscores,
// a single dot for table.column qualification).
var validIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?$`)

func isValidIdent(s string) bool {
	return s != "" && len(s) <= 128 && validIdentRe.MatchString(s)
}

// escapeString escapes a string literal for inline use in DDL.
func escapeString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// A Builder renders engine operations into dialect-specific SQL text
// and an ordered parameter list. One Builder per dialect; all methods
// are pure and safe for concurrent use.
type Builder struct {
	dialect string
}

// NewBuilder returns a Builder for the given dialect. The remote
// dialect shares SQLite's syntax.
func NewBuilder(d string) (*Builder, error) {
	switch d {
	case dialect.SQLite, dialect.Postgres, dialect.MySQL, dialect.Remote:
		return &Builder{dialect: d}, nil
	default:
		return nil, fmt.Errorf("sql: unknown dialect %q", d)
	}
}

// Dialect returns the builder's dialect name.
func (b *Builder) Dialect() string { return b.dialect }

// placeholder returns the n-th (1-based) parameter placeholder.
func (b *Builder) placeholder(n int) string {
	if b.dialect == dialect.Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// ReturnsInsertID reports whether generated INSERT statements carry a
// RETURNING clause for the auto-generated primary key, in which case
// the caller must run them through Query instead of Exec.
func (b *Builder) ReturnsInsertID(m *schema.Model) bool {
	pk := m.PrimaryKey()
	return b.dialect == dialect.Postgres && pk != nil && pkGenerated(pk)
}

// pkGenerated reports whether the primary key value is produced by the
// database.
func pkGenerated(pk *field.Descriptor) bool {
	return pk.Increment || pk.Type == field.TypeSerial
}

// columnType maps a field kind to the dialect's column type.
func (b *Builder) columnType(f *field.Descriptor) (string, error) {
	switch f.Type {
	case field.TypeInt:
		if f.Increment && b.dialect == dialect.Postgres {
			return "SERIAL", nil
		}
		return "INTEGER", nil
	case field.TypeSerial:
		if b.dialect == dialect.Postgres {
			return "SERIAL", nil
		}
		return "INTEGER", nil
	case field.TypeFloat64:
		switch b.dialect {
		case dialect.Postgres:
			return "DOUBLE PRECISION", nil
		case dialect.MySQL:
			return "DOUBLE", nil
		default:
			return "REAL", nil
		}
	case field.TypeString:
		size := f.Size
		if size == 0 {
			size = 255
		}
		return fmt.Sprintf("VARCHAR(%d)", size), nil
	case field.TypeText:
		return "TEXT", nil
	case field.TypeBool:
		if b.dialect == dialect.SQLite || b.dialect == dialect.Remote {
			return "INTEGER", nil
		}
		return "BOOLEAN", nil
	case field.TypeDate:
		return "DATE", nil
	case field.TypeTime:
		if b.dialect == dialect.Postgres {
			return "TIMESTAMP", nil
		}
		return "DATETIME", nil
	case field.TypeUUID:
		if b.dialect == dialect.Postgres {
			return "UUID", nil
		}
		return "CHAR(36)", nil
	default:
		return "", &UnsupportedOperationError{Dialect: b.dialect, Op: fmt.Sprintf("column type %s", f.Type)}
	}
}

// defaultClause renders the DDL DEFAULT for a field, or "" when the
// default is engine-generated at insert time (UUIDs) or unset.
func (b *Builder) defaultClause(f *field.Descriptor) (string, error) {
	switch f.Generated {
	case field.GeneratedNow:
		if f.Type == field.TypeDate {
			return "DEFAULT CURRENT_DATE", nil
		}
		return "DEFAULT CURRENT_TIMESTAMP", nil
	case field.GeneratedUUID:
		return "", nil
	}
	if f.Default == nil {
		return "", nil
	}
	if !f.Type.AcceptsValue(f.Default) {
		return "", &TypeMismatchError{Field: f.Name, Kind: f.Type.String(), Value: f.Default}
	}
	switch v := f.Default.(type) {
	case string:
		return fmt.Sprintf("DEFAULT '%s'", escapeString(v)), nil
	case bool:
		if b.dialect == dialect.Postgres {
			if v {
				return "DEFAULT TRUE", nil
			}
			return "DEFAULT FALSE", nil
		}
		if v {
			return "DEFAULT 1", nil
		}
		return "DEFAULT 0", nil
	default:
		return fmt.Sprintf("DEFAULT %v", v), nil
	}
}

// CreateTable renders an idempotent CREATE TABLE IF NOT EXISTS
// statement for the model. DDL carries no bound parameters; defaults
// are inlined as literals or current-timestamp functions.
func (b *Builder) CreateTable(m *schema.Model) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	if !isValidIdent(m.Table) || strings.Contains(m.Table, ".") {
		return "", fmt.Errorf("sql: invalid table name %q", m.Table)
	}
	cols := make([]string, 0, len(m.Fields))
	fks := make([]string, 0)
	for _, f := range m.Fields {
		if !isValidIdent(f.Name) || strings.Contains(f.Name, ".") {
			return "", fmt.Errorf("sql: table %s: invalid column name %q", m.Table, f.Name)
		}
		typ, err := b.columnType(f)
		if err != nil {
			return "", err
		}
		parts := []string{f.Name, typ}
		if !f.Nullable {
			parts = append(parts, "NOT NULL")
		}
		if f.PrimaryKey {
			switch {
			case pkGenerated(f) && b.dialect == dialect.MySQL:
				parts = append(parts, "AUTO_INCREMENT PRIMARY KEY")
			case pkGenerated(f) && b.dialect != dialect.Postgres:
				// SQLite requires exactly INTEGER PRIMARY KEY AUTOINCREMENT.
				parts = append(parts, "PRIMARY KEY AUTOINCREMENT")
			default:
				parts = append(parts, "PRIMARY KEY")
			}
		}
		if f.Unique && !f.PrimaryKey {
			parts = append(parts, "UNIQUE")
		}
		def, err := b.defaultClause(f)
		if err != nil {
			return "", err
		}
		if def != "" {
			parts = append(parts, def)
		}
		cols = append(cols, strings.Join(parts, " "))
		if f.Ref != nil {
			if !isValidIdent(f.Ref.Table) || !isValidIdent(f.Ref.Column) {
				return "", fmt.Errorf("sql: table %s: invalid foreign-key reference %s.%s", m.Table, f.Ref.Table, f.Ref.Column)
			}
			fks = append(fks, fmt.Sprintf("FOREIGN KEY(%s) REFERENCES %s(%s)", f.Name, f.Ref.Table, f.Ref.Column))
		}
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", m.Table, strings.Join(append(cols, fks...), ", ")), nil
}

// lowerValue converts a Go value into its driver-ready form.
func lowerValue(f *field.Descriptor, v any) any {
	switch v := v.(type) {
	case uuid.UUID:
		return v.String()
	case time.Time:
		if f != nil && f.Type == field.TypeDate {
			return v.Format("2006-01-02")
		}
		return v
	}
	return v
}

// checkValue validates that v can be bound to the model field.
func checkValue(table string, f *field.Descriptor, v any) error {
	if v == nil && !f.Nullable {
		return &TypeMismatchError{Table: table, Field: f.Name, Kind: f.Type.String(), Value: v}
	}
	if !f.Type.AcceptsValue(v) {
		return &TypeMismatchError{Table: table, Field: f.Name, Kind: f.Type.String(), Value: v}
	}
	return nil
}

// resolveColumn resolves a (possibly table-qualified) column name
// against the models in scope. It returns the rendered name, qualified
// when more than one model is in scope.
func resolveColumn(scope []*schema.Model, name string) (string, *field.Descriptor, error) {
	table, col, qualified := strings.Cut(name, ".")
	if !qualified {
		col = name
		for _, m := range scope {
			if f := m.Field(col); f != nil {
				if len(scope) > 1 {
					return m.Table + "." + col, f, nil
				}
				return col, f, nil
			}
		}
		return "", nil, &InvalidFieldError{Table: scope[0].Table, Field: col}
	}
	for _, m := range scope {
		if m.Table != table {
			continue
		}
		if f := m.Field(col); f != nil {
			if len(scope) > 1 {
				return name, f, nil
			}
			return col, f, nil
		}
		return "", nil, &InvalidFieldError{Table: table, Field: col}
	}
	return "", nil, &InvalidFieldError{Table: table, Field: col}
}

// renderPredicate lowers a predicate tree into a parenthesized boolean
// expression. Placeholder numbering starts at *n+1 and *n is advanced
// for every bound parameter.
func (b *Builder) renderPredicate(scope []*schema.Model, p *Predicate, n *int) (string, []any, error) {
	switch p.op {
	case opAnd, opOr:
		left, largs, err := b.renderPredicate(scope, p.left, n)
		if err != nil {
			return "", nil, err
		}
		right, rargs, err := b.renderPredicate(scope, p.right, n)
		if err != nil {
			return "", nil, err
		}
		// Explicit parentheses around every combinator keep AND/OR
		// association unambiguous across dialects.
		return fmt.Sprintf("(%s %s %s)", left, p.op, right), append(largs, rargs...), nil
	}
	name, f, err := resolveColumn(scope, p.field)
	if err != nil {
		return "", nil, err
	}
	if ref, ok := p.value.(Column); ok {
		refName, _, err := resolveColumn(scope, string(ref))
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s %s %s", name, p.op, refName), nil, nil
	}
	if err := checkValue(tableOf(scope, p.field), f, p.value); err != nil {
		return "", nil, err
	}
	*n++
	return fmt.Sprintf("%s %s %s", name, p.op, b.placeholder(*n)), []any{lowerValue(f, p.value)}, nil
}

func tableOf(scope []*schema.Model, fieldName string) string {
	if table, _, ok := strings.Cut(fieldName, "."); ok {
		return table
	}
	return scope[0].Table
}

// Select renders a SELECT over all model columns, optionally filtered.
// A nil predicate selects every row. No ORDER BY is emitted; result
// order is storage-defined.
func (b *Builder) Select(m *schema.Model, p *Predicate) (string, []any, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(m.Columns(), ", "), m.Table)
	if p == nil {
		return query, []any{}, nil
	}
	n := 0
	expr, args, err := b.renderPredicate([]*schema.Model{m}, p, &n)
	if err != nil {
		return "", nil, err
	}
	return query + " WHERE " + expr, args, nil
}

// Count renders a SELECT COUNT(*) over the model, optionally filtered.
func (b *Builder) Count(m *schema.Model, p *Predicate) (string, []any, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", m.Table)
	if p == nil {
		return query, []any{}, nil
	}
	n := 0
	expr, args, err := b.renderPredicate([]*schema.Model{m}, p, &n)
	if err != nil {
		return "", nil, err
	}
	return query + " WHERE " + expr, args, nil
}

// Insert renders an INSERT for the given assignments. On Postgres the
// statement carries a RETURNING clause for database-generated primary
// keys (see ReturnsInsertID).
func (b *Builder) Insert(m *schema.Model, assigns []Assignment) (string, []any, error) {
	if len(assigns) == 0 {
		return "", nil, fmt.Errorf("sql: insert into %s with no values", m.Table)
	}
	cols := make([]string, 0, len(assigns))
	holes := make([]string, 0, len(assigns))
	args := make([]any, 0, len(assigns))
	for i, a := range assigns {
		f := m.Field(a.Column)
		if f == nil {
			return "", nil, &InvalidFieldError{Table: m.Table, Field: a.Column}
		}
		if err := checkValue(m.Table, f, a.Value); err != nil {
			return "", nil, err
		}
		cols = append(cols, a.Column)
		holes = append(holes, b.placeholder(i+1))
		args = append(args, lowerValue(f, a.Value))
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		m.Table, strings.Join(cols, ", "), strings.Join(holes, ", "))
	if b.ReturnsInsertID(m) {
		query += " RETURNING " + m.PrimaryKey().Name
	}
	return query, args, nil
}

// Update renders an UPDATE ... SET ... WHERE statement. The predicate
// is required; unscoped updates are rejected rather than silently
// touching every row.
func (b *Builder) Update(m *schema.Model, assigns []Assignment, p *Predicate) (string, []any, error) {
	if len(assigns) == 0 {
		return "", nil, fmt.Errorf("sql: update %s with no values", m.Table)
	}
	if p == nil {
		return "", nil, fmt.Errorf("sql: update %s without a predicate", m.Table)
	}
	sets := make([]string, 0, len(assigns))
	args := make([]any, 0, len(assigns))
	n := 0
	for _, a := range assigns {
		f := m.Field(a.Column)
		if f == nil {
			return "", nil, &InvalidFieldError{Table: m.Table, Field: a.Column}
		}
		if err := checkValue(m.Table, f, a.Value); err != nil {
			return "", nil, err
		}
		n++
		sets = append(sets, fmt.Sprintf("%s = %s", a.Column, b.placeholder(n)))
		args = append(args, lowerValue(f, a.Value))
	}
	expr, pargs, err := b.renderPredicate([]*schema.Model{m}, p, &n)
	if err != nil {
		return "", nil, err
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", m.Table, strings.Join(sets, ", "), expr)
	return query, append(args, pargs...), nil
}

// Delete renders a DELETE statement. A nil predicate deletes every
// row of the table.
func (b *Builder) Delete(m *schema.Model, p *Predicate) (string, []any, error) {
	query := fmt.Sprintf("DELETE FROM %s", m.Table)
	if p == nil {
		return query, []any{}, nil
	}
	n := 0
	expr, args, err := b.renderPredicate([]*schema.Model{m}, p, &n)
	if err != nil {
		return "", nil, err
	}
	return query + " WHERE " + expr, args, nil
}

// InnerJoin renders a SELECT of both models' columns joined with
// INNER JOIN. All columns are table-qualified so shared column names
// stay unambiguous; the scanned row is left's columns followed by
// right's.
func (b *Builder) InnerJoin(left, right *schema.Model, on *Predicate) (string, []any, error) {
	if on == nil {
		return "", nil, fmt.Errorf("sql: join of %s and %s without an ON predicate", left.Table, right.Table)
	}
	scope := []*schema.Model{left, right}
	cols := make([]string, 0, len(left.Fields)+len(right.Fields))
	for _, m := range scope {
		for _, c := range m.Columns() {
			cols = append(cols, m.Table+"."+c)
		}
	}
	n := 0
	expr, args, err := b.renderPredicate(scope, on, &n)
	if err != nil {
		return "", nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s INNER JOIN %s ON %s",
		strings.Join(cols, ", "), left.Table, right.Table, expr)
	return query, args, nil
}
