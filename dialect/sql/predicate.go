package sql

// An Op is a comparison or boolean operator inside a predicate tree.
type Op uint8

// Predicate operators.
const (
	OpEQ  Op = iota // =
	OpNEQ           // !=
	OpLT            // <
	OpLTE           // <=
	OpGT            // >
	OpGTE           // >=
	opAnd           // AND combinator
	opOr            // OR combinator
)

var opText = [...]string{
	OpEQ:  "=",
	OpNEQ: "!=",
	OpLT:  "<",
	OpLTE: "<=",
	OpGT:  ">",
	OpGTE: ">=",
	opAnd: "AND",
	opOr:  "OR",
}

func (o Op) String() string { return opText[o] }

// A Predicate is an immutable boolean expression over field
// comparisons. Leaves hold (field, operator, value); inner nodes
// combine two subtrees with AND or OR. Trees are plain data until they
// are bound to a model at render time, where unknown fields and
// incompatible values are rejected. A tree can safely be reused across
// queries and shared between goroutines.
type Predicate struct {
	op          Op
	field       string
	value       any
	left, right *Predicate
}

// A Column is a value that renders as a column reference instead of a
// bound parameter. It is used for join predicates such as
// EQ("users.id", Col("profiles.user_id")).
type Column string

// Col returns a column-reference value for the given (optionally
// qualified) column name.
func Col(name string) Column { return Column(name) }

func leaf(op Op, field string, v any) *Predicate {
	return &Predicate{op: op, field: field, value: v}
}

// EQ returns a field = value predicate.
func EQ(field string, v any) *Predicate { return leaf(OpEQ, field, v) }

// NEQ returns a field != value predicate.
func NEQ(field string, v any) *Predicate { return leaf(OpNEQ, field, v) }

// LT returns a field < value predicate.
func LT(field string, v any) *Predicate { return leaf(OpLT, field, v) }

// LTE returns a field <= value predicate.
func LTE(field string, v any) *Predicate { return leaf(OpLTE, field, v) }

// GT returns a field > value predicate.
func GT(field string, v any) *Predicate { return leaf(OpGT, field, v) }

// GTE returns a field >= value predicate.
func GTE(field string, v any) *Predicate { return leaf(OpGTE, field, v) }

// And returns a new tree combining p and q with AND. Neither input is
// modified.
func (p *Predicate) And(q *Predicate) *Predicate {
	return &Predicate{op: opAnd, left: p, right: q}
}

// Or returns a new tree combining p and q with OR. Neither input is
// modified.
func (p *Predicate) Or(q *Predicate) *Predicate {
	return &Predicate{op: opOr, left: p, right: q}
}

// And combines the given predicates left to right with AND.
func And(first *Predicate, rest ...*Predicate) *Predicate {
	p := first
	for _, q := range rest {
		p = p.And(q)
	}
	return p
}

// Or combines the given predicates left to right with OR.
func Or(first *Predicate, rest ...*Predicate) *Predicate {
	p := first
	for _, q := range rest {
		p = p.Or(q)
	}
	return p
}

// Where folds zero or more predicates with implicit AND. It returns
// nil when called with no predicates, which renders as "no filter".
func Where(ps ...*Predicate) *Predicate {
	if len(ps) == 0 {
		return nil
	}
	return And(ps[0], ps[1:]...)
}

// An Assignment is one (column, value) pair for INSERT and UPDATE
// statements.
type Assignment struct {
	Column string
	Value  any
}

// Set returns a column assignment.
func Set(column string, v any) Assignment {
	return Assignment{Column: column, Value: v}
}
