// Package remote implements dialect.Driver over HTTP for databases
// exposed as an SQL-over-HTTP service. Every statement is one POST
// carrying the SQL text and its positional parameters as JSON; the
// service replies with the result rows or the affected-row count.
// Statements use SQLite syntax and "?" placeholders.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/syssam/quill/dialect"
	"github.com/syssam/quill/dialect/sql"
)

// request is the wire form of one statement.
type request struct {
	Stmt string `json:"stmt"`
	Args []any  `json:"args"`
}

// response is the wire form of one statement result.
type response struct {
	Columns      []string `json:"columns,omitempty"`
	Rows         [][]any  `json:"rows,omitempty"`
	RowsAffected int64    `json:"rows_affected"`
	LastInsertID int64    `json:"last_insert_id"`
	Error        string   `json:"error,omitempty"`
}

// Driver executes statements against an SQL-over-HTTP endpoint.
type Driver struct {
	url    string
	token  string
	client *http.Client
}

// Option configures the Driver.
type Option func(*Driver)

// WithToken sets a bearer token sent with every request.
func WithToken(token string) Option {
	return func(d *Driver) { d.token = token }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Driver) { d.client = c }
}

// Open returns a Driver that posts statements to the given URL.
func Open(url string, opts ...Option) *Driver {
	d := &Driver{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dialect implements the dialect.Dialect method.
func (d *Driver) Dialect() string { return dialect.Remote }

// Close releases idle connections. The driver holds no other state.
func (d *Driver) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

// Tx returns a no-op transaction; the remote protocol executes each
// statement independently.
func (d *Driver) Tx(context.Context) (dialect.Tx, error) {
	return dialect.NopTx(d), nil
}

func (d *Driver) roundTrip(ctx context.Context, query string, args []any) (*response, error) {
	body, err := json.Marshal(request{Stmt: query, Args: args})
	if err != nil {
		return nil, fmt.Errorf("remote: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("remote: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}
	httpRes, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: %w", err)
	}
	defer httpRes.Body.Close()
	if httpRes.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(httpRes.Body, 1024))
		return nil, fmt.Errorf("remote: server returned %s: %s", httpRes.Status, msg)
	}
	dec := json.NewDecoder(httpRes.Body)
	dec.UseNumber()
	var res response
	if err := dec.Decode(&res); err != nil {
		return nil, fmt.Errorf("remote: decode response: %w", err)
	}
	if res.Error != "" {
		return nil, fmt.Errorf("remote: %s", res.Error)
	}
	return &res, nil
}

// Exec implements the dialect.Exec method.
func (d *Driver) Exec(ctx context.Context, query string, args, v any) error {
	argv, ok := args.([]any)
	if !ok {
		return fmt.Errorf("remote: invalid type %T. expect []any for args", args)
	}
	res, err := d.roundTrip(ctx, query, argv)
	if err != nil {
		return err
	}
	switch v := v.(type) {
	case nil:
	case *sql.Result:
		*v = execResult{affected: res.RowsAffected, lastID: res.LastInsertID}
	default:
		return fmt.Errorf("remote: invalid type %T. expect *sql.Result", v)
	}
	return nil
}

// Query implements the dialect.Query method.
func (d *Driver) Query(ctx context.Context, query string, args, v any) error {
	vr, ok := v.(*sql.Rows)
	if !ok {
		return fmt.Errorf("remote: invalid type %T. expect *sql.Rows", v)
	}
	argv, ok := args.([]any)
	if !ok {
		return fmt.Errorf("remote: invalid type %T. expect []any for args", args)
	}
	res, err := d.roundTrip(ctx, query, argv)
	if err != nil {
		return err
	}
	*vr = sql.Rows{ColumnScanner: &rows{columns: res.Columns, rows: res.Rows}}
	return nil
}

var _ dialect.Driver = (*Driver)(nil)

// execResult implements database/sql.Result over the decoded response.
type execResult struct {
	affected int64
	lastID   int64
}

func (r execResult) LastInsertId() (int64, error) { return r.lastID, nil }
func (r execResult) RowsAffected() (int64, error) { return r.affected, nil }

// rows implements sql.ColumnScanner over a fully materialized JSON
// result set.
type rows struct {
	columns []string
	rows    [][]any
	pos     int
	current []any
}

func (r *rows) Columns() ([]string, error) { return r.columns, nil }
func (r *rows) Close() error               { return nil }
func (r *rows) Err() error                 { return nil }

func (r *rows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.current = r.rows[r.pos]
	r.pos++
	return true
}

func (r *rows) Scan(dest ...any) error {
	if r.current == nil {
		return fmt.Errorf("remote: Scan called without Next")
	}
	if len(dest) != len(r.current) {
		return fmt.Errorf("remote: expected %d scan destinations, got %d", len(r.current), len(dest))
	}
	for i, src := range r.current {
		if err := assign(dest[i], src); err != nil {
			return fmt.Errorf("remote: column %d: %w", i, err)
		}
	}
	return nil
}

// assign converts a JSON-decoded value into the scan destination.
// Numbers arrive as json.Number, everything else as string, bool or
// nil.
func assign(dest, src any) error {
	if src == nil {
		switch d := dest.(type) {
		case *any:
			*d = nil
			return nil
		default:
			// Leave the destination at its zero value.
			return nil
		}
	}
	switch d := dest.(type) {
	case *any:
		*d = src
		return nil
	case *string:
		if s, ok := src.(string); ok {
			*d = s
			return nil
		}
		*d = fmt.Sprint(src)
		return nil
	case *bool:
		switch v := src.(type) {
		case bool:
			*d = v
			return nil
		case json.Number:
			n, err := v.Int64()
			if err != nil {
				return err
			}
			*d = n != 0
			return nil
		}
	case *int:
		n, err := toInt64(src)
		if err != nil {
			return err
		}
		*d = int(n)
		return nil
	case *int64:
		n, err := toInt64(src)
		if err != nil {
			return err
		}
		*d = n
		return nil
	case *float64:
		switch v := src.(type) {
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				return err
			}
			*d = f
			return nil
		}
	case *time.Time:
		if s, ok := src.(string); ok {
			t, err := parseTime(s)
			if err != nil {
				return err
			}
			*d = t
			return nil
		}
	}
	return fmt.Errorf("cannot scan %T into %T", src, dest)
}

func toInt64(src any) (int64, error) {
	switch v := src.(type) {
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(v, 10, 64)
	}
	return 0, fmt.Errorf("cannot convert %T to integer", src)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as time", s)
}
