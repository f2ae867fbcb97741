package engine

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nerrad567/gray-logic-dbcore/internal/row"
)

// column is one result column with the semantic type its values are read as.
type column struct {
	name  string
	typ   row.Type
	known bool // false when the driver reported no type name
}

// Cursor is a lazy, single-pass iterator over a query result.
//
// Rows are materialised one at a time; nothing beyond the current row is
// buffered. The underlying result is released as soon as the last row has
// been read or a read fails, so a cursor iterated to the end needs no Close.
// Abandoning iteration early requires Close, usually deferred:
//
//	cur, err := eng.Stream(ctx, conn, stmt)
//	if err != nil {
//	    return err
//	}
//	defer cur.Close()
//	for cur.Next() {
//	    r := cur.Row()
//	    ...
//	}
//	return cur.Err()
//
// A Cursor is not safe for concurrent use.
type Cursor struct {
	rows   *sql.Rows
	cols   []column
	stmt   prepared
	pool   string
	connID uint64
	fetch  int

	probed  bool // rows.Next has been called for the upcoming position
	hasNext bool
	current *row.Row
	count   int
	err     error
	closed  bool
}

func newCursor(rows *sql.Rows, c Conn, p prepared, fetch int) (*Cursor, error) {
	cur := &Cursor{rows: rows, stmt: p, pool: c.Pool(), connID: c.ID(), fetch: fetch}
	types, err := rows.ColumnTypes()
	if err != nil {
		rows.Close() //nolint:errcheck // reporting the metadata error instead
		return nil, cur.readError(fmt.Errorf("column metadata: %w", err))
	}

	d := c.Dialect()
	cur.cols = make([]column, len(types))
	for i, ct := range types {
		name := ct.DatabaseTypeName()
		cur.cols[i] = column{name: ct.Name(), typ: d.MapType(name), known: name != ""}
	}
	return cur, nil
}

// readError attaches the statement and connection to a read failure.
func (c *Cursor) readError(err error) error {
	return &ExecError{Op: "reading", SQL: c.stmt.sql, Args: c.stmt.args, Pool: c.pool, ConnID: c.connID, Err: err}
}

// HasNext reports whether another row is available. The underlying result is
// probed at most once per position; repeated calls return the cached answer.
// A false result releases the underlying result.
func (c *Cursor) HasNext() bool {
	if c.closed {
		return false
	}
	if !c.probed {
		c.hasNext = c.rows.Next()
		c.probed = true
		if !c.hasNext {
			if err := c.rows.Err(); err != nil {
				c.err = c.readError(fmt.Errorf("row %d: %w", c.count+1, err))
			}
			c.release()
		}
	}
	return c.hasNext
}

// Next advances to the next row and reports whether there was one.
func (c *Cursor) Next() bool {
	if !c.HasNext() {
		return false
	}
	c.probed = false

	r, err := c.scan()
	if err != nil {
		c.err = err
		c.current = nil
		c.release()
		return false
	}
	c.current = r
	c.count++
	return true
}

// Row returns the current row, or nil before the first Next or after the end.
// The row belongs to the caller.
func (c *Cursor) Row() *row.Row {
	return c.current
}

// Err returns the error that ended iteration, if any.
func (c *Cursor) Err() error {
	return c.err
}

// Count returns the number of rows read so far.
func (c *Cursor) Count() int {
	return c.count
}

// FetchSize returns the driver page size requested for this cursor.
// Zero means the driver decides.
func (c *Cursor) FetchSize() int {
	return c.fetch
}

// Columns returns the result column names in select-list order.
func (c *Cursor) Columns() []string {
	out := make([]string, len(c.cols))
	for i, col := range c.cols {
		out[i] = col.name
	}
	return out
}

// Closed reports whether the underlying result has been released.
func (c *Cursor) Closed() bool {
	return c.closed
}

// Close releases the underlying result. It is safe to call more than once
// and after the cursor released itself.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.current = nil
	if err := c.rows.Close(); err != nil {
		return fmt.Errorf("closing rows of %q: %w", c.stmt.sql, err)
	}
	return nil
}

// Each calls fn for every remaining row and closes the cursor on every path.
// Iteration stops at the first error from fn.
func (c *Cursor) Each(fn func(*row.Row) error) error {
	defer c.Close() //nolint:errcheck // released already unless fn failed
	for c.Next() {
		if err := fn(c.Row()); err != nil {
			return err
		}
	}
	return c.Err()
}

func (c *Cursor) release() {
	if err := c.Close(); err != nil && c.err == nil {
		c.err = err
	}
}

// scan reads the current driver row into a Row. A label selected twice
// keeps the last value.
func (c *Cursor) scan() (*row.Row, error) {
	raw := make([]any, len(c.cols))
	dest := make([]any, len(c.cols))
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := c.rows.Scan(dest...); err != nil {
		return nil, c.readError(fmt.Errorf("scanning row %d: %w", c.count+1, err))
	}

	r := row.New()
	for i, col := range c.cols {
		t := col.typ
		if !col.known {
			t = inferType(raw[i])
		}
		v, err := row.Convert(t, raw[i])
		if err != nil {
			return nil, c.readError(fmt.Errorf("row %d column %s: %w", c.count+1, col.name, err))
		}
		r.Set(col.name, v)
	}
	return r, nil
}

// inferType picks a semantic type from a scanned value, for expression
// columns the driver reports without a type name.
func inferType(v any) row.Type {
	switch v.(type) {
	case int64, int32, int, float64, float32, decimal.Decimal:
		return row.Decimal
	case time.Time:
		return row.Timestamp
	}
	return row.Text
}
