package engine

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-dbcore/internal/row"
	"github.com/nerrad567/gray-logic-dbcore/internal/sqlbuild"
)

// Stream runs stmt and returns a cursor over its rows using the default
// fetch size. The cursor releases itself when read to the end; callers that
// may stop early must Close it.
func (e *Engine) Stream(ctx context.Context, c Conn, stmt sqlbuild.Statement) (*Cursor, error) {
	return e.stream(ctx, c, stmt, c.Dialect().FetchSize(e.fetchSize))
}

// StreamAll is Stream without a page size, leaving the driver to pull the
// whole result at once. It exists for drivers that misbehave with paging and
// should not be used for large results.
func (e *Engine) StreamAll(ctx context.Context, c Conn, stmt sqlbuild.Statement) (*Cursor, error) {
	return e.stream(ctx, c, stmt, 0)
}

func (e *Engine) stream(ctx context.Context, c Conn, stmt sqlbuild.Statement, fetch int) (*Cursor, error) {
	rows, p, err := e.query(ctx, c, stmt)
	if err != nil {
		return nil, err
	}
	return newCursor(rows, c, p, fetch)
}

// SelectRow returns the single row stmt selects, nil if it selects none, or
// ErrCardinality if it selects more than one.
func (e *Engine) SelectRow(ctx context.Context, c Conn, stmt sqlbuild.Statement) (*row.Row, error) {
	cur, err := e.stream(ctx, c, stmt, c.Dialect().FetchSize(2))
	if err != nil {
		return nil, err
	}
	defer cur.Close() //nolint:errcheck // read-only result

	if !cur.Next() {
		return nil, cur.Err()
	}
	first := cur.Row()
	if cur.HasNext() {
		return nil, fmt.Errorf("%w: %q selected more than one row", ErrCardinality, cur.query)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return first, nil
}

// SelectRowAny returns the first row stmt selects, or nil if none. Further
// rows are ignored.
func (e *Engine) SelectRowAny(ctx context.Context, c Conn, stmt sqlbuild.Statement) (*row.Row, error) {
	cur, err := e.stream(ctx, c, stmt, c.Dialect().FetchSize(1))
	if err != nil {
		return nil, err
	}
	defer cur.Close() //nolint:errcheck // read-only result

	if !cur.Next() {
		return nil, cur.Err()
	}
	return cur.Row(), nil
}

// SelectRows returns at most limit rows. limitOver reports whether the
// result held more rows than that; it is detected by reading one row past
// the limit, without a second query.
func (e *Engine) SelectRows(ctx context.Context, c Conn, stmt sqlbuild.Statement, limit int) (rows []*row.Row, limitOver bool, err error) {
	if limit < 1 {
		return nil, false, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	cur, err := e.stream(ctx, c, stmt, c.Dialect().FetchSize(min(limit+1, e.fetchSize)))
	if err != nil {
		return nil, false, err
	}
	defer cur.Close() //nolint:errcheck // read-only result

	rows = make([]*row.Row, 0, min(limit, e.fetchSize))
	for len(rows) < limit && cur.Next() {
		rows = append(rows, cur.Row())
	}
	if len(rows) == limit {
		limitOver = cur.HasNext()
	}
	if err := cur.Err(); err != nil {
		return nil, false, err
	}
	return rows, limitOver, nil
}

// SelectAll materialises every row stmt selects.
func (e *Engine) SelectAll(ctx context.Context, c Conn, stmt sqlbuild.Statement) ([]*row.Row, error) {
	cur, err := e.Stream(ctx, c, stmt)
	if err != nil {
		return nil, err
	}

	var rows []*row.Row
	err = cur.Each(func(r *row.Row) error {
		rows = append(rows, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}
