package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-dbcore/internal/row"
	"github.com/nerrad567/gray-logic-dbcore/internal/sqlbuild"
)

// Column is one table column as reported by the catalog.
type Column struct {
	Name string
	Type row.Type
}

// Table is the catalog description of a table.
type Table struct {
	Name       string
	Columns    []Column // in declaration order
	PrimaryKey []string // in key order; empty if none is declared
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	key := row.NormaliseName(name)
	for _, c := range t.Columns {
		if c.Name == key {
			return c, true
		}
	}
	return Column{}, false
}

// Has reports whether the table has the named column.
func (t *Table) Has(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// Names returns the column names in declaration order.
func (t *Table) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// TableInfo reads the columns and primary key of a table from the catalog.
// Nothing is cached: every call sees the schema as it is now.
func (e *Engine) TableInfo(ctx context.Context, c Conn, table string) (*Table, error) {
	d := c.Dialect()
	name := d.NormalizeTable(table)

	colRows, err := e.catalog(ctx, c, d.ColumnsQuery(), name)
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", table, err)
	}
	if len(colRows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}

	t := &Table{Name: strings.TrimSpace(table), Columns: make([]Column, 0, len(colRows))}
	for _, r := range colRows {
		keys := r.Keys()
		col := row.NormaliseName(r.Text(keys[0]))
		t.Columns = append(t.Columns, Column{Name: col, Type: d.MapType(r.Text(keys[1]))})
	}

	pkRows, err := e.catalog(ctx, c, d.PrimaryKeyQuery(), name)
	if err != nil {
		return nil, fmt.Errorf("reading primary key of %s: %w", table, err)
	}
	for _, r := range pkRows {
		t.PrimaryKey = append(t.PrimaryKey, row.NormaliseName(r.Text(r.Keys()[0])))
	}
	return t, nil
}

// catalog runs a one-parameter catalog query.
func (e *Engine) catalog(ctx context.Context, c Conn, query, table string) ([]*row.Row, error) {
	return e.SelectAll(ctx, c, sqlbuild.New(query, table))
}

// CurrentDate returns the database server's current date.
func (e *Engine) CurrentDate(ctx context.Context, c Conn) (row.Value, error) {
	r, err := e.SelectRow(ctx, c, sqlbuild.New(c.Dialect().CurrentDateQuery()))
	if err != nil {
		return row.Value{}, err
	}
	if r == nil || r.Len() == 0 {
		return row.Value{}, fmt.Errorf("current date query %q returned no row", c.Dialect().CurrentDateQuery())
	}
	v, _ := r.Get(r.Keys()[0])
	return v.As(row.Date)
}
