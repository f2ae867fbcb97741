package engine

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-dbcore/internal/row"
	"github.com/nerrad567/gray-logic-dbcore/internal/sqlbuild"
)

// insertSavepoint isolates an INSERT that may fail on a duplicate key on
// engines where any failure aborts the transaction.
const insertSavepoint = "dbcore_insert"

// InsertRow inserts params into table. Only parameters naming a column of
// the table are written; other keys are ignored, so callers may pass a
// superset row.
//
// It returns false, without error, when the row violates a unique or primary
// key constraint. Any other failure is returned as an error.
func (e *Engine) InsertRow(ctx context.Context, c Conn, table string, params *row.Row) (bool, error) {
	return e.insert(ctx, c, table, params, "")
}

// InsertRowWithStamp is InsertRow with stampCol set to the database's current
// timestamp. A stampCol value in params is ignored.
func (e *Engine) InsertRowWithStamp(ctx context.Context, c Conn, table string, params *row.Row, stampCol string) (bool, error) {
	if row.NormaliseName(stampCol) == "" {
		return false, fmt.Errorf("%w: empty stamp column for %s", ErrNoColumn, table)
	}
	return e.insert(ctx, c, table, params, stampCol)
}

func (e *Engine) insert(ctx context.Context, c Conn, table string, params *row.Row, stampCol string) (bool, error) {
	t, err := e.TableInfo(ctx, c, table)
	if err != nil {
		return false, err
	}
	stamp := row.NormaliseName(stampCol)
	if stamp != "" && !t.Has(stamp) {
		return false, fmt.Errorf("%w: %s.%s", ErrNoColumn, t.Name, stamp)
	}

	d := c.Dialect()
	cols := sqlbuild.New("INSERT INTO " + t.Name + " (")
	vals := sqlbuild.New(") VALUES (")
	n := 0
	for _, col := range t.Columns {
		if col.Name == stamp {
			cols.Append(col.Name + ",")
			vals.Append(d.CurrentTimestamp() + ",")
			n++
			continue
		}
		v, ok := params.Get(col.Name)
		if !ok {
			continue
		}
		bound, err := v.As(col.Type)
		if err != nil {
			return false, fmt.Errorf("inserting %s.%s: %w", t.Name, col.Name, err)
		}
		cols.Append(col.Name + ",")
		vals.Append("?,", bound)
		n++
	}
	if n == 0 {
		return false, fmt.Errorf("%w: insert into %s", ErrNoValues, t.Name)
	}
	cols.DropTrailing(1)
	vals.DropTrailing(1).Append(")")
	cols.AppendBuilder(vals)

	savepoint := d.NeedsSavepoint()
	if savepoint {
		if _, err := e.exec(ctx, c, sqlbuild.New("SAVEPOINT "+insertSavepoint)); err != nil {
			return false, err
		}
	}

	affected, err := e.exec(ctx, c, cols)
	if err != nil {
		if !d.IsUniqueViolation(err) {
			return false, err
		}
		if savepoint {
			if err := e.rollbackSavepoint(ctx, c); err != nil {
				return false, err
			}
		}
		e.logger.Debug("insert skipped: duplicate key",
			"table", t.Name,
			"pool", c.Pool(),
			"conn_id", c.ID(),
		)
		return false, nil
	}

	if savepoint {
		if _, err := e.exec(ctx, c, sqlbuild.New("RELEASE SAVEPOINT "+insertSavepoint)); err != nil {
			return false, err
		}
	}
	if affected == 0 {
		return false, fmt.Errorf("%w: %s", ErrNotInserted, t.Name)
	}
	return true, nil
}

func (e *Engine) rollbackSavepoint(ctx context.Context, c Conn) error {
	if _, err := e.exec(ctx, c, sqlbuild.New("ROLLBACK TO SAVEPOINT "+insertSavepoint)); err != nil {
		return err
	}
	_, err := e.exec(ctx, c, sqlbuild.New("RELEASE SAVEPOINT "+insertSavepoint))
	return err
}

// UpdateOne updates the single row of table identified by the key columns,
// writing every other parameter that names a column. It returns false when
// no row matched and ErrCardinality when more than one did; in that case the
// change is left in the open transaction, which must be rolled back.
func (e *Engine) UpdateOne(ctx context.Context, c Conn, table string, params *row.Row, keys ...string) (bool, error) {
	return e.updateOne(ctx, c, table, params, "", keys, false)
}

// UpdateOneByPK is UpdateOne keyed by the table's primary key.
func (e *Engine) UpdateOneByPK(ctx context.Context, c Conn, table string, params *row.Row) (bool, error) {
	return e.updateOne(ctx, c, table, params, "", nil, true)
}

// UpdateOneLocked is UpdateOne with optimistic locking: the row qualifies
// only while stampCol still holds the value given in params, and the update
// sets stampCol to the database's current timestamp. A false result means
// the row is gone or was changed by someone else.
func (e *Engine) UpdateOneLocked(ctx context.Context, c Conn, table string, params *row.Row, stampCol string, keys ...string) (bool, error) {
	if row.NormaliseName(stampCol) == "" {
		return false, fmt.Errorf("%w: empty stamp column for %s", ErrNoColumn, table)
	}
	return e.updateOne(ctx, c, table, params, stampCol, keys, false)
}

// UpdateOneLockedByPK is UpdateOneLocked keyed by the table's primary key.
func (e *Engine) UpdateOneLockedByPK(ctx context.Context, c Conn, table string, params *row.Row, stampCol string) (bool, error) {
	if row.NormaliseName(stampCol) == "" {
		return false, fmt.Errorf("%w: empty stamp column for %s", ErrNoColumn, table)
	}
	return e.updateOne(ctx, c, table, params, stampCol, nil, true)
}

func (e *Engine) updateOne(ctx context.Context, c Conn, table string, params *row.Row, stampCol string, keys []string, byPK bool) (bool, error) {
	t, err := e.TableInfo(ctx, c, table)
	if err != nil {
		return false, err
	}
	if keys, err = keyColumns(t, keys, byPK); err != nil {
		return false, err
	}
	stamp := row.NormaliseName(stampCol)
	if stamp != "" && !t.Has(stamp) {
		return false, fmt.Errorf("%w: %s.%s", ErrNoColumn, t.Name, stamp)
	}

	b, err := e.updateStatement(c, t, params, keys, stamp)
	if err != nil {
		return false, err
	}
	where := keys
	if stamp != "" {
		where = append(append([]string(nil), keys...), stamp)
	}
	if err := whereClause(b, t, params, where); err != nil {
		return false, err
	}
	return e.execOne(ctx, c, t, b)
}

// DeleteOne deletes the single row of table identified by the key columns.
// It returns false when no row matched and ErrCardinality when more than one
// did; in that case the deletion is left in the open transaction, which must
// be rolled back.
func (e *Engine) DeleteOne(ctx context.Context, c Conn, table string, params *row.Row, keys ...string) (bool, error) {
	return e.deleteOne(ctx, c, table, params, "", keys, false)
}

// DeleteOneByPK is DeleteOne keyed by the table's primary key.
func (e *Engine) DeleteOneByPK(ctx context.Context, c Conn, table string, params *row.Row) (bool, error) {
	return e.deleteOne(ctx, c, table, params, "", nil, true)
}

// DeleteOneLocked is DeleteOne restricted to a row whose stampCol still
// holds the value given in params.
func (e *Engine) DeleteOneLocked(ctx context.Context, c Conn, table string, params *row.Row, stampCol string, keys ...string) (bool, error) {
	if row.NormaliseName(stampCol) == "" {
		return false, fmt.Errorf("%w: empty stamp column for %s", ErrNoColumn, table)
	}
	return e.deleteOne(ctx, c, table, params, stampCol, keys, false)
}

// DeleteOneLockedByPK is DeleteOneLocked keyed by the table's primary key.
func (e *Engine) DeleteOneLockedByPK(ctx context.Context, c Conn, table string, params *row.Row, stampCol string) (bool, error) {
	if row.NormaliseName(stampCol) == "" {
		return false, fmt.Errorf("%w: empty stamp column for %s", ErrNoColumn, table)
	}
	return e.deleteOne(ctx, c, table, params, stampCol, nil, true)
}

func (e *Engine) deleteOne(ctx context.Context, c Conn, table string, params *row.Row, stampCol string, keys []string, byPK bool) (bool, error) {
	t, err := e.TableInfo(ctx, c, table)
	if err != nil {
		return false, err
	}
	if keys, err = keyColumns(t, keys, byPK); err != nil {
		return false, err
	}
	where := keys
	if stamp := row.NormaliseName(stampCol); stamp != "" {
		where = append(append([]string(nil), keys...), stamp)
	}

	b := sqlbuild.New("DELETE FROM " + t.Name)
	if err := whereClause(b, t, params, where); err != nil {
		return false, err
	}
	return e.execOne(ctx, c, t, b)
}

// Update updates every row of table matching the where columns and returns
// the number of rows affected.
func (e *Engine) Update(ctx context.Context, c Conn, table string, params *row.Row, where ...string) (int64, error) {
	t, err := e.TableInfo(ctx, c, table)
	if err != nil {
		return 0, err
	}
	if len(where) == 0 {
		return 0, fmt.Errorf("%w: update of %s needs at least one where column", ErrMissingKey, t.Name)
	}
	b, err := e.updateStatement(c, t, params, normaliseNames(where), "")
	if err != nil {
		return 0, err
	}
	if err := whereClause(b, t, params, where); err != nil {
		return 0, err
	}
	return e.exec(ctx, c, b)
}

// Delete deletes every row of table matching the where columns and returns
// the number of rows affected. At least one where column is required.
func (e *Engine) Delete(ctx context.Context, c Conn, table string, params *row.Row, where ...string) (int64, error) {
	t, err := e.TableInfo(ctx, c, table)
	if err != nil {
		return 0, err
	}
	if len(where) == 0 {
		return 0, fmt.Errorf("%w: delete from %s needs at least one where column", ErrMissingKey, t.Name)
	}
	b := sqlbuild.New("DELETE FROM " + t.Name)
	if err := whereClause(b, t, params, where); err != nil {
		return 0, err
	}
	return e.exec(ctx, c, b)
}

// execOne runs a key-based statement that must affect at most one row.
func (e *Engine) execOne(ctx context.Context, c Conn, t *Table, b *sqlbuild.Builder) (bool, error) {
	affected, err := e.exec(ctx, c, b)
	if err != nil {
		return false, err
	}
	switch {
	case affected > 1:
		e.logger.Error("key-based statement matched several rows",
			"table", t.Name,
			"rows", affected,
			"sql", b.SQL(),
			"pool", c.Pool(),
			"conn_id", c.ID(),
		)
		return false, fmt.Errorf("%w: %q affected %d rows of %s", ErrCardinality, b.SQL(), affected, t.Name)
	case affected == 0:
		return false, nil
	}
	return true, nil
}

// updateStatement writes "UPDATE t SET ..." for every parameter naming a
// column outside skip. A non-empty stamp column is set to the current
// timestamp instead of a parameter.
func (e *Engine) updateStatement(c Conn, t *Table, params *row.Row, skip []string, stamp string) (*sqlbuild.Builder, error) {
	skipped := make(map[string]bool, len(skip))
	for _, k := range skip {
		skipped[k] = true
	}

	b := sqlbuild.New("UPDATE " + t.Name + " SET")
	n := 0
	for _, col := range t.Columns {
		if skipped[col.Name] {
			continue
		}
		if col.Name == stamp {
			b.Append(col.Name + " = " + c.Dialect().CurrentTimestamp() + ",")
			n++
			continue
		}
		v, ok := params.Get(col.Name)
		if !ok {
			continue
		}
		bound, err := v.As(col.Type)
		if err != nil {
			return nil, fmt.Errorf("updating %s.%s: %w", t.Name, col.Name, err)
		}
		b.Append(col.Name+" = ?,", bound)
		n++
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: update of %s", ErrNoValues, t.Name)
	}
	return b.DropTrailing(1), nil
}

// whereClause appends "WHERE a = ? AND b = ?" over the named columns. Every
// column must exist and have a non-NULL value in params.
func whereClause(b *sqlbuild.Builder, t *Table, params *row.Row, cols []string) error {
	b.Append(" WHERE")
	for i, name := range cols {
		col, ok := t.Column(name)
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrNoColumn, t.Name, row.NormaliseName(name))
		}
		v, ok := params.Get(col.Name)
		if !ok || v.IsNull() {
			return fmt.Errorf("%w: %s.%s", ErrMissingKey, t.Name, col.Name)
		}
		bound, err := v.As(col.Type)
		if err != nil {
			return fmt.Errorf("matching %s.%s: %w", t.Name, col.Name, err)
		}
		if i > 0 {
			b.Append("AND")
		}
		b.Append(col.Name+" = ?", bound)
	}
	return nil
}

// keyColumns resolves the key column list for a key-based statement.
func keyColumns(t *Table, keys []string, byPK bool) ([]string, error) {
	if byPK {
		if len(t.PrimaryKey) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoPrimaryKey, t.Name)
		}
		return t.PrimaryKey, nil
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no key columns given for %s", ErrMissingKey, t.Name)
	}
	return normaliseNames(keys), nil
}

func normaliseNames(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = row.NormaliseName(n)
	}
	return out
}
