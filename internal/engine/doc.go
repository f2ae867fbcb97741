// Package engine executes SQL on pooled connections and generates the
// INSERT, UPDATE and DELETE statements of table-driven CRUD code.
//
// This package manages:
//   - Execution of sqlbuild statements with dialect bind conversion and
//     placeholder rewriting
//   - Row selection: single row, bounded with a limit-over flag, all rows,
//     and streaming through a Cursor
//   - Mutations built from table metadata and a partial parameter row
//   - Optimistic locking on a timestamp column
//   - Slow statement warnings and statement events for telemetry
//
// Outcomes:
//
// A duplicate key on insert and a key-based update or delete that matches
// no row are normal results, reported as false with a nil error. A key-based
// statement that matches several rows fails with ErrCardinality. Driver
// failures are returned as *ExecError carrying the SQL, its values and the
// connection.
//
// Metadata:
//
// Column and primary key metadata is read from the catalog on every call
// that needs it. Schema changes are visible immediately.
//
// Usage:
//
//	eng := engine.New(cfg.Statements)
//	eng.SetLogger(logger.With("component", "engine"))
//
//	conn, err := mgr.Acquire(ctx, "main")
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	params := row.New().SetText("user_id", "U001").SetText("user_nm", "A")
//	ok, err := eng.InsertRow(ctx, conn, "t_user", params)
//	if err != nil {
//	    return err
//	}
//	if !ok {
//	    // already exists
//	}
//	return conn.Commit()
package engine
