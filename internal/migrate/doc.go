// Package migrate applies versioned SQL scripts to a pooled connection.
//
// Migrations are pairs of files named
//
//	YYYYMMDD_HHMMSS_description.up.sql
//	YYYYMMDD_HHMMSS_description.down.sql
//
// The down file is optional. Applied versions are recorded in the
// dbcore_schema_migrations table, which is created on first use through the
// engine's own metadata lookup, so the same scripts drive every dialect the
// engine supports.
//
// Each migration is committed on its own. If migration N fails, migrations
// before it stay applied, N is rolled back and nothing after N is attempted;
// running Up again continues from N.
//
// Usage:
//
//	migs, err := migrate.Load(os.DirFS(cfg.Migrations.Dir), ".")
//	m := migrate.New(eng, migs)
//	m.SetLogger(log)
//	n, err := m.Up(ctx, conn)
package migrate
