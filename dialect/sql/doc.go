// Package sql implements the dialect.Driver interface on top of database/sql
// and renders the DDL statements of every supported dialect.
//
// # Drivers
//
// Driver wraps a *sql.DB; PoolDriver checks a connection out of a
// pool.Pool for every statement. StatsDriver and DebugDriver decorate any
// driver with statement counters and statement logging:
//
//	drv, err := sql.OpenPool(ctx, dialect.Postgres, "pgx", dsn, pool.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	stats := sql.NewStatsDriver(drv, sql.WithSlowQueryLog(nil))
//
// # DDL
//
// DDL renders CREATE TABLE, ALTER TABLE and DROP statements from column
// definitions, following the capabilities of the dialect:
//
//	ddl, err := sql.DDLFor(dialect.MySQL)
//	if err != nil {
//	    return err
//	}
//	stmt, err := ddl.AddColumn("users", &sql.ColumnDef{Name: "email", Type: "VARCHAR(255)"})
//	// ALTER TABLE users ADD COLUMN email VARCHAR(255)
//
// Identifiers are validated and written unquoted. Names that are not plain
// identifiers are rejected instead of being escaped.
package sql
