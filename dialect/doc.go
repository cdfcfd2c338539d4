// Package dialect provides the database dialect abstraction of schemasync.
//
// This package defines the driver interfaces used to talk to a database and
// the capability table describing what each dialect can express, so that
// DDL generation and diffing never branch on dialect names directly.
//
// # Supported Dialects
//
//   - MySQL: MySQL/MariaDB database
//   - Postgres: PostgreSQL database
//   - SQLite: SQLite database
//   - SQLServer: Microsoft SQL Server database
//
// # Driver Interface
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// # Capabilities
//
// CapabilitiesOf returns the capability flags of a dialect: the auto
// increment strategy of primary keys, the column modification style,
// whether columns can be dropped and from which server version, and
// whether unique columns can be added in place.
//
//	caps, err := dialect.CapabilitiesOf(dialect.SQLite)
//	if err != nil {
//	    return err
//	}
//	caps = caps.WithVersion("3.31.1") // DROP COLUMN needs 3.35.0
//
// # Sub-packages
//
//   - dialect/sql: database/sql drivers, connection pooling and DDL rendering
//   - dialect/sql/pool: bounded connection pool
//   - dialect/sql/schema: type mapping, introspection, diffing and synchronization
package dialect
