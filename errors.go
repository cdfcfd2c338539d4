package schemasync

import (
	"errors"

	"github.com/syssam/schemasync/dialect/sql"
	"github.com/syssam/schemasync/dialect/sql/pool"
	sqlschema "github.com/syssam/schemasync/dialect/sql/schema"
	"github.com/syssam/schemasync/migrate"
	"github.com/syssam/schemasync/schema"
)

// Errors returned by the components of schemasync, re-exported for
// callers that only import the root package.
var (
	// ErrCycle matches a *schema.CycleError, returned by strict-cycle passes.
	ErrCycle = schema.ErrCycle

	// ErrPoolExhausted is returned when no connection could be acquired
	// within the configured timeout.
	ErrPoolExhausted = pool.ErrPoolExhausted

	// ErrPoolClosed is returned by operations on a closed pool.
	ErrPoolClosed = pool.ErrClosed

	// ErrNoPlan is returned when a migration is requested with nothing to
	// migrate and the synchronizer was configured to report it.
	ErrNoPlan = sqlschema.ErrNoPlan

	// ErrChecksumMismatch is returned when a migration directory was
	// changed by hand.
	ErrChecksumMismatch = migrate.ErrChecksumMismatch
)

// IsMetadataError returns true if the error is a *schema.MetadataError,
// reported for invalid entity declarations.
func IsMetadataError(err error) bool {
	return schema.IsMetadataError(err)
}

// IsMigrationError returns true if the error is a *migrate.MigrationError,
// reported for a migration that failed to apply or roll back.
func IsMigrationError(err error) bool {
	return migrate.IsMigrationError(err)
}

// IsStatementError returns true if the error is a
// *sqlschema.StatementError, reported for a change that failed to apply.
func IsStatementError(err error) bool {
	return sqlschema.IsStatementError(err)
}

// IsPoolExhausted returns true if the error was caused by an exhausted
// connection pool.
func IsPoolExhausted(err error) bool {
	return errors.Is(err, pool.ErrPoolExhausted)
}

// IsLockTimeout returns true if a statement gave up waiting for a lock held
// by another session. See LockTimeout.
func IsLockTimeout(err error) bool {
	return sql.IsLockTimeout(err)
}
