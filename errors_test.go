package schemasync_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/schemasync"
	"github.com/syssam/schemasync/dialect/sql/pool"
	sqlschema "github.com/syssam/schemasync/dialect/sql/schema"
	"github.com/syssam/schemasync/migrate"
	"github.com/syssam/schemasync/schema"
)

func TestIsMetadataError(t *testing.T) {
	err := &schema.MetadataError{Entity: "User", Field: "age", Reason: "missing column type"}
	assert.Equal(t, `schema: entity "User" field "age": missing column type`, err.Error())
	assert.True(t, schemasync.IsMetadataError(err))
	assert.True(t, schemasync.IsMetadataError(errors.Join(errors.New("other"), err)))
	assert.False(t, schemasync.IsMetadataError(errors.New("other error")))
	assert.False(t, schemasync.IsMetadataError(nil))
}

func TestIsMigrationError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := &migrate.MigrationError{Version: "20260101000000", Op: "apply", Statement: "DROP TABLE t", Err: errors.New("no such table")}
		assert.Equal(t, `migrate: apply 20260101000000: statement "DROP TABLE t": no such table`, err.Error())
		err.Statement = ""
		assert.Equal(t, "migrate: apply 20260101000000: no such table", err.Error())
	})

	t.Run("IsMigrationError", func(t *testing.T) {
		err := &migrate.MigrationError{Version: "1", Op: "rollback", Err: errors.New("boom")}
		assert.True(t, schemasync.IsMigrationError(err))
		assert.True(t, schemasync.IsMigrationError(fmt.Errorf("wrapper: %w", err)))
		assert.False(t, schemasync.IsMigrationError(errors.New("other error")))
		assert.False(t, schemasync.IsMigrationError(nil))
	})
}

func TestIsStatementError(t *testing.T) {
	cause := errors.New("duplicate column")
	err := &sqlschema.StatementError{Table: "users", Statement: "ALTER TABLE users ADD COLUMN a INT", Err: cause}
	assert.True(t, schemasync.IsStatementError(err))
	assert.True(t, schemasync.IsStatementError(fmt.Errorf("wrapper: %w", err)))
	assert.ErrorIs(t, err, cause)
	assert.False(t, schemasync.IsStatementError(cause))
	assert.False(t, schemasync.IsStatementError(nil))
}

func TestIsPoolExhausted(t *testing.T) {
	assert.True(t, schemasync.IsPoolExhausted(pool.ErrPoolExhausted))
	assert.True(t, schemasync.IsPoolExhausted(fmt.Errorf("dialect/sql: exec: %w", pool.ErrPoolExhausted)))
	assert.False(t, schemasync.IsPoolExhausted(pool.ErrClosed))
	assert.False(t, schemasync.IsPoolExhausted(nil))
}

func TestErrCycle(t *testing.T) {
	err := &schema.CycleError{Cycles: []schema.Cycle{{"A", "B"}}}
	assert.ErrorIs(t, err, schemasync.ErrCycle)
	assert.ErrorIs(t, fmt.Errorf("wrapper: %w", err), schemasync.ErrCycle)
}

func TestIsLockTimeout(t *testing.T) {
	err := &migrate.MigrationError{Version: "1", Op: "apply", Statement: "ALTER TABLE users ADD COLUMN age INT", Err: errors.New("Error 1205 (HY000): Lock wait timeout exceeded; try restarting transaction")}
	assert.True(t, schemasync.IsLockTimeout(err))
	assert.False(t, schemasync.IsLockTimeout(errors.New("other error")))
	assert.False(t, schemasync.IsLockTimeout(nil))
}
