package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/syssam/schemasync/dialect"
	"github.com/syssam/schemasync/dialect/sql/pool"
)

// PoolDriver is a dialect.Driver that checks a connection out of a
// pool.Pool for every statement, query or transaction.
type PoolDriver struct {
	pool    *pool.Pool
	dialect string
	closer  func() error
}

// NewPoolDriver returns a driver backed by p. Closing the driver does not
// close the pool.
func NewPoolDriver(dialect string, p *pool.Pool) *PoolDriver {
	return &PoolDriver{pool: p, dialect: dialect}
}

// OpenPool opens a database/sql handle for the given driver name, wraps it
// with a new pool and returns a driver owning both.
func OpenPool(ctx context.Context, dialect, driverName, source string, cfg pool.Config, opts ...pool.Option) (*PoolDriver, error) {
	db, err := sql.Open(driverName, source)
	if err != nil {
		return nil, err
	}
	// The pool owns connection reuse; database/sql must not park closed ones.
	db.SetMaxIdleConns(0)
	p, err := pool.New(ctx, cfg, pool.DBOpener(db), opts...)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	d := NewPoolDriver(dialect, p)
	d.closer = func() error { return errors.Join(p.Close(), db.Close()) }
	return d, nil
}

// Pool returns the underlying pool.
func (d *PoolDriver) Pool() *pool.Pool { return d.pool }

// Dialect implements the dialect.Driver interface.
func (d *PoolDriver) Dialect() string { return dialectOf(d.dialect) }

// Exec implements the dialect.Exec method.
func (d *PoolDriver) Exec(ctx context.Context, query string, args, v any) error {
	c, err := d.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("dialect/sql: exec: %w", err)
	}
	defer c.Release()
	return Conn{ExecQuerier: c.Conn, dialect: d.dialect}.Exec(ctx, query, args, v)
}

// Query implements the dialect.Query method. The connection stays checked
// out until the returned rows are closed.
func (d *PoolDriver) Query(ctx context.Context, query string, args, v any) error {
	c, err := d.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("dialect/sql: query: %w", err)
	}
	if err := (Conn{ExecQuerier: c.Conn, dialect: d.dialect}).Query(ctx, query, args, v); err != nil {
		c.Release()
		return err
	}
	rows := v.(*Rows)
	rows.ColumnScanner = rowsWithCloser{rows.ColumnScanner, func() error {
		c.Release()
		return nil
	}}
	return nil
}

// Tx starts a transaction on a dedicated connection, released on Commit
// or Rollback.
func (d *PoolDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	c, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: begin: %w", err)
	}
	tx, err := c.BeginTx(ctx, nil)
	if err != nil {
		c.Release()
		return nil, fmt.Errorf("dialect/sql: begin: %w", err)
	}
	return &pooledTx{
		Tx:      newTx(tx, d.dialect),
		release: sync.OnceFunc(c.Release),
	}, nil
}

// Close releases resources owned by the driver.
func (d *PoolDriver) Close() error {
	if d.closer != nil {
		return d.closer()
	}
	return nil
}

type pooledTx struct {
	*Tx
	release func()
}

func (tx *pooledTx) Commit() error {
	defer tx.release()
	return tx.Tx.Commit()
}

func (tx *pooledTx) Rollback() error {
	defer tx.release()
	return tx.Tx.Rollback()
}

var (
	_ dialect.Driver = (*PoolDriver)(nil)
	_ dialect.Tx     = (*pooledTx)(nil)
)
