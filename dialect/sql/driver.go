package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/syssam/schemasync/dialect"
)

// Driver is a dialect.Driver implementation for SQL based databases.
type Driver struct {
	Conn
	db *sql.DB
}

// Open wraps the database/sql.Open method and returns a dialect.Driver.
// The driverName is the database/sql driver registered for the dialect,
// e.g. "pgx" for the Postgres dialect.
func Open(dialect, driverName, source string) (*Driver, error) {
	db, err := sql.Open(driverName, source)
	if err != nil {
		return nil, err
	}
	return OpenDB(dialect, db), nil
}

// OpenDB wraps the given database/sql.DB with a Driver.
func OpenDB(dialect string, db *sql.DB) *Driver {
	return &Driver{Conn: Conn{ExecQuerier: db, dialect: dialect}, db: db}
}

// DB returns the underlying *sql.DB instance.
func (d *Driver) DB() *sql.DB { return d.db }

// Dialect implements the dialect.Dialect method.
func (d *Driver) Dialect() string {
	return dialectOf(d.dialect)
}

// Tx starts and returns a transaction.
func (d *Driver) Tx(ctx context.Context) (dialect.Tx, error) {
	return d.BeginTx(ctx, nil)
}

// BeginTx starts a transaction with options.
func (d *Driver) BeginTx(ctx context.Context, opts *TxOptions) (dialect.Tx, error) {
	tx, err := d.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return newTx(tx, d.dialect), nil
}

// Close closes the underlying connection.
func (d *Driver) Close() error { return d.db.Close() }

// Tx implements dialect.Tx interface. Session settings applied inside the
// transaction are reset before it ends.
type Tx struct {
	Conn
	driver.Tx
}

func newTx(tx *sql.Tx, dialect string) *Tx {
	return &Tx{
		Conn: Conn{ExecQuerier: tx, dialect: dialect, session: &txSession{}},
		Tx:   tx,
	}
}

// Commit resets the session settings and commits the transaction.
func (tx *Tx) Commit() error {
	if err := tx.session.end(tx.ExecQuerier); err != nil {
		return errors.Join(fmt.Errorf("dialect/sql: reset session: %w", err), tx.Tx.Rollback())
	}
	return tx.Tx.Commit()
}

// Rollback resets the session settings and rolls back the transaction.
func (tx *Tx) Rollback() error {
	err := tx.session.end(tx.ExecQuerier)
	if err != nil {
		err = fmt.Errorf("dialect/sql: reset session: %w", err)
	}
	return errors.Join(tx.Tx.Rollback(), err)
}

// lockTimeoutKey is the context key of the lock timeout.
type lockTimeoutKey struct{}

// WithLockTimeout returns a context under which statements wait at most d
// for locks held by other sessions, so that a schema change blocked by a
// long running transaction fails instead of queueing behind it. SQLite has
// no session setting for it; its busy timeout is set on the connection
// string instead.
func WithLockTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, lockTimeoutKey{}, d)
}

// LockTimeoutFromContext returns the lock timeout attached to ctx.
func LockTimeoutFromContext(ctx context.Context) (time.Duration, bool) {
	d, ok := ctx.Value(lockTimeoutKey{}).(time.Duration)
	return d, ok && d > 0
}

// lockTimeout returns the statements setting and resetting the lock
// timeout of a session. Transaction scoped settings have no reset.
func lockTimeout(name string, d time.Duration, inTx bool) (set, reset string) {
	switch dialectOf(name) {
	case dialect.Postgres:
		if inTx {
			return fmt.Sprintf("SET LOCAL lock_timeout = %d", d.Milliseconds()), ""
		}
		return fmt.Sprintf("SET lock_timeout = %d", d.Milliseconds()), "RESET lock_timeout"
	case dialect.MySQL:
		// lock_wait_timeout is in whole seconds.
		secs := max(int64(math.Ceil(d.Seconds())), 1)
		return fmt.Sprintf("SET SESSION lock_wait_timeout = %d", secs), "SET SESSION lock_wait_timeout = DEFAULT"
	case dialect.SQLServer:
		return fmt.Sprintf("SET LOCK_TIMEOUT %d", d.Milliseconds()), "SET LOCK_TIMEOUT -1"
	default:
		return "", ""
	}
}

// txSession tracks the setting applied on a transaction connection.
type txSession struct {
	mu         sync.Mutex
	set, reset string
}

func (s *txSession) begin(ctx context.Context, ex ExecQuerier, set, reset string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set == set {
		return nil
	}
	if _, err := ex.ExecContext(ctx, set); err != nil {
		return err
	}
	s.set, s.reset = set, reset
	return nil
}

func (s *txSession) end(ex ExecQuerier) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	reset := s.reset
	s.set, s.reset = "", ""
	if reset == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := ex.ExecContext(ctx, reset)
	return err
}

// ExecQuerier wraps the standard Exec and Query methods.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn implements dialect.ExecQuerier given ExecQuerier.
type Conn struct {
	ExecQuerier
	dialect string
	// session is set on transaction connections.
	session *txSession
}

// Exec implements the dialect.Exec method.
func (c Conn) Exec(ctx context.Context, query string, args, v any) (rerr error) {
	argv, ok := args.([]any)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect []any for args", args)
	}
	ex, cf, err := c.prepare(ctx)
	if err != nil {
		return fmt.Errorf("dialect/sql: exec: set lock timeout: %w", err)
	}
	if cf != nil {
		defer func() { rerr = errors.Join(rerr, cf()) }()
	}
	switch v := v.(type) {
	case nil:
		if _, err := ex.ExecContext(ctx, query, argv...); err != nil {
			return fmt.Errorf("dialect/sql: exec: %w", err)
		}
	case *sql.Result:
		res, err := ex.ExecContext(ctx, query, argv...)
		if err != nil {
			return fmt.Errorf("dialect/sql: exec: %w", err)
		}
		*v = res
	default:
		return fmt.Errorf("dialect/sql: invalid type %T. expect *sql.Result", v)
	}
	return nil
}

// Query implements the dialect.Query method.
func (c Conn) Query(ctx context.Context, query string, args, v any) error {
	vr, ok := v.(*Rows)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect *sql.Rows", v)
	}
	argv, ok := args.([]any)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect []any for args", args)
	}
	ex, cf, err := c.prepare(ctx)
	if err != nil {
		return fmt.Errorf("dialect/sql: query: set lock timeout: %w", err)
	}
	rows, err := ex.QueryContext(ctx, query, argv...)
	if err != nil {
		if cf != nil {
			err = errors.Join(err, cf())
		}
		return fmt.Errorf("dialect/sql: query: %w", err)
	}
	*vr = Rows{rows}
	if cf != nil {
		vr.ColumnScanner = rowsWithCloser{rows, cf}
	}
	return nil
}

// prepare applies the lock timeout of ctx, if any, and returns the
// executor to run the statement on with a function undoing the setting.
// On a *sql.DB the statement runs on a dedicated connection so the setting
// does not leak into the database/sql pool. Inside a transaction the
// setting is applied once and undone when the transaction ends.
func (c Conn) prepare(ctx context.Context) (ExecQuerier, func() error, error) {
	d, ok := LockTimeoutFromContext(ctx)
	if !ok {
		return c.ExecQuerier, nil, nil
	}
	set, reset := lockTimeout(c.dialect, d, c.session != nil)
	if set == "" {
		return c.ExecQuerier, nil, nil
	}
	if c.session != nil {
		return c.ExecQuerier, nil, c.session.begin(ctx, c.ExecQuerier, set, reset)
	}
	var (
		ex  ExecQuerier  // Underlying ExecQuerier.
		cls func() error // Close function.
	)
	switch e := c.ExecQuerier.(type) {
	case *sql.DB:
		conn, err := e.Conn(ctx)
		if err != nil {
			return nil, nil, err
		}
		ex, cls = conn, conn.Close
	default:
		// Dedicated connections, e.g. checked out of a pool.
		ex, cls = e, func() error { return nil }
	}
	if _, err := ex.ExecContext(ctx, set); err != nil {
		return nil, nil, errors.Join(err, cls())
	}
	// The reset must run even if ctx was canceled by then.
	cf := func() error {
		resetCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := ex.ExecContext(resetCtx, reset); err != nil {
			return errors.Join(err, cls())
		}
		return cls()
	}
	return ex, cf, nil
}

// dialectOf trims driver suffixes such as "sqlite3" or "postgres+pgx".
func dialectOf(name string) string {
	for _, d := range dialect.Dialects {
		if strings.HasPrefix(name, d) {
			return d
		}
	}
	return name
}

var (
	_ dialect.Driver = (*Driver)(nil)
	_ dialect.Tx     = (*Tx)(nil)
)

type (
	// Rows wraps the sql.Rows to avoid locks copy.
	Rows struct{ ColumnScanner }
	// Result is an alias to sql.Result.
	Result = sql.Result
	// NullInt64 is an alias to sql.NullInt64.
	NullInt64 = sql.NullInt64
	// NullString is an alias to sql.NullString.
	NullString = sql.NullString
	// TxOptions holds the transaction options to be used in DB.BeginTx.
	TxOptions = sql.TxOptions
)

// ColumnScanner is the interface that wraps the standard
// sql.Rows methods used for scanning database rows.
type ColumnScanner interface {
	Close() error
	ColumnTypes() ([]*sql.ColumnType, error)
	Columns() ([]string, error)
	Err() error
	Next() bool
	NextResultSet() bool
	Scan(dest ...any) error
}

// rowsWithCloser wraps the ColumnScanner interface with a custom Close hook.
type rowsWithCloser struct {
	ColumnScanner
	closer func() error
}

// Close closes the underlying ColumnScanner and calls the custom closer.
func (r rowsWithCloser) Close() error {
	err := r.ColumnScanner.Close()
	return errors.Join(err, r.closer())
}
