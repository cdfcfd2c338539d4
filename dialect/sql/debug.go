package sql

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/syssam/schemasync/dialect"
)

// DebugDriver is a driver logging every statement before running it.
type DebugDriver struct {
	dialect.Driver
	log func(context.Context, ...any)
}

// DebugOption configures a DebugDriver.
type DebugOption func(*DebugDriver)

// DebugWithLog sets the log function.
func DebugWithLog(logFunc func(context.Context, ...any)) DebugOption {
	return func(d *DebugDriver) {
		d.log = logFunc
	}
}

// NewDebugDriver wraps a Driver with statement logging. Statements are
// logged at info level unless DebugWithLog overrides the sink.
func NewDebugDriver(drv dialect.Driver, opts ...DebugOption) *DebugDriver {
	d := &DebugDriver{
		Driver: drv,
		log: func(_ context.Context, v ...any) {
			slog.Info(fmt.Sprint(v...))
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// debugLine formats a statement for the debug log, e.g.
// "tx exec ddl (lock timeout 2s): ALTER TABLE ... args: []".
func debugLine(ctx context.Context, prefix, query string, args any) string {
	head := prefix + " " + StatementKind(query).String()
	if d, ok := LockTimeoutFromContext(ctx); ok {
		head += fmt.Sprintf(" (lock timeout %s)", d)
	}
	return fmt.Sprintf("%s: %s args: %v", head, query, args)
}

// Query logs and runs a query.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	d.log(ctx, debugLine(ctx, "query", query, args))
	return d.Driver.Query(ctx, query, args, v)
}

// Exec logs and runs a statement.
func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	d.log(ctx, debugLine(ctx, "exec", query, args))
	return d.Driver.Exec(ctx, query, args, v)
}

// Tx starts a transaction whose statements are logged.
func (d *DebugDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	d.log(ctx, "begin transaction")
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &DebugTx{Tx: tx, log: d.log}, nil
}

// DebugTx is a transaction of a DebugDriver.
type DebugTx struct {
	dialect.Tx
	log func(context.Context, ...any)
}

func (tx *DebugTx) Query(ctx context.Context, query string, args, v any) error {
	tx.log(ctx, debugLine(ctx, "tx query", query, args))
	return tx.Tx.Query(ctx, query, args, v)
}

func (tx *DebugTx) Exec(ctx context.Context, query string, args, v any) error {
	tx.log(ctx, debugLine(ctx, "tx exec", query, args))
	return tx.Tx.Exec(ctx, query, args, v)
}

func (tx *DebugTx) Commit() error {
	tx.log(context.Background(), "commit transaction")
	return tx.Tx.Commit()
}

func (tx *DebugTx) Rollback() error {
	tx.log(context.Background(), "rollback transaction")
	return tx.Tx.Rollback()
}

var (
	_ dialect.Driver = (*DebugDriver)(nil)
	_ dialect.Tx     = (*DebugTx)(nil)
)
