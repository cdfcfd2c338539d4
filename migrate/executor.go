package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/syssam/schemasync/dialect"
	"github.com/syssam/schemasync/dialect/sql"
)

// LedgerTable is the table recording applied migration versions.
const LedgerTable = "schema_migrations"

// MigrationError reports a failed migration. The transaction of the
// migration was rolled back and the ledger left unchanged.
type MigrationError struct {
	Version string
	// Op is "apply" or "rollback".
	Op string
	// Statement is the failing statement, if any.
	Statement string
	Err       error
}

func (e *MigrationError) Error() string {
	if e.Statement != "" {
		return fmt.Sprintf("migrate: %s %s: statement %q: %v", e.Op, e.Version, e.Statement, e.Err)
	}
	return fmt.Sprintf("migrate: %s %s: %v", e.Op, e.Version, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// IsMigrationError returns true if the error is a MigrationError.
func IsMigrationError(err error) bool {
	if err == nil {
		return false
	}
	var e *MigrationError
	return errors.As(err, &e)
}

// Record is one row of the ledger.
type Record struct {
	Version   string
	AppliedAt time.Time
}

// Status is the state of a known migration.
type Status struct {
	Migration *Migration
	Applied   bool
	AppliedAt time.Time
}

// Executor applies and rolls back migrations, recording them in the
// ledger. It assumes a single runner per database.
type Executor struct {
	drv    dialect.Driver
	logger *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger of the executor.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// NewExecutor returns an executor running migrations on drv.
func NewExecutor(drv dialect.Driver, opts ...Option) *Executor {
	e := &Executor{drv: drv, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Init creates the ledger table if it does not exist.
func (e *Executor) Init(ctx context.Context) error {
	if err := e.drv.Exec(ctx, ledgerDDL(e.drv.Dialect()), []any{}, nil); err != nil {
		return fmt.Errorf("migrate: create ledger: %w", err)
	}
	return nil
}

func ledgerDDL(name string) string {
	if name == dialect.SQLServer {
		return "IF OBJECT_ID(N'" + LedgerTable + "', N'U') IS NULL CREATE TABLE " + LedgerTable +
			" (version NVARCHAR(255) PRIMARY KEY, applied_at DATETIME2 DEFAULT SYSDATETIME())"
	}
	return "CREATE TABLE IF NOT EXISTS " + LedgerTable +
		" (version VARCHAR(255) PRIMARY KEY, applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)"
}

// Applied returns the ledger records in ascending version order. The
// ledger is created if needed.
func (e *Executor) Applied(ctx context.Context) ([]*Record, error) {
	if err := e.Init(ctx); err != nil {
		return nil, err
	}
	rows := &sql.Rows{}
	if err := e.drv.Query(ctx, "SELECT version, applied_at FROM "+LedgerTable+" ORDER BY version", []any{}, rows); err != nil {
		return nil, fmt.Errorf("migrate: read ledger: %w", err)
	}
	defer rows.Close()
	var records []*Record
	for rows.Next() {
		var (
			r  = &Record{}
			at sql.NullString
		)
		if err := rows.Scan(&r.Version, &at); err != nil {
			return nil, fmt.Errorf("migrate: read ledger: %w", err)
		}
		r.AppliedAt = parseTime(at.String)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("migrate: read ledger: %w", err)
	}
	return records, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// parseTime parses the textual forms drivers return for timestamps.
func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Pending returns the migrations of ms not recorded in the ledger, in
// ascending version order.
func (e *Executor) Pending(ctx context.Context, ms []*Migration) ([]*Migration, error) {
	if err := checkVersions(ms); err != nil {
		return nil, err
	}
	records, err := e.Applied(ctx)
	if err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(records))
	for _, r := range records {
		applied[r.Version] = true
	}
	var pending []*Migration
	for _, m := range ms {
		if !applied[m.Version] {
			pending = append(pending, m)
		}
	}
	Sort(pending)
	return pending, nil
}

// Apply applies the pending migrations of ms in ascending version order.
// Each migration runs in its own transaction together with its ledger
// insert. Apply stops at the first failure and returns the migrations
// applied so far.
func (e *Executor) Apply(ctx context.Context, ms []*Migration) ([]*Migration, error) {
	pending, err := e.Pending(ctx, ms)
	if err != nil {
		return nil, err
	}
	insert := "INSERT INTO " + LedgerTable + " (version) VALUES (" + sql.Placeholder(e.drv.Dialect(), 1) + ")"
	var done []*Migration
	for _, m := range pending {
		start := time.Now()
		if err := e.run(ctx, "apply", m, m.Up, insert); err != nil {
			if sql.IsLockTimeout(err) {
				e.logger.Warn("migration gave up waiting for a lock", "version", m.Version, "name", m.Name)
			}
			return done, err
		}
		e.logger.Info("migration applied", "version", m.Version, "name", m.Name, "statements", len(m.Up), "duration", time.Since(start))
		done = append(done, m)
	}
	return done, nil
}

// Rollback reverts the n most recently applied migrations in descending
// version order, each in its own transaction together with its ledger
// delete. Rollback stops at the first failure.
func (e *Executor) Rollback(ctx context.Context, ms []*Migration, n int) ([]*Migration, error) {
	if n <= 0 {
		return nil, nil
	}
	if err := checkVersions(ms); err != nil {
		return nil, err
	}
	records, err := e.Applied(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]*Migration, len(ms))
	for _, m := range ms {
		known[m.Version] = m
	}
	slices.Reverse(records)
	del := "DELETE FROM " + LedgerTable + " WHERE version = " + sql.Placeholder(e.drv.Dialect(), 1)
	var done []*Migration
	for _, r := range records[:min(n, len(records))] {
		m, ok := known[r.Version]
		if !ok {
			return done, &MigrationError{Version: r.Version, Op: "rollback", Err: errors.New("migration is applied but unknown")}
		}
		if err := e.run(ctx, "rollback", m, m.Down, del); err != nil {
			return done, err
		}
		e.logger.Info("migration rolled back", "version", m.Version, "name", m.Name, "statements", len(m.Down))
		done = append(done, m)
	}
	return done, nil
}

// Status returns the state of every migration of ms in ascending version
// order.
func (e *Executor) Status(ctx context.Context, ms []*Migration) ([]*Status, error) {
	if err := checkVersions(ms); err != nil {
		return nil, err
	}
	records, err := e.Applied(ctx)
	if err != nil {
		return nil, err
	}
	applied := make(map[string]*Record, len(records))
	for _, r := range records {
		applied[r.Version] = r
	}
	sorted := slices.Clone(ms)
	Sort(sorted)
	status := make([]*Status, len(sorted))
	for i, m := range sorted {
		status[i] = &Status{Migration: m}
		if r, ok := applied[m.Version]; ok {
			status[i].Applied, status[i].AppliedAt = true, r.AppliedAt
		}
	}
	return status, nil
}

// run executes stmts and the ledger statement in one transaction.
func (e *Executor) run(ctx context.Context, op string, m *Migration, stmts []string, ledger string) (rerr error) {
	tx, err := e.drv.Tx(ctx)
	if err != nil {
		return &MigrationError{Version: m.Version, Op: op, Err: err}
	}
	committed := false
	defer func() {
		if rerr != nil && !committed {
			if err := tx.Rollback(); err != nil {
				rerr = errors.Join(rerr, fmt.Errorf("migrate: rolling back transaction: %w", err))
			}
		}
	}()
	for _, stmt := range stmts {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if err := tx.Exec(ctx, stmt, []any{}, nil); err != nil {
			return &MigrationError{Version: m.Version, Op: op, Statement: stmt, Err: err}
		}
	}
	if err := tx.Exec(ctx, ledger, []any{m.Version}, nil); err != nil {
		return &MigrationError{Version: m.Version, Op: op, Statement: ledger, Err: err}
	}
	committed = true
	if err := tx.Commit(); err != nil {
		return &MigrationError{Version: m.Version, Op: op, Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

func checkVersions(ms []*Migration) error {
	seen := make(map[string]bool, len(ms))
	for _, m := range ms {
		if m == nil || m.Version == "" {
			return errors.New("migrate: migration without version")
		}
		if seen[m.Version] {
			return fmt.Errorf("migrate: duplicate migration version %s", m.Version)
		}
		seen[m.Version] = true
	}
	return nil
}
