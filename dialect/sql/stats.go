package sql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/syssam/schemasync/dialect"
)

// Kind classifies a statement by its leading keyword.
type Kind uint8

// Statement kinds.
const (
	KindOther Kind = iota
	KindDDL
	KindWrite
	KindRead
	KindSession
	numKinds
)

var kindNames = [numKinds]string{"other", "ddl", "write", "read", "session"}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// StatementKind returns the kind of the statement.
//
//	sql.StatementKind("ALTER TABLE users ADD COLUMN age INTEGER") // KindDDL
//	sql.StatementKind("SET lock_timeout = 500")                   // KindSession
func StatementKind(query string) Kind {
	query = strings.TrimLeftFunc(query, func(r rune) bool {
		return unicode.IsSpace(r) || r == '('
	})
	end := strings.IndexFunc(query, func(r rune) bool { return !unicode.IsLetter(r) })
	if end == -1 {
		end = len(query)
	}
	switch strings.ToUpper(query[:end]) {
	case "CREATE", "ALTER", "DROP", "RENAME", "TRUNCATE", "COMMENT":
		return KindDDL
	case "INSERT", "UPDATE", "DELETE", "MERGE", "REPLACE":
		return KindWrite
	case "SELECT", "WITH", "SHOW", "PRAGMA", "EXPLAIN", "DESCRIBE", "VALUES":
		return KindRead
	case "SET", "RESET", "USE":
		return KindSession
	default:
		return KindOther
	}
}

// lockTimeoutMessages are the lowercased error messages of statements that
// gave up waiting for a lock: MySQL 1205, SQL Server 1222 and SQLITE_BUSY.
var lockTimeoutMessages = []string{
	"lock timeout",
	"lock wait timeout exceeded",
	"lock request time out period exceeded",
	"database is locked",
}

// IsLockTimeout reports whether err was caused by a statement waiting longer
// than the lock timeout for a lock held by another session.
func IsLockTimeout(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "55P03"
	}
	msg := strings.ToLower(err.Error())
	for _, m := range lockTimeoutMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// QueryStats holds the statement counters of a StatsDriver.
type QueryStats struct {
	queries, execs atomic.Int64
	kinds          [numKinds]atomic.Int64
	duration       atomic.Int64
	slow, errors   atomic.Int64
	lockTimeouts   atomic.Int64
	txs, rollbacks atomic.Int64
}

// Stats returns a snapshot of the counters.
func (s *QueryStats) Stats() StatsSnapshot {
	snap := StatsSnapshot{
		TotalQueries:  s.queries.Load(),
		TotalExecs:    s.execs.Load(),
		TotalDuration: time.Duration(s.duration.Load()),
		SlowQueries:   s.slow.Load(),
		Errors:        s.errors.Load(),
		LockTimeouts:  s.lockTimeouts.Load(),
		Transactions:  s.txs.Load(),
		Rollbacks:     s.rollbacks.Load(),
	}
	for k := range snap.ByKind {
		snap.ByKind[k] = s.kinds[k].Load()
	}
	return snap
}

// Reset sets all counters to zero.
func (s *QueryStats) Reset() {
	for _, c := range []*atomic.Int64{&s.queries, &s.execs, &s.duration, &s.slow, &s.errors, &s.lockTimeouts, &s.txs, &s.rollbacks} {
		c.Store(0)
	}
	for k := range s.kinds {
		s.kinds[k].Store(0)
	}
}

func (s *QueryStats) record(query string, duration time.Duration, err error, isQuery bool) {
	if isQuery {
		s.queries.Add(1)
	} else {
		s.execs.Add(1)
	}
	s.kinds[StatementKind(query)].Add(1)
	s.duration.Add(int64(duration))
	if err != nil {
		s.errors.Add(1)
		if IsLockTimeout(err) {
			s.lockTimeouts.Add(1)
		}
	}
}

// StatsSnapshot is a point-in-time copy of the statement counters.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalExecs    int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
	// LockTimeouts counts the failed statements that gave up waiting for a
	// lock. See IsLockTimeout.
	LockTimeouts int64
	Transactions int64
	Rollbacks    int64
	// ByKind counts statements per Kind.
	ByKind [numKinds]int64
}

// DDL returns the number of schema changing statements.
func (s StatsSnapshot) DDL() int64 { return s.ByKind[KindDDL] }

// AvgDuration returns the average statement duration.
func (s StatsSnapshot) AvgDuration() time.Duration {
	total := s.TotalQueries + s.TotalExecs
	if total == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(total)
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"queries=%d execs=%d ddl=%d txs=%d rollbacks=%d duration=%s avg=%s slow=%d errors=%d lock_timeouts=%d",
		s.TotalQueries, s.TotalExecs, s.DDL(), s.Transactions, s.Rollbacks,
		s.TotalDuration, s.AvgDuration(), s.SlowQueries, s.Errors, s.LockTimeouts,
	)
}

// SlowQueryHook is called with every statement slower than the threshold.
type SlowQueryHook func(ctx context.Context, query string, args []any, duration time.Duration)

// StatsDriver is a driver counting the statements it runs.
type StatsDriver struct {
	dialect.Driver
	stats     *QueryStats
	threshold time.Duration
	hook      SlowQueryHook
}

// StatsOption configures a StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the duration above which statements count as
// slow. Default is 500ms, schema changes being slower than queries.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.threshold = d
	}
}

// WithSlowQueryHook sets the hook called with slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) {
		s.hook = hook
	}
}

// WithSlowQueryLog logs slow statements to the given logger, or to the
// default logger when l is nil.
func WithSlowQueryLog(l *slog.Logger) StatsOption {
	if l == nil {
		l = slog.Default()
	}
	return WithSlowQueryHook(func(ctx context.Context, query string, args []any, duration time.Duration) {
		l.WarnContext(ctx, "slow statement", "kind", StatementKind(query), "duration", duration, "query", query, "args", args)
	})
}

// NewStatsDriver wraps a Driver with statement counters.
//
//	drv := sql.NewStatsDriver(pooled, sql.WithSlowThreshold(time.Second))
//	defer func() { slog.Info("ddl stats", "stats", drv.QueryStats().Stats()) }()
func NewStatsDriver(drv dialect.Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{
		Driver:    drv,
		stats:     &QueryStats{},
		threshold: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the counters of the driver.
func (d *StatsDriver) QueryStats() *QueryStats {
	return d.stats
}

// Query runs a query and counts it.
func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Query(ctx, query, args, v)
	d.record(ctx, query, args, start, err, true)
	return err
}

// Exec runs a statement and counts it.
func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Exec(ctx, query, args, v)
	d.record(ctx, query, args, start, err, false)
	return err
}

func (d *StatsDriver) record(ctx context.Context, query string, args any, start time.Time, err error, isQuery bool) {
	duration := time.Since(start)
	d.stats.record(query, duration, err, isQuery)
	if duration <= d.threshold {
		return
	}
	d.stats.slow.Add(1)
	if d.hook != nil {
		argv, _ := args.([]any)
		d.hook(ctx, query, argv, duration)
	}
}

// Tx starts a transaction whose statements are counted.
func (d *StatsDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	d.stats.txs.Add(1)
	return &StatsTx{Tx: tx, driver: d}, nil
}

// StatsTx is a transaction of a StatsDriver.
type StatsTx struct {
	dialect.Tx
	driver *StatsDriver
}

// Query runs a query in the transaction and counts it.
func (tx *StatsTx) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Query(ctx, query, args, v)
	tx.driver.record(ctx, query, args, start, err, true)
	return err
}

// Exec runs a statement in the transaction and counts it.
func (tx *StatsTx) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Exec(ctx, query, args, v)
	tx.driver.record(ctx, query, args, start, err, false)
	return err
}

// Rollback rolls back the transaction and counts it.
func (tx *StatsTx) Rollback() error {
	tx.driver.stats.rollbacks.Add(1)
	return tx.Tx.Rollback()
}

var (
	_ dialect.Driver = (*StatsDriver)(nil)
	_ dialect.Tx     = (*StatsTx)(nil)
)
