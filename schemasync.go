package schemasync

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/syssam/schemasync/config"
	"github.com/syssam/schemasync/dialect"
	"github.com/syssam/schemasync/dialect/sql"
	"github.com/syssam/schemasync/dialect/sql/pool"
	sqlschema "github.com/syssam/schemasync/dialect/sql/schema"
	"github.com/syssam/schemasync/migrate"
	"github.com/syssam/schemasync/schema"
)

// Client is the entry point of schemasync: it holds the entity registry,
// the database driver and the migration store.
type Client struct {
	options
	reg    *schema.Registry
	closer func() error
}

// options holds the configuration of the client.
type options struct {
	driver       dialect.Driver
	store        migrate.Store
	logger       *slog.Logger
	debug        bool
	collect      bool
	stats        []sql.StatsOption
	statsDriver  *sql.StatsDriver
	autoDrop     bool
	strictCycles bool
	lockTimeout  time.Duration
	migrateOpts  []sqlschema.MigrateOption
}

// Option configures the client.
type Option func(*options)

// Driver sets the database driver of the client.
func Driver(drv dialect.Driver) Option {
	return func(o *options) {
		o.driver = drv
	}
}

// Store sets the store generated migrations are written to and read from.
func Store(s migrate.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// Logger sets the structured logger of the client and its components.
func Logger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Debug logs every statement sent to the database.
func Debug() Option {
	return func(o *options) {
		o.debug = true
	}
}

// Stats collects statement counters, readable with Client.Stats.
func Stats(opts ...sql.StatsOption) Option {
	return func(o *options) {
		o.collect = true
		o.stats = append(o.stats, opts...)
	}
}

// AutoDropColumns enables dropping undeclared live columns.
func AutoDropColumns(b bool) Option {
	return func(o *options) {
		o.autoDrop = b
	}
}

// StrictCycles makes dependency cycles between entities fatal.
func StrictCycles(b bool) Option {
	return func(o *options) {
		o.strictCycles = b
	}
}

// LockTimeout bounds the time schema changes wait for locks held by other
// sessions. Zero waits as long as the database does by default.
func LockTimeout(d time.Duration) Option {
	return func(o *options) {
		o.lockTimeout = d
	}
}

// MigrateOptions passes extra options to the schema synchronizer.
func MigrateOptions(opts ...sqlschema.MigrateOption) Option {
	return func(o *options) {
		o.migrateOpts = append(o.migrateOpts, opts...)
	}
}

// NewClient creates a client on the driver given with the Driver option.
func NewClient(opts ...Option) (*Client, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.driver == nil {
		return nil, errors.New("schemasync: missing driver")
	}
	if o.collect {
		o.statsDriver = sql.NewStatsDriver(o.driver, o.stats...)
		o.driver = o.statsDriver
	}
	if o.debug {
		logger := o.logger
		o.driver = sql.NewDebugDriver(o.driver, sql.DebugWithLog(func(ctx context.Context, v ...any) {
			logger.DebugContext(ctx, fmt.Sprint(v...))
		}))
	}
	return &Client{options: o, reg: schema.NewRegistry()}, nil
}

// Open connects to the database described by cfg through the process-wide
// connection pool, opens the configured migration store and returns the
// client. Close releases both. Opening another client replaces the
// process-wide pool; closing a client only closes the pool it opened.
//
//	cfg, err := config.Load("schemasync.yaml")
//	if err != nil {
//		return err
//	}
//	client, err := schemasync.Open(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	db, err := stdsql.Open(cfg.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("schemasync: open %s: %w", cfg.Dialect, err)
	}
	// The pool owns connection reuse; database/sql must not park closed ones.
	db.SetMaxIdleConns(0)
	p, err := pool.Initialize(ctx, cfg.Pool, pool.DBOpener(db), pool.WithLogger(o.logger))
	if err != nil {
		return nil, errors.Join(fmt.Errorf("schemasync: connect %s: %w", cfg.Dialect, err), db.Close())
	}
	closer := func() error { return errors.Join(pool.ShutdownPool(p), db.Close()) }
	store, err := cfg.Migrations.Open(ctx)
	if err != nil {
		return nil, errors.Join(err, closer())
	}
	opts = append([]Option{
		Driver(sql.NewPoolDriver(cfg.Dialect, p)),
		Store(store),
		AutoDropColumns(cfg.AutoDropColumns),
		StrictCycles(cfg.StrictCycles),
		LockTimeout(cfg.LockTimeout),
	}, opts...)
	c, err := NewClient(opts...)
	if err != nil {
		return nil, errors.Join(err, closer())
	}
	c.closer = closer
	return c, nil
}

// Register validates and registers entities. Either all of them are
// registered or none is; invalid metadata is reported as a
// *schema.MetadataError.
func (c *Client) Register(entities ...*schema.Entity) error {
	return c.reg.Register(entities...)
}

// Registry returns the entity registry of the client.
func (c *Client) Registry() *schema.Registry { return c.reg }

// Driver returns the database driver of the client.
func (c *Client) Driver() dialect.Driver { return c.driver }

// locked attaches the lock timeout of the client to ctx.
func (c *Client) locked(ctx context.Context) context.Context {
	if c.lockTimeout <= 0 {
		return ctx
	}
	return sql.WithLockTimeout(ctx, c.lockTimeout)
}

func (c *Client) migrator() (*sqlschema.Migrate, error) {
	opts := append([]sqlschema.MigrateOption{
		sqlschema.WithAutoDropColumns(c.autoDrop),
		sqlschema.WithStrictCycles(c.strictCycles),
		sqlschema.WithLogger(c.logger),
	}, c.migrateOpts...)
	if c.store != nil {
		opts = append(opts, sqlschema.WithDir(c.store))
	}
	return sqlschema.NewMigrate(c.driver, opts...)
}

// Plan computes the changes that would bring the database in sync with
// the registered entities, without executing them.
func (c *Client) Plan(ctx context.Context) (*sqlschema.Plan, error) {
	m, err := c.migrator()
	if err != nil {
		return nil, err
	}
	return m.Plan(ctx, c.reg)
}

// Sync applies the changes bringing the database in sync with the
// registered entities.
func (c *Client) Sync(ctx context.Context) error {
	m, err := c.migrator()
	if err != nil {
		return err
	}
	return m.Create(c.locked(ctx), c.reg)
}

// CreateMigration generates a migration of the pending changes and writes
// it to the store. It returns nil when the database is already in sync.
func (c *Client) CreateMigration(ctx context.Context, name string) (*migrate.Migration, error) {
	m, err := c.migrator()
	if err != nil {
		return nil, err
	}
	return m.NamedDiff(ctx, name, c.reg)
}

// ErrNoStore is returned by operations needing a migration store when the
// client has none.
var ErrNoStore = errors.New("schemasync: no migration store configured")

// Migrations returns the migrations of the store in ascending version order.
func (c *Client) Migrations(ctx context.Context) ([]*migrate.Migration, error) {
	if c.store == nil {
		return nil, ErrNoStore
	}
	return c.store.Migrations(ctx)
}

func (c *Client) executor() *migrate.Executor {
	return migrate.NewExecutor(c.driver, migrate.WithLogger(c.logger))
}

// Migrate applies the pending migrations of the store and returns the
// ones applied, which are also returned alongside a failure.
func (c *Client) Migrate(ctx context.Context) ([]*migrate.Migration, error) {
	ms, err := c.Migrations(ctx)
	if err != nil {
		return nil, err
	}
	return c.executor().Apply(c.locked(ctx), ms)
}

// Rollback reverts the n most recently applied migrations.
func (c *Client) Rollback(ctx context.Context, n int) ([]*migrate.Migration, error) {
	ms, err := c.Migrations(ctx)
	if err != nil {
		return nil, err
	}
	return c.executor().Rollback(c.locked(ctx), ms, n)
}

// Status returns the applied state of every migration of the store.
func (c *Client) Status(ctx context.Context) ([]*migrate.Status, error) {
	ms, err := c.Migrations(ctx)
	if err != nil {
		return nil, err
	}
	return c.executor().Status(ctx, ms)
}

// Stats returns the statement counters. ok is false unless the client was
// created with the Stats option.
func (c *Client) Stats() (s sql.StatsSnapshot, ok bool) {
	if c.statsDriver == nil {
		return s, false
	}
	return c.statsDriver.QueryStats().Stats(), true
}

// Close releases the connections of a client created with Open. It does
// not close a driver given with the Driver option.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	closer := c.closer
	c.closer = nil
	return closer()
}

// CreateDatabase creates the configured database if it does not exist.
// SQLite databases are created as empty files.
func CreateDatabase(ctx context.Context, cfg *config.Config) error {
	if cfg.Dialect == dialect.SQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return fmt.Errorf("schemasync: create database: %w", err)
		}
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_RDWR, 0o644)
		if err != nil {
			return fmt.Errorf("schemasync: create database: %w", err)
		}
		return f.Close()
	}
	return serverExec(ctx, cfg, func(d *sql.DDL) (string, error) {
		return d.CreateDatabase(cfg.Database, cfg.Charset)
	})
}

// DropDatabase drops the configured database if it exists. SQLite
// database files are removed.
func DropDatabase(ctx context.Context, cfg *config.Config) error {
	if cfg.Dialect == dialect.SQLite {
		if err := os.Remove(cfg.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("schemasync: drop database: %w", err)
		}
		return nil
	}
	return serverExec(ctx, cfg, func(d *sql.DDL) (string, error) {
		return d.DropDatabase(cfg.Database)
	})
}

func serverExec(ctx context.Context, cfg *config.Config, stmt func(*sql.DDL) (string, error)) (rerr error) {
	ddl, err := sql.DDLFor(cfg.Dialect)
	if err != nil {
		return err
	}
	query, err := stmt(ddl)
	if err != nil {
		return err
	}
	dsn, err := cfg.ServerDSN()
	if err != nil {
		return err
	}
	drv, err := sql.Open(cfg.Dialect, cfg.DriverName(), dsn)
	if err != nil {
		return fmt.Errorf("schemasync: connect %s: %w", cfg.Dialect, err)
	}
	defer func() { rerr = errors.Join(rerr, drv.Close()) }()
	if err := drv.Exec(ctx, query, []any{}, nil); err != nil {
		return &sqlschema.StatementError{Table: cfg.Database, Statement: query, Err: err}
	}
	return nil
}
