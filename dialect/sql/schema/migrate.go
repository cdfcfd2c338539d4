package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/schemasync/dialect"
	"github.com/syssam/schemasync/dialect/sql"
	"github.com/syssam/schemasync/migrate"
	meta "github.com/syssam/schemasync/schema"
)

// ErrNoPlan is returned by Diff and NamedDiff when WithErrNoPlan is set
// and the database is already in sync with the registry.
var ErrNoPlan = errors.New("dialect/sql/schema: no changes to migrate")

// StatementError reports a statement that failed while applying changes
// to the database. Statements executed before it are not rolled back.
type StatementError struct {
	Table     string
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("dialect/sql/schema: table %q: statement %q: %v", e.Table, e.Statement, e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

// IsStatementError returns true if the error is a StatementError.
func IsStatementError(err error) bool {
	if err == nil {
		return false
	}
	var e *StatementError
	return errors.As(err, &e)
}

type (
	// Migrate synchronizes the tables of a registry with a database,
	// either by applying the changes directly or by generating a
	// versioned migration.
	Migrate struct {
		drv          dialect.Driver
		caps         dialect.Capabilities
		mapper       *Mapper
		autoDrop     bool
		strictCycles bool
		errNoPlan    bool
		concurrency  int
		hooks        []DiffHook
		dir          migrate.Store
		logger       *slog.Logger
		now          func() time.Time
	}

	// MigrateOption allows configuring Migrate using functional arguments.
	MigrateOption func(*Migrate)
)

// WithAutoDropColumns enables dropping live columns that are no longer
// declared, on dialects supporting it. Defaults to false.
func WithAutoDropColumns(b bool) MigrateOption {
	return func(m *Migrate) {
		m.autoDrop = b
	}
}

// WithStrictCycles makes dependency cycles between entities fatal.
// By default they are reported and the partial order is used.
func WithStrictCycles(b bool) MigrateOption {
	return func(m *Migrate) {
		m.strictCycles = b
	}
}

// WithDiffHook adds a list of DiffHook to the schema migration.
//
//	schema.WithDiffHook(func(next schema.Differ) schema.Differ {
//		return schema.DiffFunc(func(desired *schema.Table, live []*schema.Column, r *schema.Report) ([]schema.Change, error) {
//			// Code before standard diff.
//			changes, err := next.Diff(desired, live, r)
//			if err != nil {
//				return nil, err
//			}
//			// After diff, you can filter
//			// changes or return new ones.
//			return changes, nil
//		})
//	})
func WithDiffHook(hooks ...DiffHook) MigrateOption {
	return func(m *Migrate) {
		m.hooks = append(m.hooks, hooks...)
	}
}

// WithDir sets the store generated migrations are written to.
func WithDir(dir migrate.Store) MigrateOption {
	return func(m *Migrate) {
		m.dir = dir
	}
}

// WithErrNoPlan makes Diff and NamedDiff return ErrNoPlan when there is
// nothing to migrate.
func WithErrNoPlan(b bool) MigrateOption {
	return func(m *Migrate) {
		m.errNoPlan = b
	}
}

// WithConcurrency bounds the number of tables introspected at once.
// Defaults to 4.
func WithConcurrency(n int) MigrateOption {
	return func(m *Migrate) {
		m.concurrency = n
	}
}

// WithLogger sets the logger warnings and applied changes are reported to.
func WithLogger(l *slog.Logger) MigrateOption {
	return func(m *Migrate) {
		m.logger = l
	}
}

// WithClock sets the clock used to version generated migrations.
func WithClock(now func() time.Time) MigrateOption {
	return func(m *Migrate) {
		m.now = now
	}
}

// NewMigrate creates a synchronizer for the given driver.
func NewMigrate(drv dialect.Driver, opts ...MigrateOption) (*Migrate, error) {
	m := &Migrate{
		drv:         drv,
		concurrency: 4,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	caps, err := dialect.CapabilitiesOf(drv.Dialect())
	if err != nil {
		return nil, err
	}
	if m.mapper, err = NewMapper(caps.Dialect); err != nil {
		return nil, err
	}
	m.caps = caps
	if m.concurrency < 1 {
		m.concurrency = 1
	}
	return m, nil
}

// Plan is the outcome of one synchronization pass.
type Plan struct {
	// ID identifies the pass in logs.
	ID string
	// Changes are ordered by table dependency order. Join tables come last.
	Changes []Change
	Report  *Report
	// Caps are the capabilities of the connected server.
	Caps dialect.Capabilities
	ddl  *sql.DDL
}

// Statements renders the statements applying the plan.
func (p *Plan) Statements() ([]string, error) {
	var stmts []string
	for _, c := range p.Changes {
		s, err := c.Up(p.ddl)
		if err != nil {
			return nil, fmt.Errorf("dialect/sql/schema: %s: %w", c, err)
		}
		stmts = append(stmts, s...)
	}
	return stmts, nil
}

// live is the catalog state of one table.
type live struct {
	exists  bool
	columns []*Column
}

// Plan computes the changes bringing the database in sync with reg.
// Nothing is executed.
func (m *Migrate) Plan(ctx context.Context, reg *meta.Registry) (*Plan, error) {
	p := &Plan{ID: uuid.NewString(), Report: &Report{}, Caps: m.caps}
	ordered, cycles := meta.Order(reg.Entities())
	if len(cycles) > 0 && m.strictCycles {
		return nil, &meta.CycleError{Cycles: cycles}
	}
	for _, c := range cycles {
		p.Report.add(&Warning{Kind: DependencyCycle, Table: c[0], Message: "circular reference " + c.String() + ", tables are created in partial order"})
	}
	tables, err := m.mapper.Tables(reg, ordered)
	if err != nil {
		return nil, err
	}
	joins := m.mapper.JoinTables(reg)
	if err := ValidateTables(append(append([]*Table{}, tables...), joins...)); err != nil {
		return nil, err
	}
	insp, err := NewInspector(m.caps.Dialect, m.drv)
	if err != nil {
		return nil, err
	}
	if m.caps.DropColumnSince != "" {
		v, err := insp.Version(ctx)
		if err != nil {
			return nil, fmt.Errorf("dialect/sql/schema: server version: %w", err)
		}
		p.Caps = m.caps.WithVersion(v)
	}
	p.ddl = sql.NewDDL(p.Caps)
	state, err := m.inspect(ctx, insp, append(append([]*Table{}, tables...), joins...))
	if err != nil {
		return nil, err
	}
	var differ Differ = &Engine{Caps: p.Caps, AutoDropColumns: m.autoDrop}
	for i := len(m.hooks) - 1; i >= 0; i-- {
		differ = m.hooks[i](differ)
	}
	for i, t := range tables {
		if !state[i].exists {
			p.Changes = append(p.Changes, &CreateTable{T: t})
			continue
		}
		changes, err := differ.Diff(t, state[i].columns, p.Report)
		if err != nil {
			return nil, fmt.Errorf("dialect/sql/schema: diff table %q: %w", t.Name, err)
		}
		p.Changes = append(p.Changes, changes...)
	}
	for i, t := range joins {
		if !state[len(tables)+i].exists {
			p.Changes = append(p.Changes, &CreateJoinTable{T: t})
		}
	}
	for _, w := range p.Report.Warnings {
		m.warn(p.ID, w)
	}
	return p, nil
}

// inspect reads the live state of tables, at most m.concurrency at a time.
func (m *Migrate) inspect(ctx context.Context, insp Inspector, tables []*Table) ([]live, error) {
	state := make([]live, len(tables))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i, t := range tables {
		g.Go(func() error {
			exists, err := insp.TableExists(ctx, t.Name)
			if err != nil {
				return fmt.Errorf("dialect/sql/schema: inspect table %q: %w", t.Name, err)
			}
			if !exists {
				return nil
			}
			columns, err := insp.Columns(ctx, t.Name)
			if err != nil {
				return fmt.Errorf("dialect/sql/schema: inspect columns of %q: %w", t.Name, err)
			}
			if m.autoDrop && undeclared(t, columns) {
				if err := insp.Constraints(ctx, t.Name, columns); err != nil {
					return fmt.Errorf("dialect/sql/schema: inspect constraints of %q: %w", t.Name, err)
				}
			}
			state[i] = live{exists: true, columns: columns}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return state, nil
}

// undeclared reports whether a live column other than the key is missing
// from the declared table.
func undeclared(t *Table, columns []*Column) bool {
	for _, c := range columns {
		if _, ok := t.Column(c.Name); !ok && !c.PrimaryKey {
			return true
		}
	}
	return false
}

// Create applies the changes of one pass to the database. Statements run
// one by one outside of a transaction; the first failure stops the pass.
func (m *Migrate) Create(ctx context.Context, reg *meta.Registry) error {
	p, err := m.Plan(ctx, reg)
	if err != nil {
		return err
	}
	for _, c := range p.Changes {
		stmts, err := c.Up(p.ddl)
		if err != nil {
			return fmt.Errorf("dialect/sql/schema: %s: %w", c, err)
		}
		for _, stmt := range stmts {
			if err := m.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
				return &StatementError{Table: c.TableName(), Statement: stmt, Err: err}
			}
		}
		m.logger.Info("schema change applied", "change", c.String(), "pass", p.ID)
	}
	return nil
}

// Diff generates a migration of the pending changes named "changes".
// See NamedDiff.
func (m *Migrate) Diff(ctx context.Context, reg *meta.Registry) (*migrate.Migration, error) {
	return m.NamedDiff(ctx, "changes", reg)
}

// NamedDiff generates a migration of the pending changes without
// executing them, and writes it to the configured store. The down
// statements revert the changes in reverse order; changes that cannot be
// reverted are reported and left out. A nil migration is returned when
// there is nothing to migrate.
func (m *Migrate) NamedDiff(ctx context.Context, name string, reg *meta.Registry) (*migrate.Migration, error) {
	p, err := m.Plan(ctx, reg)
	if err != nil {
		return nil, err
	}
	up, err := p.Statements()
	if err != nil {
		return nil, err
	}
	if len(up) == 0 {
		if m.errNoPlan {
			return nil, ErrNoPlan
		}
		return nil, nil
	}
	var down []string
	for i := len(p.Changes) - 1; i >= 0; i-- {
		c := p.Changes[i]
		stmts, err := c.Down(p.ddl)
		switch {
		case errors.Is(err, ErrIrreversible):
			w := &Warning{Kind: Irreversible, Table: c.TableName(), Message: c.String() + " cannot be reverted: " + err.Error()}
			p.Report.add(w)
			m.warn(p.ID, w)
		case err != nil:
			return nil, fmt.Errorf("dialect/sql/schema: revert %s: %w", c, err)
		default:
			down = append(down, stmts...)
		}
	}
	mig := &migrate.Migration{
		Version: migrate.NewVersion(m.now()),
		Name:    migrate.NormalizeName(name),
		Up:      up,
		Down:    down,
	}
	if m.dir != nil {
		if err := m.dir.Write(ctx, mig); err != nil {
			return nil, err
		}
	}
	m.logger.Info("migration generated", "version", mig.Version, "name", mig.Name, "up", len(up), "down", len(down), "pass", p.ID)
	return mig, nil
}

func (m *Migrate) warn(pass string, w *Warning) {
	m.logger.Warn(w.Message,
		"kind", w.Kind.String(),
		"table", w.Table,
		"column", w.Column,
		"expected", w.Expected,
		"actual", w.Actual,
		"pass", pass,
	)
}
