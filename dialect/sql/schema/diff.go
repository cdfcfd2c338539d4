package schema

import (
	"strings"

	"github.com/syssam/schemasync/dialect"
)

type (
	// Differ computes the changes turning the live columns of an existing
	// table into the declared table. Non-fatal discrepancies are added to
	// the report.
	Differ interface {
		Diff(desired *Table, live []*Column, r *Report) ([]Change, error)
	}

	// The DiffFunc type is an adapter to allow the use of ordinary function as Differ.
	// If f is a function with the appropriate signature, DiffFunc(f) is a Differ that calls f.
	DiffFunc func(desired *Table, live []*Column, r *Report) ([]Change, error)

	// DiffHook defines the "diff middleware". A function that gets a Differ and returns a Differ.
	DiffHook func(Differ) Differ
)

// Diff calls f(desired, live, r).
func (f DiffFunc) Diff(desired *Table, live []*Column, r *Report) ([]Change, error) {
	return f(desired, live, r)
}

// Engine is the default Differ. It only emits changes the dialect
// capability table allows and reports the others.
type Engine struct {
	Caps dialect.Capabilities
	// AutoDropColumns enables dropping live columns that are not declared.
	AutoDropColumns bool
}

// Diff implements the Differ interface. Changes are ordered additions,
// then modifications, then removals. Primary key columns are never
// added, modified or dropped.
func (e *Engine) Diff(desired *Table, live []*Column, r *Report) ([]Change, error) {
	var (
		adds, mods, drops []Change
		byName            = make(map[string]*Column, len(live))
	)
	for _, c := range live {
		byName[strings.ToLower(c.Name)] = c
	}
	for _, c := range desired.Columns {
		cur, ok := byName[strings.ToLower(c.Name)]
		switch {
		case !ok && c.PrimaryKey:
			r.add(&Warning{Kind: CapabilityGap, Table: desired.Name, Column: c.Name, Message: "primary key column is missing and cannot be added to an existing table"})
		case !ok:
			if !c.Nullable {
				r.add(&Warning{Kind: RiskyChange, Table: desired.Name, Column: c.Name, Message: "new NOT NULL column without default value may fail if table has data"})
			}
			adds = append(adds, &AddColumn{Table: desired.Name, C: c})
		case c.PrimaryKey || cur.PrimaryKey:
			// Keys are left as they are.
		default:
			if m := e.modify(desired.Name, cur, c, r); m != nil {
				mods = append(mods, m)
			}
		}
	}
	for _, c := range live {
		if _, ok := desired.Column(c.Name); ok || c.PrimaryKey {
			continue
		}
		switch {
		case !e.AutoDropColumns:
			r.add(&Warning{Kind: UndeclaredColumn, Table: desired.Name, Column: c.Name, Message: "column exists in the database but is not declared", Actual: c.String()})
		case !e.Caps.DropColumn:
			r.add(&Warning{Kind: CapabilityGap, Table: desired.Name, Column: c.Name, Message: e.Caps.Dialect + " does not support DROP COLUMN", Actual: c.String()})
		case c.constrained() && !e.Caps.DropConstrainedColumn:
			what := "a UNIQUE constraint"
			if c.References != nil {
				what = "a FOREIGN KEY constraint"
			}
			r.add(&Warning{Kind: CapabilityGap, Table: desired.Name, Column: c.Name, Message: e.Caps.Dialect + " cannot drop a column with " + what, Actual: c.String()})
		default:
			drops = append(drops, &DropColumn{Table: desired.Name, C: c})
		}
	}
	return append(append(adds, mods...), drops...), nil
}

// modify returns the change applying the supported differences between
// the live and the declared column, or nil.
func (e *Engine) modify(table string, cur, want *Column, r *Report) Change {
	to, changed := *cur, false
	gap := func(what, expected, actual string) {
		r.add(&Warning{
			Kind:     CapabilityGap,
			Table:    table,
			Column:   want.Name,
			Message:  e.Caps.Dialect + " cannot alter column " + what,
			Expected: expected,
			Actual:   actual,
		})
	}
	if !TypesEqual(cur.Type, want.Type) {
		if e.Caps.AlterColumnType {
			to.Type, changed = want.Type, true
		} else {
			gap("type", want.Type, cur.Type)
		}
	}
	if cur.Nullable != want.Nullable {
		if e.Caps.AlterNullable {
			to.Nullable, changed = want.Nullable, true
		} else {
			gap("nullability", nullability(want), nullability(cur))
		}
	}
	if cur.Unique != want.Unique {
		if e.Caps.AlterUnique {
			to.Unique, changed = want.Unique, true
		} else {
			gap("uniqueness", uniqueness(want), uniqueness(cur))
		}
	}
	if !changed {
		return nil
	}
	if !to.Nullable && cur.Nullable {
		r.add(&Warning{Kind: RiskyChange, Table: table, Column: want.Name, Message: "column changing from NULL to NOT NULL may fail if column has NULL values"})
	}
	if to.Unique && !cur.Unique {
		r.add(&Warning{Kind: RiskyChange, Table: table, Column: want.Name, Message: "adding UNIQUE constraint may fail if duplicate values exist"})
	}
	from := *cur
	return &ModifyColumn{Table: table, From: &from, To: &to}
}

func nullability(c *Column) string {
	if c.Nullable {
		return "NULL"
	}
	return "NOT NULL"
}

func uniqueness(c *Column) string {
	if c.Unique {
		return "UNIQUE"
	}
	return "NOT UNIQUE"
}
