package schema

import (
	"errors"
	"fmt"

	"github.com/syssam/schemasync/dialect/sql"
)

// ErrIrreversible is returned by Change.Down when the dialect cannot
// express the inverse of a change.
var ErrIrreversible = errors.New("dialect/sql/schema: change cannot be reversed")

// Change is a structural change operation on one table. Every change can
// render its own statements and the statements reverting it.
type Change interface {
	// TableName returns the name of the changed table.
	TableName() string
	// Up renders the statements applying the change.
	Up(*sql.DDL) ([]string, error)
	// Down renders the statements reverting the change.
	Down(*sql.DDL) ([]string, error)
	fmt.Stringer
}

type (
	// CreateTable creates a table of a registered entity.
	CreateTable struct {
		T *Table
	}

	// CreateJoinTable creates the join table of a many-to-many relation.
	CreateJoinTable struct {
		T *Table
	}

	// AddColumn adds a declared column to an existing table.
	AddColumn struct {
		Table string
		C     *Column
	}

	// ModifyColumn changes the type, nullability or uniqueness of an
	// existing column. From is the live column and To the target.
	ModifyColumn struct {
		Table    string
		From, To *Column
	}

	// DropColumn removes an undeclared column. C holds the live column
	// so the change can be reverted.
	DropColumn struct {
		Table string
		C     *Column
	}
)

func (c *CreateTable) TableName() string     { return c.T.Name }
func (c *CreateJoinTable) TableName() string { return c.T.Name }
func (c *AddColumn) TableName() string       { return c.Table }
func (c *ModifyColumn) TableName() string    { return c.Table }
func (c *DropColumn) TableName() string      { return c.Table }

func (c *CreateTable) String() string     { return fmt.Sprintf("create table %q", c.T.Name) }
func (c *CreateJoinTable) String() string { return fmt.Sprintf("create join table %q", c.T.Name) }
func (c *AddColumn) String() string       { return fmt.Sprintf("add column %q to %q", c.C.Name, c.Table) }
func (c *ModifyColumn) String() string {
	return fmt.Sprintf("modify column %q of %q: %s -> %s", c.To.Name, c.Table, c.From, c.To)
}
func (c *DropColumn) String() string { return fmt.Sprintf("drop column %q from %q", c.C.Name, c.Table) }

// Up implements the Change interface.
func (c *CreateTable) Up(d *sql.DDL) ([]string, error) {
	return one(c.T.create(d))
}

// Down implements the Change interface.
func (c *CreateTable) Down(d *sql.DDL) ([]string, error) {
	return one(d.DropTable(c.T.Name))
}

// Up implements the Change interface.
func (c *CreateJoinTable) Up(d *sql.DDL) ([]string, error) {
	return one(c.T.create(d))
}

// Down implements the Change interface.
func (c *CreateJoinTable) Down(d *sql.DDL) ([]string, error) {
	return one(d.DropTable(c.T.Name))
}

// Up implements the Change interface.
func (c *AddColumn) Up(d *sql.DDL) ([]string, error) {
	return addColumn(d, c.Table, c.C)
}

// Down implements the Change interface.
func (c *AddColumn) Down(d *sql.DDL) ([]string, error) {
	return dropColumn(d, c.Table, c.C)
}

// Up implements the Change interface.
func (c *ModifyColumn) Up(d *sql.DDL) ([]string, error) {
	return d.ModifyColumn(c.Table, c.From.def(), c.To.def())
}

// Down implements the Change interface.
func (c *ModifyColumn) Down(d *sql.DDL) ([]string, error) {
	return d.ModifyColumn(c.Table, c.To.def(), c.From.def())
}

// Up implements the Change interface.
func (c *DropColumn) Up(d *sql.DDL) ([]string, error) {
	return dropColumn(d, c.Table, c.C)
}

// Down implements the Change interface. The column is restored with its
// foreign key; a column whose type is unknown cannot be restored.
func (c *DropColumn) Down(d *sql.DDL) ([]string, error) {
	if !sql.ValidType(c.C.Type) {
		return nil, fmt.Errorf("%w: column %q has unknown type %q", ErrIrreversible, c.C.Name, c.C.Type)
	}
	fk := c.C.References
	if fk != nil && d.Capabilities().DropForeignKey == "" {
		return nil, fmt.Errorf("%w: %s cannot add a foreign key to an existing table", ErrIrreversible, d.Capabilities().Dialect)
	}
	stmts, err := addColumn(d, c.Table, c.C)
	if err != nil || fk == nil {
		return stmts, err
	}
	add, err := d.AddForeignKey(c.Table, &sql.ForeignKeyDef{Name: fk.Name, Column: c.C.Name, RefTable: fk.RefTable, RefColumn: fk.RefColumn})
	if err != nil {
		return nil, err
	}
	return append(stmts, add), nil
}

func addColumn(d *sql.DDL, table string, c *Column) ([]string, error) {
	stmts, err := one(d.AddColumn(table, c.def()))
	if err != nil || !c.Unique || d.Capabilities().AddColumnUnique {
		return stmts, err
	}
	idx, err := d.CreateUniqueIndex(table, c.Name)
	if err != nil {
		return nil, err
	}
	return append(stmts, idx), nil
}

// dropColumn drops the foreign key and the unique constraint or index of
// the column before the column itself.
func dropColumn(d *sql.DDL, table string, c *Column) ([]string, error) {
	caps := d.Capabilities()
	if !caps.DropColumn {
		return nil, fmt.Errorf("%w: %s does not support DROP COLUMN", ErrIrreversible, caps.Dialect)
	}
	var (
		stmts []string
		emit  = func(stmt string, err error) error {
			if err == nil {
				stmts = append(stmts, stmt)
			}
			return err
		}
	)
	if fk := c.References; fk != nil {
		name := fk.Name
		if name == "" {
			name = d.ForeignKeyName(table, c.Name)
		}
		if err := emit(d.DropForeignKey(table, name)); err != nil {
			return nil, err
		}
	}
	var err error
	switch {
	case c.UniqueConstraint != "" && caps.DropUniqueConstraint:
		err = emit(d.DropConstraint(table, c.UniqueConstraint))
	case c.UniqueIndex != "":
		err = emit(d.DropIndex(c.UniqueIndex))
	case c.Unique && !caps.AddColumnUnique:
		err = emit(d.DropUniqueIndex(table, c.Name))
	}
	if err != nil {
		return nil, err
	}
	drop, err := d.DropColumn(table, c.Name)
	if err != nil {
		return nil, err
	}
	return append(stmts, drop...), nil
}

func one(stmt string, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	return []string{stmt}, nil
}
