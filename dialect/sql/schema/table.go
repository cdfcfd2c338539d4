package schema

import (
	"fmt"
	"strings"

	"github.com/syssam/schemasync/dialect/sql"
	meta "github.com/syssam/schemasync/schema"
	"github.com/syssam/schemasync/schema/field"
)

// Table is a declared table in dialect types.
type Table struct {
	Name    string
	Columns []*Column
	// PrimaryKey holds the columns of a composite key. Single column
	// keys are marked on the column itself.
	PrimaryKey  []string
	ForeignKeys []*ForeignKey
	// Join reports whether the table materializes a many-to-many relation.
	Join bool
}

// Column is a column of a declared table, or of a live table as read
// from the database catalog.
type Column struct {
	Name          string
	Type          string
	PrimaryKey    bool
	AutoIncrement bool
	Nullable      bool
	Unique        bool

	// The constraints below are only set on live columns, by
	// Inspector.Constraints. UniqueIndex names a standalone unique index,
	// UniqueConstraint a table constraint backing the uniqueness, and
	// References the single column foreign key of the column.
	UniqueIndex      string
	UniqueConstraint string
	References       *ForeignKey
}

// ForeignKey references a column of another table. Name is empty for
// declared keys and on dialects not naming them.
type ForeignKey struct {
	Name      string
	Column    string
	RefTable  string
	RefColumn string
}

// Column returns the column with the given name, matched case-insensitively.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return nil, false
}

func (c *Column) def() *sql.ColumnDef {
	return &sql.ColumnDef{
		Name:          c.Name,
		Type:          c.Type,
		PrimaryKey:    c.PrimaryKey,
		AutoIncrement: c.AutoIncrement,
		NotNull:       !c.Nullable,
		Unique:        c.Unique,
	}
}

// constrained reports whether dropping the live column requires dropping
// a table constraint first.
func (c *Column) constrained() bool {
	return c.UniqueConstraint != "" || c.References != nil
}

func (c *Column) String() string {
	var b strings.Builder
	b.WriteString(c.Type)
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
	}
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	if c.Unique {
		b.WriteString(" UNIQUE")
	}
	if fk := c.References; fk != nil {
		b.WriteString(" REFERENCES " + fk.RefTable + "(" + fk.RefColumn + ")")
	}
	return b.String()
}

func (t *Table) create(d *sql.DDL) (string, error) {
	columns := make([]*sql.ColumnDef, len(t.Columns))
	for i, c := range t.Columns {
		columns[i] = c.def()
	}
	fks := make([]*sql.ForeignKeyDef, len(t.ForeignKeys))
	for i, fk := range t.ForeignKeys {
		fks[i] = &sql.ForeignKeyDef{Column: fk.Column, RefTable: fk.RefTable, RefColumn: fk.RefColumn}
	}
	return d.CreateTable(t.Name, columns, t.PrimaryKey, fks)
}

// Tables builds the declared tables of the given entities, in order.
// Foreign keys are only declared for targets present in the registry.
func (m *Mapper) Tables(reg *meta.Registry, entities []*meta.Entity) ([]*Table, error) {
	tables := make([]*Table, 0, len(entities))
	for _, e := range entities {
		t := &Table{Name: e.Table}
		for _, f := range e.Fields {
			switch f := f.(type) {
			case *field.Identity:
				t.Columns = append(t.Columns, &Column{
					Name:          f.Name,
					Type:          m.Identity(f),
					PrimaryKey:    true,
					AutoIncrement: f.AutoIncrement,
				})
			case *field.Column:
				t.Columns = append(t.Columns, &Column{
					Name:     f.Name,
					Type:     m.Column(f),
					Nullable: f.Nullable,
					Unique:   f.Unique,
				})
			case *field.ManyToOne:
				t.Columns = append(t.Columns, &Column{
					Name:     f.JoinColumn,
					Type:     m.Reference(reg.ReferenceType(f.Target)),
					Nullable: f.Nullable,
				})
				if _, ok := reg.Entity(f.Target); ok {
					t.ForeignKeys = append(t.ForeignKeys, &ForeignKey{
						Column:    f.JoinColumn,
						RefTable:  reg.TargetTable(f.Target),
						RefColumn: reg.ReferencedColumn(f),
					})
				}
			case *field.CreatedTimestamp:
				t.Columns = append(t.Columns, &Column{Name: f.Name, Type: m.Timestamp(), Nullable: true})
			case *field.UpdatedTimestamp:
				t.Columns = append(t.Columns, &Column{Name: f.Name, Type: m.Timestamp(), Nullable: true})
			}
		}
		for _, c := range t.Columns {
			if c.Type == "" {
				return nil, fmt.Errorf("dialect/sql/schema: no %s type for column %s.%s", m.dialect, t.Name, c.Name)
			}
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// JoinTables builds the join tables of the many-to-many relations of reg.
func (m *Mapper) JoinTables(reg *meta.Registry) []*Table {
	var tables []*Table
	for _, jt := range reg.JoinTables() {
		owner, target := jt.Owner.Identity(), jt.Target.Identity()
		tables = append(tables, &Table{
			Name: jt.Name,
			Join: true,
			Columns: []*Column{
				{Name: jt.Column, Type: m.Reference(owner.Type)},
				{Name: jt.InverseColumn, Type: m.Reference(target.Type)},
			},
			PrimaryKey: []string{jt.Column, jt.InverseColumn},
			ForeignKeys: []*ForeignKey{
				{Column: jt.Column, RefTable: jt.Owner.Table, RefColumn: owner.Name},
				{Column: jt.InverseColumn, RefTable: jt.Target.Table, RefColumn: target.Name},
			},
		})
	}
	return tables
}
