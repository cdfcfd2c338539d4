package sql

import (
	"fmt"

	"github.com/syssam/schemasync/dialect"
)

// ColumnDef is a column as written in a DDL statement.
type ColumnDef struct {
	Name          string
	Type          string
	PrimaryKey    bool
	AutoIncrement bool
	NotNull       bool
	Unique        bool
}

// ForeignKeyDef is a single column foreign-key constraint. Name defaults to
// the generated constraint name of the column.
type ForeignKeyDef struct {
	Name      string
	Column    string
	RefTable  string
	RefColumn string
}

// DDL renders schema statements for one dialect. Every dialect specific
// decision is taken from the dialect capability table.
type DDL struct {
	caps dialect.Capabilities
}

// NewDDL returns a DDL renderer for the given capabilities.
func NewDDL(caps dialect.Capabilities) *DDL {
	return &DDL{caps: caps}
}

// DDLFor returns a DDL renderer for the named dialect.
func DDLFor(name string) (*DDL, error) {
	caps, err := dialect.CapabilitiesOf(name)
	if err != nil {
		return nil, err
	}
	return NewDDL(caps), nil
}

// Capabilities returns the capabilities the renderer was built with.
func (d *DDL) Capabilities() dialect.Capabilities { return d.caps }

// CreateTable renders:
//
//	CREATE TABLE IF NOT EXISTS <table> (<columns>, [PRIMARY KEY (<pk>),] <foreign keys>)
//
// pk is only used for composite keys; single column keys are declared
// inline on the column.
func (d *DDL) CreateTable(table string, columns []*ColumnDef, pk []string, fks []*ForeignKeyDef) (string, error) {
	if len(columns) == 0 {
		return "", fmt.Errorf("dialect/sql: table %q has no columns", table)
	}
	b := &Builder{}
	b.WriteString("CREATE TABLE ")
	if d.caps.CreateIfNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.Ident(table).Pad().Wrap(func(b *Builder) {
		for i, c := range columns {
			if i > 0 {
				b.WriteString(", ")
			}
			d.column(b, c)
		}
		if len(pk) > 0 {
			b.WriteString(", PRIMARY KEY ").Wrap(func(b *Builder) { b.IdentComma(pk...) })
		}
		for _, fk := range fks {
			b.WriteString(", ")
			d.foreignKey(b, table, fk)
		}
	})
	return b.Query()
}

// DropTable renders "DROP TABLE IF EXISTS <table>".
func (d *DDL) DropTable(table string) (string, error) {
	b := &Builder{}
	return b.WriteString("DROP TABLE IF EXISTS ").Ident(table).Query()
}

// AddColumn renders "ALTER TABLE <table> ADD COLUMN <col> <type> [NOT NULL] [UNIQUE]".
// UNIQUE is omitted on dialects that reject it in ADD COLUMN; use
// CreateUniqueIndex there.
func (d *DDL) AddColumn(table string, c *ColumnDef) (string, error) {
	b := &Builder{}
	b.WriteString("ALTER TABLE ").Ident(table).Pad().WriteString(d.caps.AddColumn).Pad()
	d.column(b, &ColumnDef{Name: c.Name, Type: c.Type, NotNull: c.NotNull, Unique: c.Unique && d.caps.AddColumnUnique})
	return b.Query()
}

// CreateUniqueIndex renders "CREATE UNIQUE INDEX <table>_<col>_key ON <table> (<col>)".
func (d *DDL) CreateUniqueIndex(table, column string) (string, error) {
	b := &Builder{}
	return b.WriteString("CREATE UNIQUE INDEX ").Ident(UniqueConstraintName(table, column)).
		WriteString(" ON ").Ident(table).Pad().
		Wrap(func(b *Builder) { b.Ident(column) }).
		Query()
}

// DropUniqueIndex renders "DROP INDEX IF EXISTS <table>_<col>_key".
func (d *DDL) DropUniqueIndex(table, column string) (string, error) {
	return d.DropIndex(UniqueConstraintName(table, column))
}

// DropIndex renders "DROP INDEX IF EXISTS <name>" for a standalone index.
func (d *DDL) DropIndex(name string) (string, error) {
	b := &Builder{}
	return b.WriteString("DROP INDEX IF EXISTS ").Ident(name).Query()
}

// DropConstraint renders "ALTER TABLE <table> DROP CONSTRAINT <name>".
func (d *DDL) DropConstraint(table, name string) (string, error) {
	b := &Builder{}
	return b.WriteString("ALTER TABLE ").Ident(table).WriteString(" DROP CONSTRAINT ").Ident(name).Query()
}

// AddForeignKey renders:
//
//	ALTER TABLE <table> ADD CONSTRAINT <name> FOREIGN KEY (<col>) REFERENCES <ref>(<refcol>)
func (d *DDL) AddForeignKey(table string, fk *ForeignKeyDef) (string, error) {
	if d.caps.DropForeignKey == "" {
		return "", fmt.Errorf("dialect/sql: %s cannot add a foreign key to an existing table", d.caps.Dialect)
	}
	b := &Builder{}
	b.WriteString("ALTER TABLE ").Ident(table).WriteString(" ADD ")
	d.foreignKey(b, table, fk)
	return b.Query()
}

// DropForeignKey renders "ALTER TABLE <table> DROP FOREIGN KEY <name>", or
// DROP CONSTRAINT depending on the dialect.
func (d *DDL) DropForeignKey(table, name string) (string, error) {
	if d.caps.DropForeignKey == "" {
		return "", fmt.Errorf("dialect/sql: %s cannot drop a foreign key", d.caps.Dialect)
	}
	b := &Builder{}
	return b.WriteString("ALTER TABLE ").Ident(table).Pad().WriteString(d.caps.DropForeignKey).Pad().Ident(name).Query()
}

// DropColumn renders the statements removing a column. Dialects that bind
// defaults to named constraints drop that constraint first.
func (d *DDL) DropColumn(table, column string) ([]string, error) {
	if !d.caps.DropColumn {
		return nil, fmt.Errorf("dialect/sql: %s does not support DROP COLUMN", d.caps.Dialect)
	}
	var stmts []string
	if d.caps.DropDefaultConstraint {
		b := &Builder{}
		b.WriteString("DECLARE @ConstraintName nvarchar(200); SELECT @ConstraintName = name FROM sys.default_constraints WHERE parent_object_id = OBJECT_ID(").
			Quote(table).
			WriteString(") AND parent_column_id = (SELECT column_id FROM sys.columns WHERE name = ").
			Quote(column).
			WriteString(" AND object_id = OBJECT_ID(").
			Quote(table).
			WriteString(")); IF @ConstraintName IS NOT NULL EXEC('ALTER TABLE ").
			Ident(table).
			WriteString(" DROP CONSTRAINT ' + @ConstraintName)")
		q, err := b.Query()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, q)
	}
	b := &Builder{}
	q, err := b.WriteString("ALTER TABLE ").Ident(table).WriteString(" DROP COLUMN ").Ident(column).Query()
	if err != nil {
		return nil, err
	}
	return append(stmts, q), nil
}

// ModifyColumn renders the statements turning column from into column to.
// Only the aspects that differ are changed; the caller is responsible for
// passing changes the dialect supports.
func (d *DDL) ModifyColumn(table string, from, to *ColumnDef) ([]string, error) {
	if d.caps.ModifyColumn == "" {
		return nil, fmt.Errorf("dialect/sql: %s does not support altering columns", d.caps.Dialect)
	}
	switch d.caps.ModifyStyle {
	case dialect.ModifyClauses:
		return d.modifyClauses(table, from, to)
	default:
		return d.modifyDefinition(table, from, to)
	}
}

// modifyDefinition restates the column definition:
//
//	ALTER TABLE <table> MODIFY COLUMN <col> <type> [NOT NULL] [UNIQUE]
//
// UNIQUE is only written when it is being added, and a removed unique
// index is dropped by its implicit name.
func (d *DDL) modifyDefinition(table string, from, to *ColumnDef) ([]string, error) {
	var stmts []string
	if from.Type != to.Type || from.NotNull != to.NotNull || (to.Unique && !from.Unique) {
		b := &Builder{}
		b.WriteString("ALTER TABLE ").Ident(table).Pad().WriteString(d.caps.ModifyColumn).Pad()
		d.column(b, &ColumnDef{Name: to.Name, Type: to.Type, NotNull: to.NotNull, Unique: to.Unique && !from.Unique && d.caps.AlterUnique})
		q, err := b.Query()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, q)
	}
	if from.Unique && !to.Unique && d.caps.AlterUnique {
		b := &Builder{}
		q, err := b.WriteString("ALTER TABLE ").Ident(table).WriteString(" DROP INDEX ").Ident(to.Name).Query()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, q)
	}
	return stmts, nil
}

// modifyClauses changes one aspect per statement:
//
//	ALTER TABLE <table> ALTER COLUMN <col> TYPE <type>
//	ALTER TABLE <table> ALTER COLUMN <col> SET NOT NULL | DROP NOT NULL
//	ALTER TABLE <table> ADD CONSTRAINT <table>_<col>_key UNIQUE (<col>) | DROP CONSTRAINT <table>_<col>_key
func (d *DDL) modifyClauses(table string, from, to *ColumnDef) ([]string, error) {
	var (
		stmts []string
		alter = func(f func(b *Builder)) error {
			b := &Builder{}
			b.WriteString("ALTER TABLE ").Ident(table).Pad()
			f(b)
			q, err := b.Query()
			if err == nil {
				stmts = append(stmts, q)
			}
			return err
		}
		column = func(b *Builder) *Builder {
			return b.WriteString(d.caps.ModifyColumn).Pad().Ident(to.Name).Pad()
		}
	)
	if from.Type != to.Type {
		if err := alter(func(b *Builder) { column(b).WriteString("TYPE ").Type(to.Type) }); err != nil {
			return nil, err
		}
	}
	if from.NotNull != to.NotNull {
		if err := alter(func(b *Builder) {
			if to.NotNull {
				column(b).WriteString("SET NOT NULL")
			} else {
				column(b).WriteString("DROP NOT NULL")
			}
		}); err != nil {
			return nil, err
		}
	}
	if from.Unique != to.Unique && d.caps.AlterUnique {
		name := UniqueConstraintName(table, to.Name)
		if err := alter(func(b *Builder) {
			if to.Unique {
				b.WriteString("ADD CONSTRAINT ").Ident(name).WriteString(" UNIQUE ").Wrap(func(b *Builder) { b.Ident(to.Name) })
			} else {
				b.WriteString("DROP CONSTRAINT ").Ident(name)
			}
		}); err != nil {
			return nil, err
		}
	}
	return stmts, nil
}

// UniqueConstraintName returns the name PostgreSQL gives to an inline
// UNIQUE constraint.
func UniqueConstraintName(table, column string) string {
	return table + "_" + column + "_key"
}

// ForeignKeyName returns the constraint name of a foreign key.
func (d *DDL) ForeignKeyName(table, column string) string {
	return d.caps.ForeignKeyPrefix + table + "_" + column
}

// column writes "<name> <type> [PRIMARY KEY [auto]] [NOT NULL] [UNIQUE]".
func (d *DDL) column(b *Builder, c *ColumnDef) {
	b.Ident(c.Name).Pad().Type(c.Type)
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
		if c.AutoIncrement && d.caps.PrimaryKeyStrategy == dialect.AutoIncrementClause && d.caps.AutoIncrement != "" {
			b.Pad().WriteString(d.caps.AutoIncrement)
		}
		return
	}
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.Unique {
		b.WriteString(" UNIQUE")
	}
}

// foreignKey writes "CONSTRAINT <prefix><table>_<col> FOREIGN KEY (<col>) REFERENCES <ref>(<refcol>)".
func (d *DDL) foreignKey(b *Builder, table string, fk *ForeignKeyDef) {
	name := fk.Name
	if name == "" {
		name = d.ForeignKeyName(table, fk.Column)
	}
	b.WriteString("CONSTRAINT ").Ident(name).
		WriteString(" FOREIGN KEY ").Wrap(func(b *Builder) { b.Ident(fk.Column) }).
		WriteString(" REFERENCES ").Ident(fk.RefTable).
		Wrap(func(b *Builder) { b.Ident(fk.RefColumn) })
}
