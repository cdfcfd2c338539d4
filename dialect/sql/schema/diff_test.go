package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/schemasync/dialect"
	"github.com/syssam/schemasync/dialect/sql"
)

func caps(t *testing.T, name string) dialect.Capabilities {
	t.Helper()
	c, err := dialect.CapabilitiesOf(name)
	require.NoError(t, err)
	return c
}

func usersTable() *Table {
	return &Table{
		Name: "users",
		Columns: []*Column{
			{Name: "id", Type: "BIGINT", PrimaryKey: true, AutoIncrement: true},
			{Name: "name", Type: "VARCHAR(255)"},
			{Name: "email", Type: "VARCHAR(255)", Nullable: true, Unique: true},
		},
	}
}

func TestEngine_AddColumn(t *testing.T) {
	live := []*Column{
		{Name: "id", Type: "bigint", PrimaryKey: true},
		{Name: "name", Type: "varchar(255)"},
	}
	r := &Report{}
	e := &Engine{Caps: caps(t, dialect.MySQL)}
	changes, err := e.Diff(usersTable(), live, r)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	add, ok := changes[0].(*AddColumn)
	require.True(t, ok)
	assert.Equal(t, "email", add.C.Name)
	assert.Equal(t, "users", add.TableName())
	assert.False(t, r.HasWarnings(), "nullable column additions are safe")

	stmts, err := add.Up(sql.NewDDL(e.Caps))
	require.NoError(t, err)
	assert.Equal(t, []string{"ALTER TABLE users ADD COLUMN email VARCHAR(255) UNIQUE"}, stmts)
	stmts, err = add.Down(sql.NewDDL(e.Caps))
	require.NoError(t, err)
	assert.Equal(t, []string{"ALTER TABLE users DROP COLUMN email"}, stmts)
}

func TestEngine_AddNotNullColumn(t *testing.T) {
	desired := usersTable()
	desired.Columns = append(desired.Columns, &Column{Name: "age", Type: "INT"})
	live := []*Column{
		{Name: "id", Type: "bigint", PrimaryKey: true},
		{Name: "name", Type: "varchar(255)"},
		{Name: "email", Type: "varchar(255)", Nullable: true, Unique: true},
	}
	r := &Report{}
	changes, err := (&Engine{Caps: caps(t, dialect.Postgres)}).Diff(desired, live, r)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Len(t, r.Of(RiskyChange), 1)
	assert.Equal(t, "age", r.Of(RiskyChange)[0].Column)
}

func TestEngine_DropColumn(t *testing.T) {
	live := []*Column{
		{Name: "id", Type: "bigint", PrimaryKey: true},
		{Name: "name", Type: "varchar(255)"},
		{Name: "email", Type: "varchar(255)", Nullable: true, Unique: true},
		{Name: "phone", Type: "varchar(20)", Nullable: true},
	}
	t.Run("auto drop", func(t *testing.T) {
		r := &Report{}
		changes, err := (&Engine{Caps: caps(t, dialect.MySQL), AutoDropColumns: true}).Diff(usersTable(), live, r)
		require.NoError(t, err)
		require.Len(t, changes, 1)
		drop, ok := changes[0].(*DropColumn)
		require.True(t, ok)
		assert.Equal(t, "phone", drop.C.Name)
		assert.False(t, r.HasWarnings())

		d := sql.NewDDL(caps(t, dialect.MySQL))
		stmts, err := drop.Down(d)
		require.NoError(t, err)
		assert.Equal(t, []string{"ALTER TABLE users ADD COLUMN phone varchar(20)"}, stmts)
	})
	t.Run("keep", func(t *testing.T) {
		r := &Report{}
		changes, err := (&Engine{Caps: caps(t, dialect.MySQL)}).Diff(usersTable(), live, r)
		require.NoError(t, err)
		assert.Empty(t, changes)
		ws := r.Of(UndeclaredColumn)
		require.Len(t, ws, 1)
		assert.Equal(t, "users", ws[0].Table)
		assert.Equal(t, "phone", ws[0].Column)
		assert.Equal(t, "varchar(20)", ws[0].Actual)
	})
	t.Run("unsupported", func(t *testing.T) {
		r := &Report{}
		changes, err := (&Engine{Caps: caps(t, dialect.SQLite), AutoDropColumns: true}).Diff(usersTable(), live, r)
		require.NoError(t, err)
		assert.Empty(t, changes)
		require.Len(t, r.Of(CapabilityGap), 1)
		assert.Contains(t, r.String(), "sqlite does not support DROP COLUMN")
	})
}

func TestEngine_ModifyColumn(t *testing.T) {
	live := []*Column{
		{Name: "id", Type: "bigint", PrimaryKey: true},
		{Name: "name", Type: "varchar(100)", Nullable: true},
		{Name: "email", Type: "varchar(255)", Nullable: true, Unique: true},
	}
	t.Run("mysql", func(t *testing.T) {
		r := &Report{}
		e := &Engine{Caps: caps(t, dialect.MySQL)}
		changes, err := e.Diff(usersTable(), live, r)
		require.NoError(t, err)
		require.Len(t, changes, 1)
		mod, ok := changes[0].(*ModifyColumn)
		require.True(t, ok)
		assert.Equal(t, "VARCHAR(255)", mod.To.Type)
		assert.False(t, mod.To.Nullable)
		assert.Equal(t, "varchar(100)", mod.From.Type)
		require.Len(t, r.Of(RiskyChange), 1)

		d := sql.NewDDL(e.Caps)
		up, err := mod.Up(d)
		require.NoError(t, err)
		assert.Equal(t, []string{"ALTER TABLE users MODIFY COLUMN name VARCHAR(255) NOT NULL"}, up)
		down, err := mod.Down(d)
		require.NoError(t, err)
		assert.Equal(t, []string{"ALTER TABLE users MODIFY COLUMN name varchar(100)"}, down)
	})
	t.Run("postgres", func(t *testing.T) {
		e := &Engine{Caps: caps(t, dialect.Postgres)}
		changes, err := e.Diff(usersTable(), live, &Report{})
		require.NoError(t, err)
		require.Len(t, changes, 1)
		up, err := changes[0].Up(sql.NewDDL(e.Caps))
		require.NoError(t, err)
		assert.Equal(t, []string{
			"ALTER TABLE users ALTER COLUMN name TYPE VARCHAR(255)",
			"ALTER TABLE users ALTER COLUMN name SET NOT NULL",
		}, up)
	})
	t.Run("sqlite", func(t *testing.T) {
		r := &Report{}
		changes, err := (&Engine{Caps: caps(t, dialect.SQLite)}).Diff(usersTable(), live, r)
		require.NoError(t, err)
		assert.Empty(t, changes)
		ws := r.Of(CapabilityGap)
		require.Len(t, ws, 2)
		assert.Equal(t, "VARCHAR(255)", ws[0].Expected)
		assert.Equal(t, "varchar(100)", ws[0].Actual)
		assert.Equal(t, "NOT NULL", ws[1].Expected)
		assert.Equal(t, "NULL", ws[1].Actual)
	})
	t.Run("sqlserver unique", func(t *testing.T) {
		live := []*Column{
			{Name: "id", Type: "bigint", PrimaryKey: true},
			{Name: "name", Type: "varchar(255)"},
			{Name: "email", Type: "varchar(255)", Nullable: true},
		}
		r := &Report{}
		changes, err := (&Engine{Caps: caps(t, dialect.SQLServer)}).Diff(usersTable(), live, r)
		require.NoError(t, err)
		assert.Empty(t, changes)
		require.Len(t, r.Of(CapabilityGap), 1)
		assert.Equal(t, "UNIQUE", r.Of(CapabilityGap)[0].Expected)
	})
}

func TestEngine_PrimaryKey(t *testing.T) {
	live := []*Column{
		{Name: "id", Type: "int", PrimaryKey: true},
		{Name: "name", Type: "varchar(255)"},
		{Name: "email", Type: "varchar(255)", Nullable: true, Unique: true},
		{Name: "legacy_id", Type: "int", PrimaryKey: true},
	}
	r := &Report{}
	changes, err := (&Engine{Caps: caps(t, dialect.MySQL), AutoDropColumns: true}).Diff(usersTable(), live, r)
	require.NoError(t, err)
	assert.Empty(t, changes, "primary keys are neither modified nor dropped")

	r = &Report{}
	changes, err = (&Engine{Caps: caps(t, dialect.MySQL)}).Diff(usersTable(), live[1:3], r)
	require.NoError(t, err)
	assert.Empty(t, changes)
	require.Len(t, r.Of(CapabilityGap), 1)
	assert.Equal(t, "id", r.Of(CapabilityGap)[0].Column)
}

func TestEngine_Order(t *testing.T) {
	desired := usersTable()
	desired.Columns[1].Type = "VARCHAR(64)"
	desired.Columns = append(desired.Columns, &Column{Name: "bio", Type: "TEXT", Nullable: true})
	live := []*Column{
		{Name: "id", Type: "bigint", PrimaryKey: true},
		{Name: "age", Type: "int", Nullable: true},
		{Name: "name", Type: "varchar(255)"},
	}
	changes, err := (&Engine{Caps: caps(t, dialect.MySQL), AutoDropColumns: true}).Diff(desired, live, &Report{})
	require.NoError(t, err)
	require.Len(t, changes, 4)
	assert.IsType(t, &AddColumn{}, changes[0])
	assert.IsType(t, &AddColumn{}, changes[1])
	assert.IsType(t, &ModifyColumn{}, changes[2])
	assert.IsType(t, &DropColumn{}, changes[3])
}

func TestChange_SQLite(t *testing.T) {
	d := sql.NewDDL(caps(t, dialect.SQLite).WithVersion("3.45.1"))
	add := &AddColumn{Table: "users", C: &Column{Name: "email", Type: "TEXT", Nullable: true, Unique: true}}
	up, err := add.Up(d)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"ALTER TABLE users ADD COLUMN email TEXT",
		"CREATE UNIQUE INDEX users_email_key ON users (email)",
	}, up)
	down, err := add.Down(d)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"DROP INDEX IF EXISTS users_email_key",
		"ALTER TABLE users DROP COLUMN email",
	}, down)

	_, err = add.Down(sql.NewDDL(caps(t, dialect.SQLite).WithVersion("3.31.0")))
	require.True(t, errors.Is(err, ErrIrreversible))
}

func TestChange_CreateTable(t *testing.T) {
	ct := &CreateTable{T: &Table{
		Name: "posts",
		Columns: []*Column{
			{Name: "id", Type: "BIGINT", PrimaryKey: true, AutoIncrement: true},
			{Name: "author_id", Type: "BIGINT"},
		},
		ForeignKeys: []*ForeignKey{{Column: "author_id", RefTable: "users", RefColumn: "id"}},
	}}
	d := sql.NewDDL(caps(t, dialect.MySQL))
	up, err := ct.Up(d)
	require.NoError(t, err)
	assert.Equal(t, []string{"CREATE TABLE IF NOT EXISTS posts (id BIGINT PRIMARY KEY AUTO_INCREMENT, author_id BIGINT NOT NULL, CONSTRAINT fk_posts_author_id FOREIGN KEY (author_id) REFERENCES users(id))"}, up)
	down, err := ct.Down(d)
	require.NoError(t, err)
	assert.Equal(t, []string{"DROP TABLE IF EXISTS posts"}, down)
	assert.Equal(t, `create table "posts"`, ct.String())
}

func TestEngine_DropConstrainedColumn(t *testing.T) {
	sqlite := caps(t, dialect.SQLite).WithVersion("3.45.1")
	t.Run("unique", func(t *testing.T) {
		live := []*Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "name", Type: "TEXT"},
			{Name: "phone", Type: "TEXT", Nullable: true, Unique: true, UniqueConstraint: "sqlite_autoindex_users_1"},
		}
		desired := &Table{Name: "users", Columns: live[:2]}
		r := &Report{}
		changes, err := (&Engine{Caps: sqlite, AutoDropColumns: true}).Diff(desired, live, r)
		require.NoError(t, err)
		assert.Empty(t, changes)
		ws := r.Of(CapabilityGap)
		require.Len(t, ws, 1)
		assert.Equal(t, "phone", ws[0].Column)
		assert.Equal(t, "sqlite cannot drop a column with a UNIQUE constraint", ws[0].Message)
	})
	t.Run("foreign key", func(t *testing.T) {
		live := []*Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "a_id", Type: "INTEGER", References: &ForeignKey{Column: "a_id", RefTable: "a", RefColumn: "id"}},
		}
		desired := &Table{Name: "b", Columns: live[:1]}
		r := &Report{}
		changes, err := (&Engine{Caps: sqlite, AutoDropColumns: true}).Diff(desired, live, r)
		require.NoError(t, err)
		assert.Empty(t, changes)
		ws := r.Of(CapabilityGap)
		require.Len(t, ws, 1)
		assert.Equal(t, "sqlite cannot drop a column with a FOREIGN KEY constraint", ws[0].Message)
		assert.Equal(t, "INTEGER NOT NULL REFERENCES a(id)", ws[0].Actual)

		// Dialects dropping the constraint first emit the change.
		r = &Report{}
		changes, err = (&Engine{Caps: caps(t, dialect.MySQL), AutoDropColumns: true}).Diff(desired, live, r)
		require.NoError(t, err)
		require.Len(t, changes, 1)
		assert.False(t, r.HasWarnings())
	})
	t.Run("standalone index", func(t *testing.T) {
		live := []*Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "phone", Type: "TEXT", Nullable: true, Unique: true, UniqueIndex: "users_phone_idx"},
		}
		changes, err := (&Engine{Caps: sqlite, AutoDropColumns: true}).Diff(&Table{Name: "users", Columns: live[:1]}, live, &Report{})
		require.NoError(t, err)
		require.Len(t, changes, 1)
		up, err := changes[0].Up(sql.NewDDL(sqlite))
		require.NoError(t, err)
		assert.Equal(t, []string{"DROP INDEX IF EXISTS users_phone_idx", "ALTER TABLE users DROP COLUMN phone"}, up)
	})
}

func TestChange_DropColumnConstraints(t *testing.T) {
	t.Run("mysql foreign key", func(t *testing.T) {
		drop := &DropColumn{Table: "posts", C: &Column{
			Name:       "author_id",
			Type:       "bigint",
			References: &ForeignKey{Name: "fk_posts_author_id", Column: "author_id", RefTable: "users", RefColumn: "id"},
		}}
		d := sql.NewDDL(caps(t, dialect.MySQL))
		up, err := drop.Up(d)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"ALTER TABLE posts DROP FOREIGN KEY fk_posts_author_id",
			"ALTER TABLE posts DROP COLUMN author_id",
		}, up)
		down, err := drop.Down(d)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"ALTER TABLE posts ADD COLUMN author_id bigint NOT NULL",
			"ALTER TABLE posts ADD CONSTRAINT fk_posts_author_id FOREIGN KEY (author_id) REFERENCES users(id)",
		}, down)
	})
	t.Run("sqlserver unique", func(t *testing.T) {
		drop := &DropColumn{Table: "users", C: &Column{
			Name:             "email",
			Type:             "nvarchar(255)",
			Nullable:         true,
			Unique:           true,
			UniqueConstraint: "UQ__users__AB6E6164F3A1B2C4",
		}}
		d := sql.NewDDL(caps(t, dialect.SQLServer))
		up, err := drop.Up(d)
		require.NoError(t, err)
		require.Len(t, up, 3)
		assert.Equal(t, "ALTER TABLE users DROP CONSTRAINT UQ__users__AB6E6164F3A1B2C4", up[0])
		assert.Contains(t, up[1], "sys.default_constraints")
		assert.Equal(t, "ALTER TABLE users DROP COLUMN email", up[2])
		down, err := drop.Down(d)
		require.NoError(t, err)
		assert.Equal(t, []string{"ALTER TABLE users ADD email nvarchar(255) UNIQUE"}, down)
	})
	t.Run("unknown type", func(t *testing.T) {
		drop := &DropColumn{Table: "users", C: &Column{Name: "legacy", Nullable: true}}
		d := sql.NewDDL(caps(t, dialect.SQLite).WithVersion("3.45.1"))
		up, err := drop.Up(d)
		require.NoError(t, err)
		assert.Equal(t, []string{"ALTER TABLE users DROP COLUMN legacy"}, up)
		_, err = drop.Down(d)
		require.ErrorIs(t, err, ErrIrreversible)
		assert.Contains(t, err.Error(), `column "legacy" has unknown type ""`)
	})
}
