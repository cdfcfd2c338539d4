package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/schemasync/dialect"
)

func ddlFor(t *testing.T, name string) *DDL {
	t.Helper()
	d, err := DDLFor(name)
	require.NoError(t, err)
	return d
}

func TestDDL_CreateTable(t *testing.T) {
	users := []*ColumnDef{
		{Name: "id", Type: "BIGINT", PrimaryKey: true, AutoIncrement: true},
		{Name: "username", Type: "VARCHAR(50)", NotNull: true, Unique: true},
		{Name: "age", Type: "INT"},
	}
	q, err := ddlFor(t, dialect.MySQL).CreateTable("users", users, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS users (id BIGINT PRIMARY KEY AUTO_INCREMENT, username VARCHAR(50) NOT NULL UNIQUE, age INT)", q)

	posts := []*ColumnDef{
		{Name: "id", Type: "BIGINT", PrimaryKey: true, AutoIncrement: true},
		{Name: "author_id", Type: "BIGINT", NotNull: true},
	}
	fks := []*ForeignKeyDef{{Column: "author_id", RefTable: "users", RefColumn: "id"}}
	q, err = ddlFor(t, dialect.MySQL).CreateTable("posts", posts, nil, fks)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS posts (id BIGINT PRIMARY KEY AUTO_INCREMENT, author_id BIGINT NOT NULL, CONSTRAINT fk_posts_author_id FOREIGN KEY (author_id) REFERENCES users(id))", q)

	q, err = ddlFor(t, dialect.SQLServer).CreateTable("posts", posts, nil, fks)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE posts (id BIGINT PRIMARY KEY IDENTITY(1,1), author_id BIGINT NOT NULL, CONSTRAINT FK_posts_author_id FOREIGN KEY (author_id) REFERENCES users(id))", q)

	q, err = ddlFor(t, dialect.SQLite).CreateTable("tags", []*ColumnDef{{Name: "id", Type: "INTEGER", PrimaryKey: true, AutoIncrement: true}}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS tags (id INTEGER PRIMARY KEY AUTOINCREMENT)", q)

	q, err = ddlFor(t, dialect.Postgres).CreateTable("tags", []*ColumnDef{{Name: "id", Type: "BIGSERIAL", PrimaryKey: true, AutoIncrement: true}}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS tags (id BIGSERIAL PRIMARY KEY)", q)
}

func TestDDL_CreateJoinTable(t *testing.T) {
	cols := []*ColumnDef{
		{Name: "post_id", Type: "BIGINT", NotNull: true},
		{Name: "tag_id", Type: "BIGINT", NotNull: true},
	}
	fks := []*ForeignKeyDef{
		{Column: "post_id", RefTable: "posts", RefColumn: "id"},
		{Column: "tag_id", RefTable: "tags", RefColumn: "id"},
	}
	q, err := ddlFor(t, dialect.MySQL).CreateTable("post_tags", cols, []string{"post_id", "tag_id"}, fks)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS post_tags (post_id BIGINT NOT NULL, tag_id BIGINT NOT NULL, PRIMARY KEY (post_id, tag_id), "+
		"CONSTRAINT fk_post_tags_post_id FOREIGN KEY (post_id) REFERENCES posts(id), "+
		"CONSTRAINT fk_post_tags_tag_id FOREIGN KEY (tag_id) REFERENCES tags(id))", q)
}

func TestDDL_InvalidInput(t *testing.T) {
	d := ddlFor(t, dialect.MySQL)
	_, err := d.CreateTable("users; DROP TABLE x", []*ColumnDef{{Name: "id", Type: "INT"}}, nil, nil)
	require.ErrorContains(t, err, "invalid identifier")

	_, err = d.CreateTable("users", []*ColumnDef{{Name: "id", Type: "INT; DROP TABLE x"}}, nil, nil)
	require.ErrorContains(t, err, "invalid column type")

	_, err = d.CreateTable("users", nil, nil, nil)
	require.EqualError(t, err, `dialect/sql: table "users" has no columns`)

	_, err = d.AddColumn("users", &ColumnDef{Name: "a--b", Type: "INT"})
	require.Error(t, err)
}

func TestDDL_DropTable(t *testing.T) {
	q, err := ddlFor(t, dialect.Postgres).DropTable("users")
	require.NoError(t, err)
	assert.Equal(t, "DROP TABLE IF EXISTS users", q)
}

func TestDDL_AddColumn(t *testing.T) {
	email := &ColumnDef{Name: "email", Type: "VARCHAR(255)", NotNull: true, Unique: true}
	q, err := ddlFor(t, dialect.MySQL).AddColumn("users", email)
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE users ADD COLUMN email VARCHAR(255) NOT NULL UNIQUE", q)

	q, err = ddlFor(t, dialect.SQLServer).AddColumn("users", &ColumnDef{Name: "email", Type: "NVARCHAR(255)"})
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE users ADD email NVARCHAR(255)", q)

	d := ddlFor(t, dialect.SQLite)
	q, err = d.AddColumn("users", email)
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE users ADD COLUMN email VARCHAR(255) NOT NULL", q)
	q, err = d.CreateUniqueIndex("users", "email")
	require.NoError(t, err)
	assert.Equal(t, "CREATE UNIQUE INDEX users_email_key ON users (email)", q)
	q, err = d.DropUniqueIndex("users", "email")
	require.NoError(t, err)
	assert.Equal(t, "DROP INDEX IF EXISTS users_email_key", q)
}

func TestDDL_DropColumn(t *testing.T) {
	stmts, err := ddlFor(t, dialect.MySQL).DropColumn("users", "phone")
	require.NoError(t, err)
	assert.Equal(t, []string{"ALTER TABLE users DROP COLUMN phone"}, stmts)

	_, err = ddlFor(t, dialect.SQLite).DropColumn("users", "phone")
	require.EqualError(t, err, "dialect/sql: sqlite does not support DROP COLUMN")

	caps, _ := dialect.CapabilitiesOf(dialect.SQLite)
	stmts, err = NewDDL(caps.WithVersion("3.45.0")).DropColumn("users", "phone")
	require.NoError(t, err)
	assert.Equal(t, []string{"ALTER TABLE users DROP COLUMN phone"}, stmts)

	stmts, err = ddlFor(t, dialect.SQLServer).DropColumn("users", "phone")
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "FROM sys.default_constraints WHERE parent_object_id = OBJECT_ID('users')")
	assert.Contains(t, stmts[0], "EXEC('ALTER TABLE users DROP CONSTRAINT ' + @ConstraintName)")
	assert.Equal(t, "ALTER TABLE users DROP COLUMN phone", stmts[1])
}

func TestDDL_Constraints(t *testing.T) {
	fk := &ForeignKeyDef{Name: "posts_author_fkey", Column: "author_id", RefTable: "users", RefColumn: "id"}
	q, err := ddlFor(t, dialect.MySQL).AddForeignKey("posts", &ForeignKeyDef{Column: "author_id", RefTable: "users", RefColumn: "id"})
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE posts ADD CONSTRAINT fk_posts_author_id FOREIGN KEY (author_id) REFERENCES users(id)", q)
	q, err = ddlFor(t, dialect.Postgres).AddForeignKey("posts", fk)
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE posts ADD CONSTRAINT posts_author_fkey FOREIGN KEY (author_id) REFERENCES users(id)", q)
	_, err = ddlFor(t, dialect.SQLite).AddForeignKey("posts", fk)
	require.EqualError(t, err, "dialect/sql: sqlite cannot add a foreign key to an existing table")

	q, err = ddlFor(t, dialect.MySQL).DropForeignKey("posts", "fk_posts_author_id")
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE posts DROP FOREIGN KEY fk_posts_author_id", q)
	q, err = ddlFor(t, dialect.SQLServer).DropForeignKey("posts", "FK_posts_author_id")
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE posts DROP CONSTRAINT FK_posts_author_id", q)
	_, err = ddlFor(t, dialect.SQLite).DropForeignKey("posts", "fk_posts_author_id")
	require.Error(t, err)

	q, err = ddlFor(t, dialect.SQLServer).DropConstraint("users", "UQ__users__B43B145F3A1B2C4D")
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE users DROP CONSTRAINT UQ__users__B43B145F3A1B2C4D", q)

	q, err = ddlFor(t, dialect.SQLite).DropIndex("users_phone_idx")
	require.NoError(t, err)
	assert.Equal(t, "DROP INDEX IF EXISTS users_phone_idx", q)
}

func TestDDL_ModifyColumn(t *testing.T) {
	from := &ColumnDef{Name: "name", Type: "VARCHAR(50)"}
	to := &ColumnDef{Name: "name", Type: "VARCHAR(100)", NotNull: true, Unique: true}

	t.Run("MySQL", func(t *testing.T) {
		d := ddlFor(t, dialect.MySQL)
		stmts, err := d.ModifyColumn("users", from, to)
		require.NoError(t, err)
		assert.Equal(t, []string{"ALTER TABLE users MODIFY COLUMN name VARCHAR(100) NOT NULL UNIQUE"}, stmts)

		stmts, err = d.ModifyColumn("users", to, from)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"ALTER TABLE users MODIFY COLUMN name VARCHAR(50)",
			"ALTER TABLE users DROP INDEX name",
		}, stmts)
	})

	t.Run("Postgres", func(t *testing.T) {
		d := ddlFor(t, dialect.Postgres)
		stmts, err := d.ModifyColumn("users", from, to)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"ALTER TABLE users ALTER COLUMN name TYPE VARCHAR(100)",
			"ALTER TABLE users ALTER COLUMN name SET NOT NULL",
			"ALTER TABLE users ADD CONSTRAINT users_name_key UNIQUE (name)",
		}, stmts)

		stmts, err = d.ModifyColumn("users", to, from)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"ALTER TABLE users ALTER COLUMN name TYPE VARCHAR(50)",
			"ALTER TABLE users ALTER COLUMN name DROP NOT NULL",
			"ALTER TABLE users DROP CONSTRAINT users_name_key",
		}, stmts)
	})

	t.Run("SQLServer", func(t *testing.T) {
		stmts, err := ddlFor(t, dialect.SQLServer).ModifyColumn("users",
			&ColumnDef{Name: "name", Type: "NVARCHAR(50)"},
			&ColumnDef{Name: "name", Type: "NVARCHAR(100)", NotNull: true},
		)
		require.NoError(t, err)
		assert.Equal(t, []string{"ALTER TABLE users ALTER COLUMN name NVARCHAR(100) NOT NULL"}, stmts)
	})

	t.Run("SQLite", func(t *testing.T) {
		_, err := ddlFor(t, dialect.SQLite).ModifyColumn("users", from, to)
		require.EqualError(t, err, "dialect/sql: sqlite does not support altering columns")
	})
}

func TestDDL_Database(t *testing.T) {
	q, err := ddlFor(t, dialect.MySQL).CreateDatabase("app", "")
	require.NoError(t, err)
	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS app CHARACTER SET utf8mb4", q)

	q, err = ddlFor(t, dialect.Postgres).CreateDatabase("app", "UTF8")
	require.NoError(t, err)
	assert.Equal(t, "CREATE DATABASE app ENCODING 'UTF8'", q)

	q, err = ddlFor(t, dialect.SQLServer).CreateDatabase("app", "")
	require.NoError(t, err)
	assert.Equal(t, "IF DB_ID('app') IS NULL CREATE DATABASE app", q)

	q, err = ddlFor(t, dialect.SQLServer).DropDatabase("app")
	require.NoError(t, err)
	assert.Equal(t, "IF DB_ID('app') IS NOT NULL DROP DATABASE app", q)

	_, err = ddlFor(t, dialect.SQLite).CreateDatabase("app", "")
	require.Error(t, err)
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "?", Placeholder(dialect.MySQL, 1))
	assert.Equal(t, "?", Placeholder("sqlite3", 2))
	assert.Equal(t, "$2", Placeholder(dialect.Postgres, 2))
	assert.Equal(t, "@p1", Placeholder(dialect.SQLServer, 1))
}

func TestBuilder_Type(t *testing.T) {
	for _, typ := range []string{"VARCHAR(255)", "DECIMAL(10,2)", "DOUBLE PRECISION", "NVARCHAR(MAX)", "ENUM('a','b')", "int(10) unsigned"} {
		b := &Builder{}
		_, err := b.Type(typ).Query()
		assert.NoError(t, err, typ)
	}
	b := &Builder{}
	_, err := b.Type("INT); DROP TABLE users; --").Query()
	assert.Error(t, err)
	// Untyped SQLite columns report an empty type.
	assert.False(t, ValidType(""))
	assert.False(t, ValidType("INT --"))
	assert.True(t, ValidType("BIGINT"))
}

// TestIsValidIdentifier tests SQL identifier validation.
func TestIsValidIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"valid_simple", "foo", true},
		{"valid_with_underscore", "foo_bar", true},
		{"valid_with_number", "foo123", true},
		{"valid_with_dot", "schema.table", true},
		{"valid_starting_underscore", "_private", true},
		{"invalid_empty", "", false},
		{"invalid_starting_number", "123foo", false},
		{"invalid_with_space", "foo bar", false},
		{"invalid_with_quote", "foo'bar", false},
		{"invalid_with_semicolon", "foo;DROP TABLE", false},
		{"invalid_with_dash", "foo-bar", false},
		{"invalid_too_long", string(make([]byte, 129)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isValidIdentifier(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

// TestEscapeStringValue tests SQL string value escaping.
func TestEscapeStringValue(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no_escaping_needed", "hello", "hello"},
		{"single_quote", "it's", "it''s"},
		{"multiple_quotes", "he said 'hello'", "he said ''hello''"},
		{"backslash", `path\to\file`, `path\\to\\file`},
		{"both_quote_and_backslash", `it's a \test`, `it''s a \\test`},
		{"empty_string", "", ""},
		{"sql_injection_attempt", "'; DROP TABLE users; --", "''; DROP TABLE users; --"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := escapeStringValue(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}
