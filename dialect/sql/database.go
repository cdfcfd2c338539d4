package sql

import (
	"fmt"

	"github.com/syssam/schemasync/dialect"
)

// DefaultCharset is the character set used when creating MySQL databases.
const DefaultCharset = "utf8mb4"

// CreateDatabase renders the statement creating a database if it does not
// exist. SQLite databases are files and have no such statement.
func (d *DDL) CreateDatabase(name, charset string) (string, error) {
	b := &Builder{}
	switch d.caps.Dialect {
	case dialect.MySQL:
		if charset == "" {
			charset = DefaultCharset
		}
		b.WriteString("CREATE DATABASE IF NOT EXISTS ").Ident(name).WriteString(" CHARACTER SET ").Ident(charset)
	case dialect.Postgres:
		b.WriteString("CREATE DATABASE ").Ident(name)
		if charset != "" {
			b.WriteString(" ENCODING ").Quote(charset)
		}
	case dialect.SQLServer:
		b.WriteString("IF DB_ID(").Quote(name).WriteString(") IS NULL CREATE DATABASE ").Ident(name)
	default:
		return "", fmt.Errorf("dialect/sql: %s has no CREATE DATABASE statement", d.caps.Dialect)
	}
	return b.Query()
}

// DropDatabase renders the statement dropping a database if it exists.
func (d *DDL) DropDatabase(name string) (string, error) {
	b := &Builder{}
	switch d.caps.Dialect {
	case dialect.MySQL, dialect.Postgres:
		b.WriteString("DROP DATABASE IF EXISTS ").Ident(name)
	case dialect.SQLServer:
		b.WriteString("IF DB_ID(").Quote(name).WriteString(") IS NOT NULL DROP DATABASE ").Ident(name)
	default:
		return "", fmt.Errorf("dialect/sql: %s has no DROP DATABASE statement", d.caps.Dialect)
	}
	return b.Query()
}
