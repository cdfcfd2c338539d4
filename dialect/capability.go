package dialect

import (
	"fmt"
	"strconv"
	"strings"
)

// PrimaryKeyStrategy describes how a dialect declares an auto-numbered primary key.
type PrimaryKeyStrategy uint8

const (
	// AutoIncrementClause appends a clause to an integer column,
	// e.g. "id BIGINT PRIMARY KEY AUTO_INCREMENT".
	AutoIncrementClause PrimaryKeyStrategy = iota
	// AutoIncrementType declares the column with a distinct auto-numbering
	// type instead, e.g. "id BIGSERIAL PRIMARY KEY".
	AutoIncrementType
)

// ModifyStyle describes how ALTER TABLE changes an existing column.
type ModifyStyle uint8

const (
	// ModifyDefinition restates the column definition,
	// e.g. "ALTER TABLE t MODIFY COLUMN c VARCHAR(64) NOT NULL".
	ModifyDefinition ModifyStyle = iota
	// ModifyClauses changes one aspect per clause,
	// e.g. "ALTER TABLE t ALTER COLUMN c TYPE VARCHAR(64)".
	ModifyClauses
)

// Capabilities is the per-dialect capability table consulted by the diff
// engine and the DDL builder. No other package branches on the dialect name
// to decide what DDL may be emitted.
type Capabilities struct {
	Dialect string

	AlterColumnType bool
	AlterNullable   bool
	AlterUnique     bool
	DropColumn      bool

	// CreateIfNotExists reports whether CREATE TABLE accepts IF NOT EXISTS.
	CreateIfNotExists bool
	// AddColumnUnique reports whether ALTER TABLE ADD COLUMN accepts an
	// inline UNIQUE; otherwise a unique index is created separately.
	AddColumnUnique bool
	// DropDefaultConstraint reports whether a column's default constraint
	// must be dropped by name before the column itself.
	DropDefaultConstraint bool
	// DropConstrainedColumn reports whether a column bound to a UNIQUE
	// table constraint or a foreign key can be dropped once the constraint
	// itself is dropped. SQLite rebuilds neither and refuses the drop.
	DropConstrainedColumn bool
	// DropUniqueConstraint reports whether the unique constraint of a column
	// must be dropped by name before the column.
	DropUniqueConstraint bool
	// DropForeignKey holds the ALTER TABLE keywords dropping a foreign key.
	DropForeignKey string

	AutoIncrement      string
	PrimaryKeyStrategy PrimaryKeyStrategy

	// AddColumn and ModifyColumn hold the ALTER TABLE keywords.
	AddColumn    string
	ModifyColumn string
	ModifyStyle  ModifyStyle

	// ForeignKeyPrefix prefixes generated foreign-key constraint names.
	ForeignKeyPrefix string

	// DropColumnSince is the first server version supporting DROP COLUMN,
	// for dialects that gained it late. Empty when DropColumn is static.
	DropColumnSince string
}

var capabilities = map[string]Capabilities{
	MySQL: {
		Dialect:            MySQL,
		AddColumnUnique:    true,
		AlterColumnType:    true,
		AlterNullable:      true,
		AlterUnique:        true,
		DropColumn:         true,
		CreateIfNotExists:  true,
		AutoIncrement:      "AUTO_INCREMENT",
		PrimaryKeyStrategy: AutoIncrementClause,
		AddColumn:          "ADD COLUMN",
		ModifyColumn:       "MODIFY COLUMN",
		ForeignKeyPrefix:   "fk_",

		DropConstrainedColumn: true,
		DropForeignKey:        "DROP FOREIGN KEY",
	},
	SQLite: {
		Dialect:            SQLite,
		CreateIfNotExists:  true,
		AutoIncrement:      "AUTOINCREMENT",
		PrimaryKeyStrategy: AutoIncrementClause,
		AddColumn:          "ADD COLUMN",
		ForeignKeyPrefix:   "fk_",
		DropColumnSince:    "3.35.0",
	},
	Postgres: {
		Dialect:            Postgres,
		AddColumnUnique:    true,
		AlterColumnType:    true,
		AlterNullable:      true,
		AlterUnique:        true,
		DropColumn:         true,
		CreateIfNotExists:  true,
		PrimaryKeyStrategy: AutoIncrementType,
		AddColumn:          "ADD COLUMN",
		ModifyColumn:       "ALTER COLUMN",
		ModifyStyle:        ModifyClauses,
		ForeignKeyPrefix:   "fk_",

		DropConstrainedColumn: true,
		DropForeignKey:        "DROP CONSTRAINT",
	},
	SQLServer: {
		Dialect:               SQLServer,
		AddColumnUnique:       true,
		AlterColumnType:       true,
		AlterNullable:         true,
		DropColumn:            true,
		DropDefaultConstraint: true,
		AutoIncrement:         "IDENTITY(1,1)",
		PrimaryKeyStrategy:    AutoIncrementClause,
		AddColumn:             "ADD",
		ModifyColumn:          "ALTER COLUMN",
		ForeignKeyPrefix:      "FK_",
		DropConstrainedColumn: true,
		DropUniqueConstraint:  true,
		DropForeignKey:        "DROP CONSTRAINT",
	},
}

// CapabilitiesOf returns the capability table entry of the given dialect.
func CapabilitiesOf(name string) (Capabilities, error) {
	c, ok := capabilities[name]
	if !ok {
		return Capabilities{}, fmt.Errorf("dialect: unsupported dialect %q", name)
	}
	return c, nil
}

// WithVersion refines version-gated capabilities using the server version
// reported by the connected database. Unparsable versions leave c unchanged.
func (c Capabilities) WithVersion(version string) Capabilities {
	if c.DropColumnSince != "" && version != "" && compareVersions(version, c.DropColumnSince) >= 0 {
		c.DropColumn = true
	}
	return c
}

// compareVersions compares dotted numeric versions such as "3.35.0".
// Non-numeric suffixes of a component are ignored.
func compareVersions(a, b string) int {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(pa) || i < len(pb); i++ {
		va, vb := versionPart(pa, i), versionPart(pb, i)
		switch {
		case va < vb:
			return -1
		case va > vb:
			return 1
		}
	}
	return 0
}

func versionPart(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	p := parts[i]
	end := 0
	for end < len(p) && p[end] >= '0' && p[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(p[:end])
	return n
}
