package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/syssam/schemasync/dialect"
	"github.com/syssam/schemasync/schema/field"
)

// Width thresholds of narrow string and binary types.
const (
	mysqlMaxVarchar   = 16383 // utf8mb4 characters in a 65535 byte row
	mssqlMaxNVarchar  = 4000
	mssqlMaxVarBinary = 8000
	pgMaxVarchar      = 10485760
)

// Mapper maps semantic field types to the column types of one dialect.
type Mapper struct {
	dialect string
}

// NewMapper returns the type mapper of the given dialect.
func NewMapper(name string) (*Mapper, error) {
	if !dialect.Valid(name) {
		return nil, fmt.Errorf("dialect/sql/schema: unsupported dialect %q", name)
	}
	return &Mapper{dialect: name}, nil
}

// Column returns the column type of a declared column. A raw type
// override is returned unchanged.
func (m *Mapper) Column(c *field.Column) string {
	if c.RawType != "" {
		return c.RawType
	}
	return m.Type(c.Type, c.Size, c.Precision, c.Scale)
}

// Identity returns the column type of a primary key. Auto-numbered keys
// may map to a dedicated type, or to a narrower integer, depending on the
// dialect.
func (m *Mapper) Identity(id *field.Identity) string {
	if !id.AutoIncrement {
		return m.Type(id.Type, field.DefaultStringSize, 0, 0)
	}
	switch m.dialect {
	case dialect.SQLite:
		// Only "INTEGER PRIMARY KEY" aliases the rowid.
		return "INTEGER"
	case dialect.Postgres:
		if id.Type == field.TypeInt64 {
			return "BIGSERIAL"
		}
		return "SERIAL"
	default:
		return m.Type(id.Type, 0, 0, 0)
	}
}

// Reference returns the type of a column referencing a key of type t.
func (m *Mapper) Reference(t field.Type) string {
	return m.Type(t, field.DefaultStringSize, 0, 0)
}

// Timestamp returns the type of created and updated timestamp columns.
func (m *Mapper) Timestamp() string {
	return m.Type(field.TypeDateTime, 0, 0, 0)
}

// Type maps a semantic type with its size, precision and scale.
func (m *Mapper) Type(t field.Type, size int64, precision, scale int) string {
	switch m.dialect {
	case dialect.MySQL:
		return mysqlType(t, size, precision, scale)
	case dialect.SQLite:
		return sqliteType(t)
	case dialect.Postgres:
		return postgresType(t, size, precision, scale)
	case dialect.SQLServer:
		return mssqlType(t, size, precision, scale)
	}
	return ""
}

func decimal(name string, precision, scale int) string {
	if precision == 0 {
		precision, scale = field.DefaultPrecision, field.DefaultScale
	}
	return fmt.Sprintf("%s(%d,%d)", name, precision, scale)
}

func stringSize(size int64) int64 {
	if size <= 0 {
		return field.DefaultStringSize
	}
	return size
}

func mysqlType(t field.Type, size int64, precision, scale int) string {
	switch t {
	case field.TypeBool:
		return "TINYINT(1)"
	case field.TypeInt8:
		return "TINYINT"
	case field.TypeInt16:
		return "SMALLINT"
	case field.TypeInt32:
		return "INT"
	case field.TypeInt64:
		return "BIGINT"
	case field.TypeFloat32:
		return "FLOAT"
	case field.TypeFloat64:
		return "DOUBLE"
	case field.TypeDecimal:
		return decimal("DECIMAL", precision, scale)
	case field.TypeString, field.TypeEnum:
		size = stringSize(size)
		switch {
		case size <= mysqlMaxVarchar:
			return fmt.Sprintf("VARCHAR(%d)", size)
		case size <= field.MediumSize:
			return "MEDIUMTEXT"
		default:
			return "LONGTEXT"
		}
	case field.TypeText:
		switch {
		case size <= 0:
			return "TEXT"
		case size <= field.TinySize:
			return "TINYTEXT"
		case size <= field.RegularSize:
			return "TEXT"
		case size <= field.MediumSize:
			return "MEDIUMTEXT"
		default:
			return "LONGTEXT"
		}
	case field.TypeBytes:
		switch {
		case size <= 0:
			return "BLOB"
		case size <= field.TinySize:
			return "TINYBLOB"
		case size <= field.RegularSize:
			return "BLOB"
		case size <= field.MediumSize:
			return "MEDIUMBLOB"
		default:
			return "LONGBLOB"
		}
	case field.TypeDate:
		return "DATE"
	case field.TypeDateTime:
		return "DATETIME"
	case field.TypeTimestamp:
		return "TIMESTAMP"
	case field.TypeTime:
		return "TIME"
	case field.TypeYear:
		return "YEAR"
	case field.TypeJSON:
		return "JSON"
	case field.TypeUUID:
		return "CHAR(36)"
	}
	return ""
}

// sqliteType maps to the storage class names; SQLite has no native
// temporal, boolean or JSON types.
func sqliteType(t field.Type) string {
	switch {
	case t == field.TypeBool, t.Integer(), t == field.TypeYear:
		return "INTEGER"
	case t == field.TypeFloat32, t == field.TypeFloat64, t == field.TypeDecimal:
		return "REAL"
	case t == field.TypeBytes:
		return "BLOB"
	case t.Valid():
		return "TEXT"
	}
	return ""
}

func postgresType(t field.Type, size int64, precision, scale int) string {
	switch t {
	case field.TypeBool:
		return "BOOLEAN"
	case field.TypeInt8, field.TypeInt16, field.TypeYear:
		return "SMALLINT"
	case field.TypeInt32:
		return "INTEGER"
	case field.TypeInt64:
		return "BIGINT"
	case field.TypeFloat32:
		return "REAL"
	case field.TypeFloat64:
		return "DOUBLE PRECISION"
	case field.TypeDecimal:
		return decimal("NUMERIC", precision, scale)
	case field.TypeString, field.TypeEnum:
		if size = stringSize(size); size > pgMaxVarchar {
			return "TEXT"
		}
		return fmt.Sprintf("VARCHAR(%d)", size)
	case field.TypeText:
		return "TEXT"
	case field.TypeBytes:
		return "BYTEA"
	case field.TypeDate:
		return "DATE"
	case field.TypeDateTime, field.TypeTimestamp:
		return "TIMESTAMP"
	case field.TypeTime:
		return "TIME"
	case field.TypeJSON:
		return "JSONB"
	case field.TypeUUID:
		return "UUID"
	}
	return ""
}

func mssqlType(t field.Type, size int64, precision, scale int) string {
	switch t {
	case field.TypeBool:
		return "BIT"
	case field.TypeInt8:
		return "TINYINT"
	case field.TypeInt16, field.TypeYear:
		return "SMALLINT"
	case field.TypeInt32:
		return "INT"
	case field.TypeInt64:
		return "BIGINT"
	case field.TypeFloat32:
		return "REAL"
	case field.TypeFloat64:
		return "FLOAT"
	case field.TypeDecimal:
		return decimal("DECIMAL", precision, scale)
	case field.TypeString, field.TypeEnum:
		if size = stringSize(size); size > mssqlMaxNVarchar {
			return "NVARCHAR(MAX)"
		}
		return fmt.Sprintf("NVARCHAR(%d)", size)
	case field.TypeText, field.TypeJSON:
		return "NVARCHAR(MAX)"
	case field.TypeBytes:
		if size <= 0 || size > mssqlMaxVarBinary {
			return "VARBINARY(MAX)"
		}
		return fmt.Sprintf("VARBINARY(%d)", size)
	case field.TypeDate:
		return "DATE"
	case field.TypeDateTime, field.TypeTimestamp:
		return "DATETIME2"
	case field.TypeTime:
		return "TIME"
	case field.TypeUUID:
		return "UNIQUEIDENTIFIER"
	}
	return ""
}

var (
	// typeAliases rewrites catalog spellings to the names used by the mapper.
	// Longer prefixes come first.
	typeAliases = []struct{ from, to string }{
		{"CHARACTER VARYING", "VARCHAR"},
		{"TIMESTAMP WITHOUT TIME ZONE", "TIMESTAMP"},
		{"TIME WITHOUT TIME ZONE", "TIME"},
		{"CHARACTER", "CHAR"},
		{"BOOL", "BOOLEAN"},
		{"INT4", "INTEGER"},
		{"INT8", "BIGINT"},
		{"INT2", "SMALLINT"},
	}
	qualifierRe = regexp.MustCompile(`\(.*\)`)
	// widthTypes are the base types whose qualifier is significant.
	widthTypes = map[string]bool{
		"VARCHAR":   true,
		"CHAR":      true,
		"NVARCHAR":  true,
		"NCHAR":     true,
		"VARBINARY": true,
		"BINARY":    true,
		"DECIMAL":   true,
		"NUMERIC":   true,
	}
)

// NormalizeType upper-cases a column type, collapses whitespace and
// rewrites catalog aliases, e.g. "character varying(50)" to "VARCHAR(50)".
func NormalizeType(t string) string {
	t = strings.ToUpper(strings.Join(strings.Fields(t), " "))
	for _, a := range typeAliases {
		if t == a.from || strings.HasPrefix(t, a.from+"(") || strings.HasPrefix(t, a.from+" ") {
			return a.to + t[len(a.from):]
		}
	}
	return t
}

// BaseType returns the normalized type without its qualifiers,
// e.g. "DECIMAL" for "decimal(10,2)".
func BaseType(t string) string {
	return strings.TrimSpace(qualifierRe.ReplaceAllString(NormalizeType(t), ""))
}

// TypesEqual reports whether a live catalog type matches a declared type.
// Base types are compared first; qualifiers only matter for width
// sensitive types such as VARCHAR.
func TypesEqual(live, declared string) bool {
	lb, db := BaseType(live), BaseType(declared)
	if lb != db {
		return false
	}
	if !widthTypes[lb] {
		return true
	}
	return strings.ReplaceAll(NormalizeType(live), " ", "") == strings.ReplaceAll(NormalizeType(declared), " ", "")
}
