package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/syssam/schemasync/dialect"
	"github.com/syssam/schemasync/dialect/sql"
)

// Inspector reads the live state of tables from the catalog of the
// connected database.
type Inspector interface {
	// TableExists reports whether the table exists in the current schema.
	TableExists(ctx context.Context, table string) (bool, error)
	// Columns returns the columns of an existing table in ordinal order.
	Columns(ctx context.Context, table string) ([]*Column, error)
	// Constraints annotates the live columns of a table with the unique
	// and foreign-key constraints that must go before the column does.
	// Only single column constraints are reported.
	Constraints(ctx context.Context, table string, columns []*Column) error
	// Version returns the server version.
	Version(ctx context.Context) (string, error)
}

// NewInspector returns the catalog inspector of the given dialect.
func NewInspector(name string, q dialect.ExecQuerier) (Inspector, error) {
	switch name {
	case dialect.MySQL:
		return &mysqlInspector{q}, nil
	case dialect.SQLite:
		return &sqliteInspector{q}, nil
	case dialect.Postgres:
		return &postgresInspector{q}, nil
	case dialect.SQLServer:
		return &mssqlInspector{q}, nil
	}
	return nil, fmt.Errorf("dialect/sql/schema: unsupported dialect %q", name)
}

// query runs a catalog query and calls scan for every row.
func query(ctx context.Context, q dialect.ExecQuerier, stmt string, args []any, scan func(*sql.Rows) error) error {
	rows := &sql.Rows{}
	if err := q.Query(ctx, stmt, args, rows); err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func count(ctx context.Context, q dialect.ExecQuerier, stmt string, args ...any) (int64, error) {
	var n int64
	err := query(ctx, q, stmt, args, func(rows *sql.Rows) error {
		return rows.Scan(&n)
	})
	return n, err
}

// columnIndex indexes columns by lowercased name.
func columnIndex(columns []*Column) map[string]*Column {
	idx := make(map[string]*Column, len(columns))
	for _, c := range columns {
		idx[strings.ToLower(c.Name)] = c
	}
	return idx
}

// foreignKeys attaches the foreign keys returned by stmt to the columns.
// Rows are (constraint, column, referenced table, referenced column).
func foreignKeys(ctx context.Context, q dialect.ExecQuerier, stmt, table string, columns []*Column) error {
	idx := columnIndex(columns)
	return query(ctx, q, stmt, []any{table}, func(rows *sql.Rows) error {
		fk := &ForeignKey{}
		if err := rows.Scan(&fk.Name, &fk.Column, &fk.RefTable, &fk.RefColumn); err != nil {
			return err
		}
		if c, ok := idx[strings.ToLower(fk.Column)]; ok {
			c.References = fk
		}
		return nil
	})
}

func version(ctx context.Context, q dialect.ExecQuerier, stmt string) (string, error) {
	var v string
	err := query(ctx, q, stmt, []any{}, func(rows *sql.Rows) error {
		return rows.Scan(&v)
	})
	return v, err
}

type mysqlInspector struct{ q dialect.ExecQuerier }

func (i *mysqlInspector) TableExists(ctx context.Context, table string) (bool, error) {
	n, err := count(ctx, i.q, "SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = (SELECT DATABASE()) AND TABLE_NAME = ?", table)
	return n > 0, err
}

func (i *mysqlInspector) Columns(ctx context.Context, table string) ([]*Column, error) {
	var columns []*Column
	err := query(ctx, i.q, "SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_KEY FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = (SELECT DATABASE()) AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION", []any{table}, func(rows *sql.Rows) error {
		var (
			c              = &Column{}
			nullable, keys string
		)
		if err := rows.Scan(&c.Name, &c.Type, &nullable, &keys); err != nil {
			return err
		}
		c.Nullable = nullable == "YES"
		c.PrimaryKey = keys == "PRI"
		c.Unique = keys == "UNI"
		columns = append(columns, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mysql: query columns of %q: %w", table, err)
	}
	return columns, nil
}

const mysqlForeignKeys = `SELECT k.CONSTRAINT_NAME, k.COLUMN_NAME, k.REFERENCED_TABLE_NAME, k.REFERENCED_COLUMN_NAME FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE k ` +
	`WHERE k.TABLE_SCHEMA = (SELECT DATABASE()) AND k.TABLE_NAME = ? AND k.REFERENCED_TABLE_NAME IS NOT NULL ` +
	`AND (SELECT COUNT(*) FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE n WHERE n.TABLE_SCHEMA = k.TABLE_SCHEMA AND n.TABLE_NAME = k.TABLE_NAME AND n.CONSTRAINT_NAME = k.CONSTRAINT_NAME) = 1`

// Constraints reports foreign keys. Unique indexes go away with their
// last column.
func (i *mysqlInspector) Constraints(ctx context.Context, table string, columns []*Column) error {
	if err := foreignKeys(ctx, i.q, mysqlForeignKeys, table, columns); err != nil {
		return fmt.Errorf("mysql: query foreign keys of %q: %w", table, err)
	}
	return nil
}

func (i *mysqlInspector) Version(ctx context.Context) (string, error) {
	return version(ctx, i.q, "SELECT VERSION()")
}

type postgresInspector struct{ q dialect.ExecQuerier }

func (i *postgresInspector) TableExists(ctx context.Context, table string) (bool, error) {
	n, err := count(ctx, i.q, "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = CURRENT_SCHEMA() AND table_name = $1", table)
	return n > 0, err
}

const postgresColumns = `SELECT a.attname, format_type(a.atttypid, a.atttypmod), NOT a.attnotnull, ` +
	`EXISTS (SELECT 1 FROM pg_index i WHERE i.indrelid = a.attrelid AND i.indisprimary AND a.attnum = ANY(i.indkey)), ` +
	`EXISTS (SELECT 1 FROM pg_index i WHERE i.indrelid = a.attrelid AND i.indisunique AND NOT i.indisprimary AND i.indnatts = 1 AND i.indkey[0] = a.attnum) ` +
	`FROM pg_attribute a WHERE a.attrelid = to_regclass($1) AND a.attnum > 0 AND NOT a.attisdropped ORDER BY a.attnum`

func (i *postgresInspector) Columns(ctx context.Context, table string) ([]*Column, error) {
	var columns []*Column
	err := query(ctx, i.q, postgresColumns, []any{table}, func(rows *sql.Rows) error {
		c := &Column{}
		if err := rows.Scan(&c.Name, &c.Type, &c.Nullable, &c.PrimaryKey, &c.Unique); err != nil {
			return err
		}
		columns = append(columns, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: query columns of %q: %w", table, err)
	}
	return columns, nil
}

const postgresForeignKeys = `SELECT c.conname, a.attname, r.relname, ra.attname FROM pg_constraint c ` +
	`JOIN pg_attribute a ON a.attrelid = c.conrelid AND a.attnum = c.conkey[1] ` +
	`JOIN pg_class r ON r.oid = c.confrelid ` +
	`JOIN pg_attribute ra ON ra.attrelid = c.confrelid AND ra.attnum = c.confkey[1] ` +
	`WHERE c.contype = 'f' AND c.conrelid = to_regclass($1) AND cardinality(c.conkey) = 1`

// Constraints reports foreign keys. Unique constraints are dropped along
// with their column.
func (i *postgresInspector) Constraints(ctx context.Context, table string, columns []*Column) error {
	if err := foreignKeys(ctx, i.q, postgresForeignKeys, table, columns); err != nil {
		return fmt.Errorf("postgres: query foreign keys of %q: %w", table, err)
	}
	return nil
}

func (i *postgresInspector) Version(ctx context.Context) (string, error) {
	return version(ctx, i.q, "SHOW server_version")
}

type sqliteInspector struct{ q dialect.ExecQuerier }

func (i *sqliteInspector) TableExists(ctx context.Context, table string) (bool, error) {
	n, err := count(ctx, i.q, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table)
	return n > 0, err
}

func (i *sqliteInspector) Columns(ctx context.Context, table string) ([]*Column, error) {
	var columns []*Column
	err := query(ctx, i.q, "SELECT name, type, \"notnull\", pk FROM pragma_table_info(?) ORDER BY cid", []any{table}, func(rows *sql.Rows) error {
		var (
			c           = &Column{}
			notnull, pk int
		)
		if err := rows.Scan(&c.Name, &c.Type, &notnull, &pk); err != nil {
			return err
		}
		c.Nullable = notnull == 0 && pk == 0
		c.PrimaryKey = pk > 0
		columns = append(columns, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: query columns of %q: %w", table, err)
	}
	unique, err := i.uniqueColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	for _, c := range columns {
		_, c.Unique = unique[strings.ToLower(c.Name)]
	}
	return columns, nil
}

// uniqueIndex is a single column unique index of a SQLite table.
type uniqueIndex struct {
	name string
	// origin is "u" for a UNIQUE table constraint and "c" for an index
	// created with CREATE INDEX.
	origin string
}

// uniqueColumns returns the columns covered by a single column unique
// index that is not the primary key.
func (i *sqliteInspector) uniqueColumns(ctx context.Context, table string) (map[string]uniqueIndex, error) {
	var indexes []uniqueIndex
	err := query(ctx, i.q, "SELECT name, origin FROM pragma_index_list(?) WHERE \"unique\" = 1 AND origin <> 'pk'", []any{table}, func(rows *sql.Rows) error {
		var idx uniqueIndex
		if err := rows.Scan(&idx.name, &idx.origin); err != nil {
			return err
		}
		indexes = append(indexes, idx)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: query indexes of %q: %w", table, err)
	}
	unique := make(map[string]uniqueIndex)
	for _, idx := range indexes {
		var names []string
		err := query(ctx, i.q, "SELECT name FROM pragma_index_info(?)", []any{idx.name}, func(rows *sql.Rows) error {
			var name string
			if err := rows.Scan(&name); err != nil {
				return err
			}
			names = append(names, name)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("sqlite: query index %q: %w", idx.name, err)
		}
		if len(names) == 1 {
			unique[strings.ToLower(names[0])] = idx
		}
	}
	return unique, nil
}

// Constraints reports unique indexes by origin and foreign keys. SQLite
// does not name foreign keys.
func (i *sqliteInspector) Constraints(ctx context.Context, table string, columns []*Column) error {
	unique, err := i.uniqueColumns(ctx, table)
	if err != nil {
		return err
	}
	idx := columnIndex(columns)
	for name, u := range unique {
		c, ok := idx[name]
		if !ok {
			continue
		}
		if u.origin == "c" {
			c.UniqueIndex = u.name
		} else {
			c.UniqueConstraint = u.name
		}
	}
	var (
		ids  []int
		keys = make(map[int][]*ForeignKey)
	)
	err = query(ctx, i.q, "SELECT id, \"from\", \"table\", \"to\" FROM pragma_foreign_key_list(?) ORDER BY id, seq", []any{table}, func(rows *sql.Rows) error {
		var (
			id int
			fk = &ForeignKey{}
			to sql.NullString
		)
		if err := rows.Scan(&id, &fk.Column, &fk.RefTable, &to); err != nil {
			return err
		}
		// A missing parent column references the primary key.
		fk.RefColumn = to.String
		if _, ok := keys[id]; !ok {
			ids = append(ids, id)
		}
		keys[id] = append(keys[id], fk)
		return nil
	})
	if err != nil {
		return fmt.Errorf("sqlite: query foreign keys of %q: %w", table, err)
	}
	for _, id := range ids {
		if fks := keys[id]; len(fks) == 1 {
			if c, ok := idx[strings.ToLower(fks[0].Column)]; ok {
				c.References = fks[0]
			}
		}
	}
	return nil
}

func (i *sqliteInspector) Version(ctx context.Context) (string, error) {
	return version(ctx, i.q, "SELECT sqlite_version()")
}

type mssqlInspector struct{ q dialect.ExecQuerier }

func (i *mssqlInspector) TableExists(ctx context.Context, table string) (bool, error) {
	n, err := count(ctx, i.q, "SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = SCHEMA_NAME() AND TABLE_NAME = @p1", table)
	return n > 0, err
}

const mssqlColumns = `SELECT c.COLUMN_NAME, c.DATA_TYPE, c.CHARACTER_MAXIMUM_LENGTH, c.NUMERIC_PRECISION, c.NUMERIC_SCALE, c.IS_NULLABLE, ` +
	`(SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE k ON tc.CONSTRAINT_NAME = k.CONSTRAINT_NAME AND tc.TABLE_SCHEMA = k.TABLE_SCHEMA ` +
	`WHERE tc.TABLE_SCHEMA = c.TABLE_SCHEMA AND tc.TABLE_NAME = c.TABLE_NAME AND k.COLUMN_NAME = c.COLUMN_NAME AND tc.CONSTRAINT_TYPE = 'PRIMARY KEY'), ` +
	`(SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE k ON tc.CONSTRAINT_NAME = k.CONSTRAINT_NAME AND tc.TABLE_SCHEMA = k.TABLE_SCHEMA ` +
	`WHERE tc.TABLE_SCHEMA = c.TABLE_SCHEMA AND tc.TABLE_NAME = c.TABLE_NAME AND k.COLUMN_NAME = c.COLUMN_NAME AND tc.CONSTRAINT_TYPE = 'UNIQUE') ` +
	`FROM INFORMATION_SCHEMA.COLUMNS c WHERE c.TABLE_SCHEMA = SCHEMA_NAME() AND c.TABLE_NAME = @p1 ORDER BY c.ORDINAL_POSITION`

func (i *mssqlInspector) Columns(ctx context.Context, table string) ([]*Column, error) {
	var columns []*Column
	err := query(ctx, i.q, mssqlColumns, []any{table}, func(rows *sql.Rows) error {
		var (
			c                        = &Column{}
			length, precision, scale sql.NullInt64
			nullable                 string
			pk, unique               int
		)
		if err := rows.Scan(&c.Name, &c.Type, &length, &precision, &scale, &nullable, &pk, &unique); err != nil {
			return err
		}
		c.Type = mssqlQualify(c.Type, length, precision, scale)
		c.Nullable = nullable == "YES"
		c.PrimaryKey = pk > 0
		c.Unique = unique > 0
		columns = append(columns, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sqlserver: query columns of %q: %w", table, err)
	}
	return columns, nil
}

// mssqlQualify adds the length or precision qualifiers that
// INFORMATION_SCHEMA reports in separate columns.
func mssqlQualify(t string, length, precision, scale sql.NullInt64) string {
	switch strings.ToLower(t) {
	case "varchar", "nvarchar", "char", "nchar", "varbinary", "binary":
		switch {
		case !length.Valid:
			return t
		case length.Int64 == -1:
			return t + "(MAX)"
		default:
			return fmt.Sprintf("%s(%d)", t, length.Int64)
		}
	case "decimal", "numeric":
		if precision.Valid {
			return fmt.Sprintf("%s(%d,%d)", t, precision.Int64, scale.Int64)
		}
	}
	return t
}

const (
	mssqlForeignKeys = `SELECT fk.name, pc.name, rt.name, rc.name FROM sys.foreign_keys fk ` +
		`JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id ` +
		`JOIN sys.columns pc ON pc.object_id = fkc.parent_object_id AND pc.column_id = fkc.parent_column_id ` +
		`JOIN sys.tables rt ON rt.object_id = fkc.referenced_object_id ` +
		`JOIN sys.columns rc ON rc.object_id = fkc.referenced_object_id AND rc.column_id = fkc.referenced_column_id ` +
		`WHERE fk.parent_object_id = OBJECT_ID(@p1) ` +
		`AND (SELECT COUNT(*) FROM sys.foreign_key_columns n WHERE n.constraint_object_id = fk.object_id) = 1`
	mssqlUniqueConstraints = `SELECT kc.name, c.name FROM sys.key_constraints kc ` +
		`JOIN sys.index_columns ic ON ic.object_id = kc.parent_object_id AND ic.index_id = kc.unique_index_id ` +
		`JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id ` +
		`WHERE kc.type = 'UQ' AND kc.parent_object_id = OBJECT_ID(@p1) ` +
		`AND (SELECT COUNT(*) FROM sys.index_columns n WHERE n.object_id = kc.parent_object_id AND n.index_id = kc.unique_index_id) = 1`
)

// Constraints reports the UQ__ constraints created by inline UNIQUE, and
// foreign keys.
func (i *mssqlInspector) Constraints(ctx context.Context, table string, columns []*Column) error {
	idx := columnIndex(columns)
	err := query(ctx, i.q, mssqlUniqueConstraints, []any{table}, func(rows *sql.Rows) error {
		var name, column string
		if err := rows.Scan(&name, &column); err != nil {
			return err
		}
		if c, ok := idx[strings.ToLower(column)]; ok {
			c.UniqueConstraint = name
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sqlserver: query unique constraints of %q: %w", table, err)
	}
	if err := foreignKeys(ctx, i.q, mssqlForeignKeys, table, columns); err != nil {
		return fmt.Errorf("sqlserver: query foreign keys of %q: %w", table, err)
	}
	return nil
}

func (i *mssqlInspector) Version(ctx context.Context) (string, error) {
	return version(ctx, i.q, "SELECT CAST(SERVERPROPERTY('ProductVersion') AS NVARCHAR(128))")
}
