// Package config loads the YAML configuration of schemasync: the database
// connection, the connection pool, the migration store and the entity
// declarations.
package config

import (
	"context"
	"fmt"
	"maps"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"gopkg.in/yaml.v3"

	"github.com/syssam/schemasync/dialect"
	"github.com/syssam/schemasync/dialect/sql/pool"
	"github.com/syssam/schemasync/migrate"
)

// Config is the top-level configuration file.
//
//	dialect: postgres
//	host: localhost
//	database: app
//	user: app
//	password_env: APP_DB_PASSWORD
//	pool:
//	  max_size: 10
//	  acquire_timeout: 30s
//	migrations:
//	  type: dir
//	  path: migrations
type Config struct {
	// Dialect is one of mysql, postgres, sqlite or sqlserver.
	Dialect string `yaml:"dialect"`
	// Driver overrides the database/sql driver name. Postgres accepts
	// "postgres" (lib/pq, default) or "pgx"; SQLite accepts "sqlite"
	// (modernc, default) or "sqlite3" (mattn).
	Driver   string `yaml:"driver,omitempty"`
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Database string `yaml:"database,omitempty"`
	// Path is the database file of SQLite.
	Path     string `yaml:"path,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	// PasswordEnv names an environment variable holding the password. It
	// takes precedence over Password when set and non-empty.
	PasswordEnv string `yaml:"password_env,omitempty"`
	// Charset is the character set of MySQL connections and created
	// databases, or the encoding of created Postgres databases.
	Charset string `yaml:"charset,omitempty"`
	// Params are appended to the connection string.
	Params map[string]string `yaml:"params,omitempty"`

	Pool            pool.Config `yaml:"pool"`
	AutoDropColumns bool        `yaml:"auto_drop_columns,omitempty"`
	StrictCycles    bool        `yaml:"strict_cycles,omitempty"`
	// LockTimeout bounds how long schema changes and migrations wait for
	// locks held by other sessions. Zero waits as long as the server does.
	LockTimeout time.Duration `yaml:"lock_timeout,omitempty"`
	Migrations  Store         `yaml:"migrations"`
	// Entities is the path of the entity declarations file.
	Entities string `yaml:"entities,omitempty"`
}

// Store configures where generated migrations are kept.
type Store struct {
	// Type is one of dir (default), go, git or s3.
	Type string `yaml:"type,omitempty"`
	// Path is the migration directory for dir and go stores, and the
	// repository root for git stores.
	Path string `yaml:"path,omitempty"`
	// Package is the Go package name of go stores.
	Package string `yaml:"package,omitempty"`
	// Dir is the directory inside a git repository.
	Dir    string           `yaml:"dir,omitempty"`
	Bucket string           `yaml:"bucket,omitempty"`
	Prefix string           `yaml:"prefix,omitempty"`
	S3     migrate.S3Config `yaml:"s3,omitempty"`
}

// Store types.
const (
	StoreDir = "dir"
	StoreGo  = "go"
	StoreGit = "git"
	StoreS3  = "s3"
)

var defaultPorts = map[string]int{
	dialect.MySQL:     3306,
	dialect.Postgres:  5432,
	dialect.SQLServer: 1433,
}

var drivers = map[string][]string{
	dialect.MySQL:     {"mysql"},
	dialect.Postgres:  {"postgres", "pgx"},
	dialect.SQLite:    {"sqlite", "sqlite3"},
	dialect.SQLServer: {"sqlserver"},
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a configuration document. Missing values are
// filled with their defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{Pool: pool.DefaultConfig()}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Dialect == "postgresql" {
		c.Dialect = dialect.Postgres
	}
	if c.Dialect == "sqlite3" {
		c.Dialect = dialect.SQLite
	}
	if c.Driver == "" && len(drivers[c.Dialect]) > 0 {
		c.Driver = drivers[c.Dialect][0]
	}
	if c.Port == 0 {
		c.Port = defaultPorts[c.Dialect]
	}
	if c.Host == "" && c.Dialect != dialect.SQLite {
		c.Host = "localhost"
	}
	if c.Migrations.Type == "" {
		c.Migrations.Type = StoreDir
	}
	if c.Migrations.Path == "" && c.Migrations.Type != StoreS3 {
		c.Migrations.Path = "migrations"
	}
	if c.Migrations.Type == StoreGo && c.Migrations.Package == "" {
		c.Migrations.Package = "migrations"
	}
}

// Validate reports the first inconsistency of the configuration.
func (c *Config) Validate() error {
	if !dialect.Valid(c.Dialect) {
		return fmt.Errorf("config: unsupported dialect %q", c.Dialect)
	}
	if !slices.Contains(drivers[c.Dialect], c.Driver) {
		return fmt.Errorf("config: driver %q cannot be used with dialect %s (want one of %v)", c.Driver, c.Dialect, drivers[c.Dialect])
	}
	switch {
	case c.Dialect == dialect.SQLite && c.Path == "":
		return fmt.Errorf("config: sqlite requires a database path")
	case c.Dialect != dialect.SQLite && c.Database == "":
		return fmt.Errorf("config: %s requires a database name", c.Dialect)
	}
	if err := c.Pool.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.LockTimeout < 0 {
		return fmt.Errorf("config: lock_timeout must not be negative")
	}
	switch c.Migrations.Type {
	case StoreDir, StoreGo, StoreGit:
	case StoreS3:
		if c.Migrations.Bucket == "" {
			return fmt.Errorf("config: s3 store requires a bucket")
		}
	default:
		return fmt.Errorf("config: unknown migration store %q", c.Migrations.Type)
	}
	return nil
}

// Secret returns the password, read from PasswordEnv if it is set.
func (c *Config) Secret() string {
	if c.PasswordEnv != "" {
		if v := os.Getenv(c.PasswordEnv); v != "" {
			return v
		}
	}
	return c.Password
}

// DriverName returns the database/sql driver name to open.
func (c *Config) DriverName() string { return c.Driver }

// DSN returns the connection string of the configured database.
func (c *Config) DSN() (string, error) {
	return c.dsn(c.Database)
}

// ServerDSN returns a connection string to the server that does not select
// the configured database, for creating or dropping it. SQLite has no
// server and returns the file DSN.
func (c *Config) ServerDSN() (string, error) {
	switch c.Dialect {
	case dialect.Postgres:
		return c.dsn("postgres")
	default:
		return c.dsn("")
	}
}

func (c *Config) dsn(database string) (string, error) {
	addr := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	switch c.Dialect {
	case dialect.MySQL:
		m := mysql.NewConfig()
		m.User, m.Passwd = c.User, c.Secret()
		m.Net, m.Addr, m.DBName = "tcp", addr, database
		m.ParseTime = true
		m.Params = maps.Clone(c.Params)
		if c.Charset != "" {
			if m.Params == nil {
				m.Params = make(map[string]string)
			}
			m.Params["charset"] = c.Charset
		}
		return m.FormatDSN(), nil
	case dialect.Postgres:
		q := url.Values{"sslmode": {"disable"}}
		for k, v := range c.Params {
			q.Set(k, v)
		}
		u := &url.URL{Scheme: "postgres", Host: addr, Path: "/" + database, RawQuery: q.Encode()}
		if c.User != "" {
			u.User = url.UserPassword(c.User, c.Secret())
		}
		if c.Driver == "pgx" {
			if _, err := pgx.ParseConfig(u.String()); err != nil {
				return "", fmt.Errorf("config: postgres dsn: %w", err)
			}
			return u.String(), nil
		}
		dsn, err := pq.ParseURL(u.String())
		if err != nil {
			return "", fmt.Errorf("config: postgres dsn: %w", err)
		}
		return dsn, nil
	case dialect.SQLServer:
		q := url.Values{}
		if database != "" {
			q.Set("database", database)
		}
		for k, v := range c.Params {
			q.Set(k, v)
		}
		u := &url.URL{Scheme: "sqlserver", Host: addr, RawQuery: q.Encode()}
		if c.User != "" {
			u.User = url.UserPassword(c.User, c.Secret())
		}
		return u.String(), nil
	case dialect.SQLite:
		q := url.Values{}
		busy := strconv.FormatInt(c.LockTimeout.Milliseconds(), 10)
		if c.Driver == "sqlite3" {
			q.Set("_foreign_keys", "on")
			if c.LockTimeout > 0 {
				q.Set("_busy_timeout", busy)
			}
		} else {
			q.Add("_pragma", "foreign_keys(1)")
			if c.LockTimeout > 0 {
				q.Add("_pragma", "busy_timeout("+busy+")")
			}
		}
		for k, v := range c.Params {
			q.Set(k, v)
		}
		return "file:" + c.Path + "?" + q.Encode(), nil
	}
	return "", fmt.Errorf("config: unsupported dialect %q", c.Dialect)
}

// Open returns the migration store described by s.
func (s Store) Open(ctx context.Context) (migrate.Store, error) {
	switch s.Type {
	case StoreDir, "":
		if err := os.MkdirAll(s.Path, 0o755); err != nil {
			return nil, fmt.Errorf("config: create migration directory: %w", err)
		}
		return migrate.NewLocalDir(s.Path)
	case StoreGo:
		return migrate.NewGoDir(s.Path, s.Package), nil
	case StoreGit:
		return migrate.OpenGitDir(s.Path, s.Dir)
	case StoreS3:
		client, err := migrate.NewS3Client(ctx, s.S3)
		if err != nil {
			return nil, err
		}
		return migrate.NewS3Dir(client, s.Bucket, s.Prefix), nil
	}
	return nil, fmt.Errorf("config: unknown migration store %q", s.Type)
}
