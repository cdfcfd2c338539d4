package schemasync_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/schemasync"
	"github.com/syssam/schemasync/config"
	"github.com/syssam/schemasync/dialect"
	"github.com/syssam/schemasync/dialect/sql"
	"github.com/syssam/schemasync/dialect/sql/pool"
	sqlschema "github.com/syssam/schemasync/dialect/sql/schema"
	"github.com/syssam/schemasync/schema"
	"github.com/syssam/schemasync/schema/field"
)

func blog() []*schema.Entity {
	return []*schema.Entity{
		schema.NewEntity("Post", "",
			field.ID("id"),
			field.String("title"),
			field.Ref("author", "User").JoinColumn("author_id"),
		),
		schema.NewEntity("User", "",
			field.ID("id"),
			field.String("username").Size(50).Unique(),
			field.Refs("posts", "Post").MappedBy("author"),
		),
	}
}

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Parse([]byte("dialect: sqlite\npath: " + filepath.Join(dir, "app.db") + "\nmigrations: {path: " + filepath.Join(dir, "migrations") + "}\npool: {max_size: 4, min_idle: 1}\n"))
	require.NoError(t, err)
	return cfg
}

func open(t *testing.T, cfg *config.Config, opts ...schemasync.Option) *schemasync.Client {
	t.Helper()
	client, err := schemasync.Open(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, client.Close()) })
	return client
}

func TestClient_Sync(t *testing.T) {
	ctx := context.Background()
	client := open(t, sqliteConfig(t))
	require.NoError(t, client.Register(blog()...))

	p, err := client.Plan(ctx)
	require.NoError(t, err)
	require.Len(t, p.Changes, 2)
	assert.Equal(t, "users", p.Changes[0].TableName())
	assert.Equal(t, "posts", p.Changes[1].TableName())

	require.NoError(t, client.Sync(ctx))
	p, err = client.Plan(ctx)
	require.NoError(t, err)
	assert.Empty(t, p.Changes)
	require.NoError(t, client.Sync(ctx))

	def, err := pool.Default()
	require.NoError(t, err)
	assert.Equal(t, 4, def.Config().MaxSize)
}

func TestClient_Migrations(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	client := open(t, cfg, schemasync.MigrateOptions(sqlschema.WithClock(func() time.Time { return now })))
	require.NoError(t, client.Register(blog()...))

	m, err := client.CreateMigration(ctx, "Create Blog")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "20260102030405_create_blog", m.ID())
	assert.FileExists(t, filepath.Join(cfg.Migrations.Path, "20260102030405_create_blog.up.sql"))
	assert.FileExists(t, filepath.Join(cfg.Migrations.Path, "20260102030405_create_blog.down.sql"))

	status, err := client.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status, 1)
	assert.False(t, status[0].Applied)

	applied, err := client.Migrate(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	status, err = client.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status[0].Applied)

	m, err = client.CreateMigration(ctx, "noop")
	require.NoError(t, err)
	assert.Nil(t, m)

	applied, err = client.Migrate(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)

	reverted, err := client.Rollback(ctx, 1)
	require.NoError(t, err)
	require.Len(t, reverted, 1)
	p, err := client.Plan(ctx)
	require.NoError(t, err)
	assert.Len(t, p.Changes, 2)
}

func TestClient_Register(t *testing.T) {
	drv, err := sql.Open(dialect.SQLite, "sqlite", "file:"+filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	defer drv.Close()
	client, err := schemasync.NewClient(schemasync.Driver(drv))
	require.NoError(t, err)

	err = client.Register(schema.NewEntity("User", "", field.ID("id"), field.Ref("team", "Team")))
	require.True(t, schemasync.IsMetadataError(err))
	assert.Zero(t, client.Registry().Len())
}

func TestClient_NoStore(t *testing.T) {
	ctx := context.Background()
	drv, err := sql.Open(dialect.SQLite, "sqlite", "file:"+filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	defer drv.Close()
	client, err := schemasync.NewClient(schemasync.Driver(drv))
	require.NoError(t, err)

	_, err = client.Migrate(ctx)
	require.ErrorIs(t, err, schemasync.ErrNoStore)
	_, err = client.Rollback(ctx, 1)
	require.ErrorIs(t, err, schemasync.ErrNoStore)
	_, err = client.Status(ctx)
	require.ErrorIs(t, err, schemasync.ErrNoStore)

	require.NoError(t, client.Register(blog()...))
	m, err := client.CreateMigration(ctx, "init")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Len(t, m.Up, 2)
	assert.Len(t, m.Down, 2)
}

func TestClient_Stats(t *testing.T) {
	ctx := context.Background()
	drv, err := sql.Open(dialect.SQLite, "sqlite", "file:"+filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	defer drv.Close()
	client, err := schemasync.NewClient(schemasync.Driver(drv), schemasync.Stats(), schemasync.Debug())
	require.NoError(t, err)
	require.NoError(t, client.Register(blog()...))
	require.NoError(t, client.Sync(ctx))

	s, ok := client.Stats()
	require.True(t, ok)
	assert.Equal(t, int64(2), s.TotalExecs)
	assert.Positive(t, s.TotalQueries)
	assert.Zero(t, s.Errors)

	plain, err := schemasync.NewClient(schemasync.Driver(drv))
	require.NoError(t, err)
	_, ok = plain.Stats()
	assert.False(t, ok)
}

func TestNewClient_MissingDriver(t *testing.T) {
	_, err := schemasync.NewClient()
	require.EqualError(t, err, "schemasync: missing driver")
}

func TestCreateDropDatabase_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)
	cfg.Path = filepath.Join(t.TempDir(), "nested", "app.db")

	require.NoError(t, schemasync.CreateDatabase(ctx, cfg))
	require.FileExists(t, cfg.Path)
	require.NoError(t, schemasync.DropDatabase(ctx, cfg))
	_, err := os.Stat(cfg.Path)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.NoError(t, schemasync.DropDatabase(ctx, cfg))
}

func TestClient_LockTimeout(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)
	cfg.LockTimeout = 2 * time.Second
	client := open(t, cfg)
	require.NoError(t, client.Register(blog()...))
	require.NoError(t, client.Sync(ctx))

	_, err := client.CreateMigration(ctx, "noop")
	require.NoError(t, err)
	applied, err := client.Migrate(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestClient_CloseKeepsOtherPool(t *testing.T) {
	ctx := context.Background()
	first := open(t, sqliteConfig(t))
	second := open(t, sqliteConfig(t))
	require.NoError(t, second.Register(blog()...))

	require.NoError(t, first.Close())
	_, err := pool.Default()
	require.NoError(t, err)
	require.NoError(t, second.Sync(ctx))
	p, err := second.Plan(ctx)
	require.NoError(t, err)
	assert.Empty(t, p.Changes)
}
