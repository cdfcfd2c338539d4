// Package schemasync keeps relational database schemas in sync with entity
// declarations.
//
// Entities are declared once, either with the builders of the schema and
// schema/field packages or as YAML (see config.LoadEntities), and
// registered with a Client. The client then either applies the changes
// needed by the database directly, or writes them as versioned migrations
// that are applied and rolled back through a ledger table:
//
//	cfg, err := config.Load("schemasync.yaml")
//	if err != nil {
//		return err
//	}
//	client, err := schemasync.Open(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//	if err := client.Register(entities...); err != nil {
//		return err
//	}
//	if _, err := client.CreateMigration(ctx, "add user email"); err != nil {
//		return err
//	}
//	applied, err := client.Migrate(ctx)
//
// MySQL, PostgreSQL, SQLite and SQL Server are supported. Database drivers
// are not imported by this package; import the driver named in the
// configuration, e.g. _ "modernc.org/sqlite".
package schemasync
