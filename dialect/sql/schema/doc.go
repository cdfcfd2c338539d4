// Package schema synchronizes the entities of a registry with the tables of
// a live database.
//
// A synchronization pass maps entities to tables with the Mapper, reads the
// live columns with a dialect Inspector, diffs both with the Engine and
// either applies the resulting changes (Migrate.Create) or writes them as a
// versioned migration with up and down statements (Migrate.NamedDiff).
//
//	m, err := schema.NewMigrate(drv, schema.WithDir(dir), schema.WithAutoDropColumns(true))
//	if err != nil {
//	    return err
//	}
//	mig, err := m.NamedDiff(ctx, "add user email", reg)
//
// Changes that the dialect cannot express, columns that exist in the
// database but are no longer declared, and dependency cycles between
// entities are reported as warnings in the Report of the pass and logged;
// they never stop it.
package schema
