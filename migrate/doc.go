// Package migrate stores versioned migrations and applies them to a
// database through a ledger table.
//
// A Migration carries a version, a name and the up and down statements
// produced by a schema diff. Stores persist migrations: LocalDir writes
// checksummed SQL files, GoDir writes Go source registering the migration
// at init time, GitDir commits files to a git worktree and S3Dir uploads
// them to a bucket.
//
// The Executor applies pending migrations in version order and rolls back
// the most recent ones. Every migration runs in its own transaction
// together with its ledger update; a failing statement aborts the run and
// is reported as a MigrationError.
package migrate
