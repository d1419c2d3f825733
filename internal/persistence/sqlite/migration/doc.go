// Package migration applies versioned SQL schema changes to a SQLite database.
//
// Migrations are read from an fs.FS, usually an embed.FS compiled into the
// binary, and must be named {version}_{description}.sql (for example
// "001_create_commitments.sql"). Each migration runs in its own transaction
// together with the insert into the schema_migrations version table, so a
// failed migration leaves neither schema changes nor a version row behind.
//
// Example usage:
//
//	manager := migration.NewMigrationManager(scanner, executor, migrations, "migrations", logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
