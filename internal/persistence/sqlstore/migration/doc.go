// Package migration applies the versioned SQL files embedded for each
// supported dialect and records them in the schema_migrations table.
//
// Files are named {version}_{description}.sql and applied in ascending
// version order, each inside its own transaction. A "-- Description:"
// comment at the top of a file overrides the description taken from its name.
package migration
