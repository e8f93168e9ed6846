package repository

import (
	"context"
	"embed"
	"io/fs"

	"ecommerce-transactions/pkg/database"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations exposes the embedded schema files.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// InitSchema applies every pending migration.
func InitSchema(ctx context.Context, db database.Execer) ([]string, error) {
	return database.ApplyMigrations(ctx, db, Migrations())
}
