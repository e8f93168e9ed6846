package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"

	"ecommerce-transactions/config"
	"ecommerce-transactions/internal/repository"
	"ecommerce-transactions/pkg/database"
)

const usage = `
Ecommerce Transactions - Database CLI Tool

Usage:
  migrate [command]

Commands:
  up          Apply pending migrations
  status      List applied and pending migrations

Examples:
  go run ./cmd/migrate up
  go run ./cmd/migrate status
`

func main() {
	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer pool.Close()

	switch command := flag.Arg(0); command {
	case "up":
		runMigrationsUp(ctx, pool)
	case "status":
		showStatus(ctx, pool)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp(ctx context.Context, db database.Execer) {
	log.Println("Running migrations UP...")

	applied, err := repository.InitSchema(ctx, db)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	if len(applied) == 0 {
		log.Println("Schema already up to date")
		return
	}
	log.Printf("Applied %d migration(s)", len(applied))
}

func showStatus(ctx context.Context, db database.Execer) {
	applied, err := database.AppliedMigrations(ctx, db)
	if err != nil {
		log.Fatalf("Status check failed: %v", err)
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
		log.Printf("applied  %s", name)
	}

	files, err := fs.ReadDir(repository.Migrations(), ".")
	if err != nil {
		log.Fatalf("Failed to read embedded migrations: %v", err)
	}
	for _, f := range files {
		if !done[f.Name()] {
			log.Printf("pending  %s", f.Name())
		}
	}
}
