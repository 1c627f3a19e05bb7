package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/garnizeh/mockinterview/internal/config"
	"github.com/garnizeh/mockinterview/internal/db"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	out := flag.String("out", "", "backup file (default <dsn>.<timestamp>.bak)")
	flag.Parse()
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Database.Driver != "" && cfg.Database.Driver != db.DriverSQLite {
		fmt.Fprintln(os.Stderr, "Backup error: only sqlite databases can be backed up here; use pg_dump for postgres")
		os.Exit(1)
	}

	dst := *out
	if dst == "" {
		dst = fmt.Sprintf("%s.%s.bak", cfg.Database.DSN, time.Now().UTC().Format("20060102T150405Z"))
	}
	if _, err := os.Stat(dst); err == nil {
		fmt.Fprintf(os.Stderr, "Backup error: %s already exists\n", dst)
		os.Exit(1)
	}

	ctx := context.Background()
	database, err := db.New(ctx, db.DriverSQLite, cfg.Database.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Backup error: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	// VACUUM INTO writes a consistent snapshot while the server keeps running.
	if _, err := database.Exec(ctx, `VACUUM INTO ?`, dst); err != nil {
		fmt.Fprintf(os.Stderr, "Backup error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Database backup completed: %s\n", dst)
}
