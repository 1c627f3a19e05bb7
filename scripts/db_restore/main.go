package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"

	"github.com/garnizeh/mockinterview/internal/config"
	"github.com/garnizeh/mockinterview/internal/db"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	src := flag.String("from", "", "backup file to restore")
	flag.Parse()
	_ = godotenv.Load()

	if *src == "" {
		fmt.Fprintln(os.Stderr, "Restore error: -from is required")
		os.Exit(1)
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Database.Driver != "" && cfg.Database.Driver != db.DriverSQLite {
		fmt.Fprintln(os.Stderr, "Restore error: only sqlite databases can be restored here")
		os.Exit(1)
	}

	if err := verify(*src); err != nil {
		fmt.Fprintf(os.Stderr, "Restore error: backup failed integrity check: %v\n", err)
		os.Exit(1)
	}
	if err := copyFile(*src, cfg.Database.DSN); err != nil {
		fmt.Fprintf(os.Stderr, "Restore error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Database restore completed. Restart the server to pick it up.")
}

func verify(path string) error {
	ctx := context.Background()
	d, err := db.New(ctx, db.DriverSQLite, "file:"+path+"?mode=ro")
	if err != nil {
		return err
	}
	defer d.Close()

	var result string
	if err := d.QueryRow(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("integrity_check: %s", result)
	}
	return nil
}

// copyFile writes to a temp file next to dst and renames it into place.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".restore"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	// stale WAL files would be replayed over the restored database
	os.Remove(dst + "-wal")
	os.Remove(dst + "-shm")
	return os.Rename(tmp, dst)
}
