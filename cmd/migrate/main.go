// Package main implements the migrate CLI for the CarbMine schema.
//
// Usage:
//
//	go run ./cmd/migrate up
//	go run ./cmd/migrate down
//	go run ./cmd/migrate version
//	go run ./cmd/migrate force 1
//	go run ./cmd/migrate seed data/coal_mining_emissions.csv
//
// The database is taken from --database-url or DATABASE_URL (environment or
// .env file via godotenv). seed loads a history CSV/XLSX file into the
// historical_records table, replacing rows for the same years.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"carbmine/internal/db"
	"carbmine/internal/history"
	"carbmine/internal/types"
)

// schemaMigrator is the subset of db.Migrator the CLI drives.
type schemaMigrator interface {
	Up() (bool, error)
	Down() error
	Version() (uint, bool, error)
	Force(version int) error
	Close() error
}

// historyWriter stores historical records.
type historyWriter interface {
	Upsert(ctx context.Context, records []types.HistoricalRecord) (int, error)
}

// deps are the database entry points, swapped out in tests.
type deps struct {
	newMigrator func(url string) (schemaMigrator, error)
	openWriter  func(ctx context.Context, url string) (historyWriter, func(), error)
}

func defaultDeps() deps {
	return deps{
		newMigrator: func(url string) (schemaMigrator, error) {
			return db.NewMigrator(url)
		},
		openWriter: func(ctx context.Context, url string) (historyWriter, func(), error) {
			pool, err := db.Connect(ctx, url, db.PoolOptions{MaxConns: 2})
			if err != nil {
				return nil, nil, err
			}
			return db.NewHistoryRepository(pool), pool.Close, nil
		},
	}
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultDeps()); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, d deps) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbURL := fs.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: migrate [flags] up|down|version|force VERSION|seed FILE\n\nFlags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errors.New("a command is required")
	}
	if *dbURL == "" {
		return errors.New("DATABASE_URL is not set")
	}

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "up", "down", "version", "force":
		return runMigration(cmd, cmdArgs, *dbURL, stdout, d)
	case "seed":
		if len(cmdArgs) != 1 {
			return errors.New("seed requires a history file path")
		}
		return seed(ctx, cmdArgs[0], *dbURL, stdout, d)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runMigration(cmd string, args []string, url string, stdout io.Writer, d deps) (err error) {
	var version int
	if cmd == "force" {
		if len(args) != 1 {
			return errors.New("force requires a version")
		}
		if version, err = strconv.Atoi(args[0]); err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
	}

	m, err := d.newMigrator(url)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := m.Close(); err == nil {
			err = cerr
		}
	}()

	switch cmd {
	case "up":
		changed, err := m.Up()
		if err != nil {
			return err
		}
		if !changed {
			fmt.Fprintln(stdout, "no change")
			return nil
		}
		fmt.Fprintln(stdout, "migrations applied")
	case "down":
		if err := m.Down(); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "migrations rolled back")
	case "force":
		if err := m.Force(version); err != nil {
			return fmt.Errorf("force %d: %w", version, err)
		}
		fmt.Fprintf(stdout, "forced version %d\n", version)
		return nil
	}

	v, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	fmt.Fprintf(stdout, "version %d (dirty=%t)\n", v, dirty)
	return nil
}

func seed(ctx context.Context, path, url string, stdout io.Writer, d deps) error {
	source, err := history.Open(path)
	if err != nil {
		return err
	}
	records, err := source.Load(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("%s contains no records", path)
	}

	w, closeFn, err := d.openWriter(ctx, url)
	if err != nil {
		return err
	}
	defer closeFn()

	n, err := w.Upsert(ctx, records)
	if err != nil {
		return fmt.Errorf("seeded %d of %d records: %w", n, len(records), err)
	}
	fmt.Fprintf(stdout, "seeded %d records (%d-%d)\n", n, records[0].Year, records[len(records)-1].Year)
	return nil
}
