// Command migrate applies the embedded binder schema migrations.
//
// The connection string comes from -dsn, then BINDER_DB_DSN, then the
// same BINDER_DB_* variables the server reads, defaulting to a local
// binder/binder database.
package main

import (
	"embed"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"

	"github.com/JaimeStill/binder/internal/config"
	"github.com/JaimeStill/binder/pkg/database"
)

//go:embed migrations/*.sql
var migrations embed.FS

const envDSN = "BINDER_DB_DSN"

func main() {
	var (
		dsn     = flag.String("dsn", "", "database connection string")
		up      = flag.Bool("up", false, "apply all pending migrations")
		down    = flag.Bool("down", false, "revert all migrations")
		steps   = flag.Int("steps", 0, "apply N migrations (negative reverts)")
		version = flag.Bool("version", false, "print the current schema version")
		force   = flag.Int("force", -1, "mark the schema as version N without running it")
	)
	flag.Parse()

	url, err := resolveDSN(*dsn)
	if err != nil {
		log.Fatalf("resolve connection: %v", err)
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		log.Fatalf("open migration source: %v", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, url)
	if err != nil {
		log.Fatalf("create migrator: %v", err)
	}
	defer m.Close()

	if err := run(m, *up, *down, *steps, *version, *force, flagSet("force")); err != nil {
		log.Fatal(err)
	}
}

func run(m *migrate.Migrate, up, down bool, steps int, version bool, force int, forceSet bool) error {
	ignoreNoChange := func(err error) error {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("schema already current")
			return nil
		}
		return err
	}

	switch {
	case version:
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read version: %w", err)
		}
		fmt.Printf("version: %d, dirty: %v\n", v, dirty)
	case forceSet:
		if err := m.Force(force); err != nil {
			return fmt.Errorf("force version %d: %w", force, err)
		}
		fmt.Printf("forced to version %d\n", force)
	case up:
		if err := ignoreNoChange(m.Up()); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	case down:
		if err := ignoreNoChange(m.Down()); err != nil {
			return fmt.Errorf("revert migrations: %w", err)
		}
	case steps != 0:
		if err := ignoreNoChange(m.Steps(steps)); err != nil {
			return fmt.Errorf("step %d migrations: %w", steps, err)
		}
	default:
		fmt.Fprintln(os.Stderr, "usage: migrate [-dsn URL] -up | -down | -steps N | -version | -force N")
		flag.PrintDefaults()
		os.Exit(2)
	}
	return nil
}

func resolveDSN(flagDSN string) (string, error) {
	if flagDSN != "" {
		return flagDSN, nil
	}
	if v := os.Getenv(envDSN); v != "" {
		return v, nil
	}

	cfg := database.Config{Name: "binder", User: "binder", Password: "binder"}
	if err := cfg.Finalize(config.DatabaseEnv); err != nil {
		return "", err
	}
	return cfg.URL(), nil
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
