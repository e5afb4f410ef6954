// Command migrate applies the database schema migrations.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/oakmere/regsync/internal/infrastructure/config"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		dir        = flag.String("dir", "migrations", "migrations directory")
		down       = flag.Bool("down", false, "roll back one migration instead of migrating up")
	)
	flag.Parse()

	if err := run(*configPath, *dir, *down); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(configPath, dir string, down bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	m, err := migrate.New("file://"+dir, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("initializing migrator: %w", err)
	}
	defer m.Close()

	if down {
		err = m.Steps(-1)
	} else {
		err = m.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("database schema is up to date")
		return nil
	}
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	fmt.Printf("schema at version %d (dirty=%v)\n", version, dirty)
	return nil
}
