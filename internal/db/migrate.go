package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/motorlot/apiserver/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Direction selects which way Migrate moves the schema.
type Direction int

const (
	// Up applies every pending migration.
	Up Direction = iota
	// Down rolls back the most recent migration.
	Down
)

// MigrationSource returns the schema migrations compiled into the binary.
func MigrationSource() (source.Driver, error) {
	return iofs.New(migrations, "migrations")
}

// Migrate moves the schema of cfg.Database in the given direction. An empty
// dir uses the embedded migrations; otherwise dir is read from disk. Having
// nothing to apply is not an error.
func Migrate(cfg config.Config, dir string, direction Direction) error {
	migrator, err := newMigrator(cfg, dir)
	if err != nil {
		return fmt.Errorf("init migrator: %w", err)
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	switch direction {
	case Up:
		err = migrator.Up()
	case Down:
		err = migrator.Steps(-1)
	default:
		return fmt.Errorf("unknown migration direction %d", direction)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func newMigrator(cfg config.Config, dir string) (*migrate.Migrate, error) {
	if dir != "" {
		return migrate.New("file://"+dir, PostgresURL(cfg))
	}
	src, err := MigrationSource()
	if err != nil {
		return nil, err
	}
	return migrate.NewWithSourceInstance("iofs", src, PostgresURL(cfg))
}
