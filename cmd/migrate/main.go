package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"
	"github.com/safar/orderdesk/internal/config"
	"github.com/safar/orderdesk/internal/logging"
	"github.com/urfave/cli/v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Load config")
	}
	logging.Setup(cfg.Log)

	app := &cli.App{
		Name:  "migrate",
		Usage: "apply the orderdesk database schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "path",
				Usage:   "directory holding the migration files",
				Value:   cfg.Migrations.Path,
				EnvVars: []string{"MIGRATIONS_PATH"},
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "postgres connection string",
				Value:   cfg.Database.URL,
				EnvVars: []string{"DATABASE_URL"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply all pending migrations",
				Action: func(c *cli.Context) error {
					return run(c, func(m *migrate.Migrate) error { return m.Up() })
				},
			},
			{
				Name:  "down",
				Usage: "roll back migrations",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "steps", Value: 1, Usage: "number of migrations to roll back"},
				},
				Action: func(c *cli.Context) error {
					steps := c.Int("steps")
					if steps < 1 {
						return fmt.Errorf("steps must be positive, got %d", steps)
					}
					return run(c, func(m *migrate.Migrate) error { return m.Steps(-steps) })
				},
			},
			{
				Name:  "version",
				Usage: "print the current schema version",
				Action: func(c *cli.Context) error {
					return run(c, func(m *migrate.Migrate) error {
						version, dirty, err := m.Version()
						if errors.Is(err, migrate.ErrNilVersion) {
							fmt.Println("no migrations applied")
							return nil
						}
						if err != nil {
							return err
						}
						fmt.Printf("version %d (dirty: %t)\n", version, dirty)
						return nil
					})
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}

func run(c *cli.Context, fn func(*migrate.Migrate) error) error {
	m, err := migrate.New("file://"+c.String("path"), c.String("database-url"))
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			log.Warn().AnErr("source", srcErr).AnErr("database", dbErr).Msg("Close migrations")
		}
	}()

	err = fn(m)
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info().Str("command", c.Command.Name).Msg("No migrations to apply")
		return nil
	}
	if err != nil {
		return err
	}

	log.Info().Str("command", c.Command.Name).Msg("Migration command completed")
	return nil
}
