// cmd/jobs/main.go
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

// jobsDB backs the schema commands that work on a raw connection.
var jobsDB *sql.DB

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func newAsOfFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "as-of",
		Usage: "Anchor date (YYYY-MM-DD), defaults to today",
	}
}

func initDB(c *cli.Context) error {
	db, err := sql.Open("pgx", c.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	jobsDB = db
	return nil
}

func closeDB(c *cli.Context) error {
	if jobsDB != nil {
		return jobsDB.Close()
	}
	return nil
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}

	app := &cli.App{
		Name:  "jobs",
		Usage: "Operational jobs for the order forecast engine",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Create or update the database schema",
				Flags:  []cli.Flag{newDBURLFlag()},
				Before: initDB,
				After:  closeDB,
				Action: runMigrate,
			},
			{
				Name:  "seed",
				Usage: "Seed master data and sales history from CSV files",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:    "data-dir",
						Usage:   "Directory containing seed CSV files",
						Value:   "./data/seeds",
						EnvVars: []string{"SEED_DATA_DIR"},
					},
				},
				Before: initDB,
				After:  closeDB,
				Action: runSeed,
			},
			{
				Name:   "evaluate",
				Usage:  "Score elapsed forecast snapshots against realized sales",
				Flags:  []cli.Flag{newAsOfFlag()},
				Action: runEvaluate,
			},
			{
				Name:   "learn",
				Usage:  "Run one parameter-learning cycle over all active products",
				Flags:  []cli.Flag{newAsOfFlag()},
				Action: runLearn,
			},
			{
				Name:  "archive",
				Usage: "Export old evaluated snapshots to object storage",
				Flags: []cli.Flag{
					newAsOfFlag(),
					&cli.BoolFlag{
						Name:  "prune",
						Usage: "Delete archived rows after a clean upload",
					},
				},
				Action: runArchive,
			},
			{
				Name:  "daemon",
				Usage: "Run evaluate, learn and archive on a daily schedule",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "run-now",
						Usage: "Run one cycle immediately on start",
					},
				},
				Action: runDaemon,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func parseAsOf(c *cli.Context) (time.Time, error) {
	raw := c.String("as-of")
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid as-of %q: %w", raw, err)
	}
	return t, nil
}
