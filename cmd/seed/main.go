// Command seed loads a product catalogue, its stock and membership tiers into
// the database. Without -file it loads a small sample catalogue.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"commerce-core/internal/config"
	"commerce-core/internal/database"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	file := flag.String("file", "", "path to a JSON catalogue (default: built-in sample)")
	dsn := flag.String("dsn", os.Getenv("DATABASE_URL"), "PostgreSQL connection string (default: DB_* variables)")
	migrate := flag.Bool("migrate", true, "apply the schema before seeding")
	flag.Parse()

	logger := config.NewLogger(config.LoggerConfig{Level: "info", Format: "console"})

	catalog := database.SampleCatalog()
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			return fmt.Errorf("failed to open catalogue: %w", err)
		}
		defer f.Close()
		if catalog, err = database.DecodeCatalog(f); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	dbCfg := config.DatabaseConfig{
		Host:           os.Getenv("DB_HOST"),
		User:           os.Getenv("DB_USER"),
		Password:       os.Getenv("DB_PASSWORD"),
		Database:       os.Getenv("DB_NAME"),
		Port:           5432,
		MaxConnections: 2,
		MinConnections: 1,
	}
	if port, err := strconv.Atoi(os.Getenv("DB_PORT")); err == nil {
		dbCfg.Port = port
	}
	connString := *dsn
	if connString == "" {
		connString = dbCfg.ConnectionString()
	}

	pool, err := database.NewPoolFromURL(ctx, connString, dbCfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	var dbName string
	if err := pool.QueryRow(ctx, "SELECT current_database()").Scan(&dbName); err != nil {
		return fmt.Errorf("failed to query database name: %w", err)
	}
	logger.Info().Str("database", dbName).Msg("connected")

	if *migrate {
		if err := database.Migrate(ctx, pool, logger); err != nil {
			return err
		}
	}

	return database.Seed(ctx, pool, catalog, logger)
}
