// Command migrate applies or reverts the database schema.
//
//	migrate up
//	migrate down [steps]
//	migrate version
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/spendtrack/internal/config"
	"github.com/MrJamesThe3rd/spendtrack/internal/database"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("migrate failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	_ = godotenv.Load()

	if len(args) == 0 {
		return errors.New("usage: migrate up | down [steps] | version")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	connStr := cfg.ConnectionString()

	switch args[0] {
	case "up":
		if err := database.Migrate(connStr); err != nil {
			return err
		}
	case "down":
		steps := 1

		if len(args) > 1 {
			steps, err = strconv.Atoi(args[1])
			if err != nil || steps < 1 {
				return fmt.Errorf("steps must be a positive integer, got %q", args[1])
			}
		}

		if err := database.Rollback(connStr, steps); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}

	version, dirty, err := database.Version(connStr)
	if err != nil {
		return err
	}

	slog.Info("schema version", "version", version, "dirty", dirty)

	return nil
}
