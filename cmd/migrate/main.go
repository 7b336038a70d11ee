package main

import (
	"fmt"
	"os"

	"product-catalog/internal/config"
	"product-catalog/internal/database"

	"github.com/spf13/pflag"
)

const (
	databaseURLFlag = "database-url"
	logFormatFlag   = "log-format"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	databaseURL := flags.StringP(databaseURLFlag, "d", os.Getenv("DATABASE_URL"),
		"PostgreSQL connection URL (defaults to $DATABASE_URL)")
	logFormat := flags.String(logFormatFlag, "console", "log output format: json or console")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *databaseURL == "" {
		return fmt.Errorf("--%s flag: required", databaseURLFlag)
	}

	logger := config.NewLogger(config.LoggerConfig{Level: "info", Format: *logFormat})

	if err := database.Migrate(*databaseURL, logger); err != nil {
		return err
	}

	return nil
}
