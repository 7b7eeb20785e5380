package cmd

import (
	"fmt"
	"strconv"

	"github.com/Ruscigno/marketsum/pkg/database"
	"github.com/Ruscigno/marketsum/pkg/errors"
	"github.com/spf13/cobra"
)

// migrateCmd applies or rolls back the schema
var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down N]",
	Short:     "Apply or roll back database migrations",
	ValidArgs: []string{"up", "down"},
	Args:      cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		direction, steps, err := parseMigrateArgs(args)
		if err != nil {
			return err
		}
		if appConfig.DatabaseURL == "" {
			return errors.NewInputError("DATABASE_URL is required")
		}

		db, err := database.NewDB(cmd.Context(), database.DefaultConfig(appConfig.DatabaseURL, appConfig.MigrationsPath), logger)
		if err != nil {
			return err
		}
		defer db.Close()

		if direction == "down" {
			return db.RollbackMigrations(steps)
		}
		return db.RunMigrations()
	},
}

func init() {
	RootCmd.AddCommand(migrateCmd)
}

// parseMigrateArgs accepts no args, "up", or "down N".
func parseMigrateArgs(args []string) (string, int, error) {
	if len(args) == 0 {
		return "up", 0, nil
	}
	switch args[0] {
	case "up":
		if len(args) > 1 {
			return "", 0, errors.NewInputError("migrate up takes no step count")
		}
		return "up", 0, nil
	case "down":
		steps := 1
		if len(args) == 2 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return "", 0, errors.NewInputError("step count must be a positive integer").WithDetails(args[1])
			}
			steps = n
		}
		return "down", steps, nil
	default:
		return "", 0, errors.NewInputError(fmt.Sprintf("unknown direction %q", args[0]))
	}
}
