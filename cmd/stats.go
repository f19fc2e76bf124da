package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/gen-console/internal/storage"
)

func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:        "stats",
		Usage:       "Display account store statistics",
		Description: `Show statistics about the local account store used by 'gen-console serve'.`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db-path", Usage: "Account store path"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(ctx, cmd)
			if err != nil {
				return err
			}

			repo, err := initializeStorage(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer repo.Close()

			return runStatsWithStorage(ctx, os.Stdout, repo)
		},
	}
}

func runStatsWithStorage(ctx context.Context, out io.Writer, repo storage.Repository) error {
	stats, err := repo.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get statistics: %w", err)
	}

	fmt.Fprintf(out, "Account Store Statistics\n")
	fmt.Fprintf(out, "========================\n\n")

	fmt.Fprintf(out, "Total Accounts: %d\n", stats.TotalAccounts)
	fmt.Fprintf(out, "Enabled Accounts: %d\n", stats.EnabledAccounts)
	fmt.Fprintf(out, "Disabled Accounts: %d\n", stats.TotalAccounts-stats.EnabledAccounts)
	fmt.Fprintf(out, "Schema Version: %d\n", stats.SchemaVersion)
	fmt.Fprintf(out, "Database Size: %.2f MB\n", stats.DatabaseSizeMB)

	if len(stats.Migrations) > 0 {
		fmt.Fprintf(out, "\nMigrations:\n")

		for _, m := range stats.Migrations {
			applied := "pending"
			if m.Applied {
				applied = "applied " + m.AppliedAt.Format("2006-01-02 15:04:05")
			}

			fmt.Fprintf(out, "  %d. %s (%s)\n", m.Version, m.Description, applied)
		}
	}

	return nil
}
