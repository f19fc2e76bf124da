package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/gen-console/internal/logging"
	"github.com/kyleking/gen-console/internal/storage"
)

func ClearCommand() *cli.Command {
	return &cli.Command{
		Name:        "clear",
		Usage:       "Clear the local account store",
		Description: `Remove every account from the local store. This action requires confirmation.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Skip confirmation prompt"},
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

			return runClearWithStorage(ctx, os.Stdout, os.Stdin, cmd.Bool("force"), repo)
		},
	}
}

func runClearWithStorage(ctx context.Context, out io.Writer, in io.Reader, force bool, repo storage.Repository) error {
	stats, err := repo.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get statistics: %w", err)
	}

	if stats.TotalAccounts == 0 {
		fmt.Fprintln(out, "Account store is already empty.")
		return nil
	}

	fmt.Fprintf(out, "This will delete:\n")
	fmt.Fprintf(out, "  • %d accounts (%d enabled)\n", stats.TotalAccounts, stats.EnabledAccounts)
	fmt.Fprintf(out, "  • %.2f MB of data\n", stats.DatabaseSizeMB)

	if !force {
		fmt.Fprintf(out, "\nAre you sure you want to clear all accounts? This action cannot be undone.\n")
		fmt.Fprintf(out, "Type 'yes' to confirm: ")

		response, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && response == "" {
			return fmt.Errorf("failed to read input: %w", err)
		}

		if strings.TrimSpace(strings.ToLower(response)) != "yes" {
			fmt.Fprintln(out, "Operation cancelled.")
			return nil
		}
	}

	if err := logging.Track("clear account store", func() error { return repo.Clear(ctx) }); err != nil {
		return fmt.Errorf("failed to clear database: %w", err)
	}

	logging.WithFields(map[string]interface{}{
		"accounts": stats.TotalAccounts,
		"enabled":  stats.EnabledAccounts,
	}).Info("account store cleared")

	fmt.Fprintln(out, "Account store cleared successfully.")

	return nil
}
