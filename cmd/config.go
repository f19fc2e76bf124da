package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/gen-console/internal/config"
)

const redacted = "********"

func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:        "config",
		Usage:       "Display the active configuration",
		Description: `Show the current active configuration including all settings from file, environment variables, and command-line flags.`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(ctx, cmd)
			if err != nil {
				return err
			}

			return runConfig(os.Stdout, cfg)
		},
	}
}

func secret(s string) string {
	if s == "" {
		return "(none)"
	}

	return redacted
}

func runConfig(out io.Writer, cfg *config.Config) error {
	fmt.Fprintln(out, "====================")
	fmt.Fprintln(out, "Active Configuration:")
	fmt.Fprintf(out, "  File: %s\n", config.ConfigPath())

	fmt.Fprintln(out, "\nAPI:")
	fmt.Fprintf(out, "  Base URL: %s\n", cfg.API.BaseURL)
	fmt.Fprintf(out, "  Token: %s\n", secret(cfg.API.Token))
	fmt.Fprintf(out, "  Timeout: %s\n", cfg.API.Timeout)
	fmt.Fprintf(out, "  Trace HTTP: %t\n", cfg.API.TraceHTTP)

	fmt.Fprintln(out, "\nPreferences:")
	fmt.Fprintf(out, "  Directory: %s\n", cfg.Preferences.Directory)

	fmt.Fprintln(out, "\nServer:")
	fmt.Fprintf(out, "  Port: %d\n", cfg.Server.Port)
	fmt.Fprintf(out, "  Token: %s\n", secret(cfg.Server.Token))
	fmt.Fprintf(out, "  Output Dir: %s\n", cfg.Server.OutputDir)
	fmt.Fprintf(out, "  Ignore Fields: %v\n", cfg.Server.IgnoreFields)
	fmt.Fprintf(out, "  Allowed Origins: %v\n", cfg.Server.AllowedOrigins)
	fmt.Fprintf(out, "  Introspect Timeout: %s\n", cfg.Server.IntrospectTime)

	fmt.Fprintln(out, "\nDatabase:")
	fmt.Fprintf(out, "  Path: %s\n", cfg.Database.Path)
	fmt.Fprintf(out, "  Max Connections: %d\n", cfg.Database.MaxConnections)
	fmt.Fprintf(out, "  Query Timeout: %s\n", cfg.Database.QueryTimeout)

	fmt.Fprintln(out, "\nLogging:")
	fmt.Fprintf(out, "  Level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(out, "  Format: %s\n", cfg.Logging.Format)
	fmt.Fprintf(out, "  Output: %s\n", cfg.Logging.Output)

	if cfg.Logging.Output == "file" {
		fmt.Fprintf(out, "  File: %s\n", cfg.Logging.File)
	}

	fmt.Fprintln(out, "\nDebug:")
	fmt.Fprintf(out, "  Enabled: %t\n", cfg.Debug.Enabled)
	fmt.Fprintf(out, "  Verbose: %t\n", cfg.Debug.Verbose)

	if cfg.Debug.Enabled {
		masked := *cfg
		masked.API.Token = secret(cfg.API.Token)
		masked.Server.Token = secret(cfg.Server.Token)

		jsonData, err := json.MarshalIndent(masked, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}

		fmt.Fprintln(out, "\nRaw Configuration (JSON):")
		fmt.Fprintln(out, "==========================")
		fmt.Fprintln(out, string(jsonData))
	}

	return nil
}
