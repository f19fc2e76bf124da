package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/gen-console/internal/account"
	"github.com/kyleking/gen-console/internal/formatter"
)

func AccountShowCommand() *cli.Command {
	return &cli.Command{
		Name:        "show",
		Usage:       "Display a single account",
		Description: `Show every stored field of an account. Passwords are never returned by the backend.`,
		ArgsUsage:   " <id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			if args.Len() != 1 {
				return fmt.Errorf("expected exactly 1 argument, got %d", args.Len())
			}

			cfg, err := loadConfig(ctx, cmd)
			if err != nil {
				return err
			}

			s, err := newSession(cfg, os.Stdout)
			if err != nil {
				return err
			}

			return runAccountShow(ctx, s, args.First())
		},
	}
}

func runAccountShow(ctx context.Context, s *session, id string) error {
	var rec account.Record
	if err := s.client.Get(ctx, "/user-center/"+url.PathEscape(id), nil, &rec); err != nil {
		return err
	}

	s.println(s.formatter.FormatAccount(rec, formatter.FormatLong))

	return nil
}
