package cmd

import (
	"context"
	"net/url"
	"os"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/gen-console/internal/account"
	"github.com/kyleking/gen-console/internal/errors"
)

func AccountListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List accounts",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "limit", Value: "50", Usage: "Maximum number of accounts to show"},
			&cli.StringFlag{Name: "offset", Value: "0", Usage: "Number of accounts to skip"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			limit, err := parseCount("limit", cmd.String("limit"))
			if err != nil {
				return err
			}

			offset, err := parseCount("offset", cmd.String("offset"))
			if err != nil {
				return err
			}

			cfg, err := loadConfig(ctx, cmd)
			if err != nil {
				return err
			}

			s, err := newSession(cfg, os.Stdout)
			if err != nil {
				return err
			}

			return runAccountList(ctx, s, limit, offset)
		},
	}
}

func parseCount(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, errors.NewValidationError(name, "must be a non-negative integer")
	}

	return n, nil
}

func runAccountList(ctx context.Context, s *session, limit, offset int) error {
	query := url.Values{
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}

	var page account.Page
	if err := s.client.Get(ctx, "/user-center", query, &page); err != nil {
		return err
	}

	s.println(s.formatter.FormatAccounts(page.Items))

	if len(page.Items) > 0 {
		s.printf("\nShowing %d-%d of %d accounts\n", page.Offset+1, page.Offset+len(page.Items), page.Total)
	}

	return nil
}
