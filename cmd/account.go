package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/gen-console/internal/account"
	"github.com/kyleking/gen-console/internal/errors"
	"github.com/kyleking/gen-console/internal/formatter"
)

// accountChanges holds the form fields given on the command line; nil
// entries keep the current value.
type accountChanges struct {
	Account  *string
	Password *string
	Name     *string
	Mobile   *string
	Email    *string
	Enabled  *bool
}

func (c accountChanges) apply(f *account.Form) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}

	set(&f.Account, c.Account)
	set(&f.Password, c.Password)
	set(&f.Name, c.Name)
	set(&f.Mobile, c.Mobile)
	set(&f.Email, c.Email)

	if c.Enabled != nil {
		f.Enabled = *c.Enabled
	}
}

func accountFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "account", Usage: "Login name"},
		&cli.StringFlag{Name: "password", Usage: "Password (required on every save)"},
		&cli.StringFlag{Name: "name", Usage: "Display name"},
		&cli.StringFlag{Name: "mobile", Usage: "Mobile number"},
		&cli.StringFlag{Name: "email", Usage: "Email address"},
		&cli.BoolFlag{Name: "enabled", Usage: "Enable the account"},
		&cli.BoolFlag{Name: "disabled", Usage: "Disable the account"},
	}
}

func changesFromFlags(cmd *cli.Command) (accountChanges, error) {
	var c accountChanges

	str := func(name string) *string {
		if !cmd.IsSet(name) {
			return nil
		}

		v := cmd.String(name)

		return &v
	}

	c.Account = str("account")
	c.Password = str("password")
	c.Name = str("name")
	c.Mobile = str("mobile")
	c.Email = str("email")

	enabled, disabled := cmd.Bool("enabled"), cmd.Bool("disabled")
	if enabled && disabled {
		return c, errors.NewValidationError("enabled", "--enabled and --disabled are mutually exclusive")
	}

	switch {
	case enabled:
		c.Enabled = &enabled
	case disabled:
		off := false
		c.Enabled = &off
	}

	return c, nil
}

func AccountCommand() *cli.Command {
	return &cli.Command{
		Name:  "account",
		Usage: "Manage back-office accounts",
		Commands: []*cli.Command{
			AccountListCommand(),
			AccountShowCommand(),
			{
				Name:    "create",
				Aliases: []string{"add"},
				Usage:   "Create an account",
				Description: `Open the account editor in create mode, fill it from the flags and save.
New accounts are enabled unless --disabled is given.`,
				Flags:  accountFlags(),
				Action: accountSaveAction(false),
			},
			{
				Name:        "edit",
				Usage:       "Edit an account",
				Description: `Load the account into the editor, apply the flags and save. The password is never loaded and must be given again.`,
				ArgsUsage:   " <id>",
				Flags:       accountFlags(),
				Action:      accountSaveAction(true),
			},
			{
				Name:      "delete",
				Usage:     "Delete an account",
				ArgsUsage: " <id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Skip confirmation prompt"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 1 {
						return fmt.Errorf("expected exactly 1 argument, got %d", cmd.Args().Len())
					}

					cfg, err := loadConfig(ctx, cmd)
					if err != nil {
						return err
					}

					s, err := newSession(cfg, os.Stdout)
					if err != nil {
						return err
					}

					return runAccountDelete(ctx, s, cmd.Args().First(), cmd.Bool("force"), os.Stdin)
				},
			},
		},
	}
}

func accountSaveAction(edit bool) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		id := ""
		if edit {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("expected exactly 1 argument, got %d", cmd.Args().Len())
			}

			id = cmd.Args().First()
		}

		changes, err := changesFromFlags(cmd)
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

		_, err = runAccountSave(ctx, s, id, changes)

		return err
	}
}

// runAccountSave drives the editor through one open, fill and submit cycle
func runAccountSave(ctx context.Context, s *session, id string, changes accountChanges) (*account.Record, error) {
	editor := account.NewEditor(account.Options{
		Client: s.client,
		Logger: s.logger,
		Notify: func(tip string) { s.println(tip) },
		OnStateChange: func(state account.State) {
			s.progress.Loading(state == account.Loading || state == account.Submitting)
		},
	})
	defer editor.Close()

	if err := editor.Open(ctx, id); err != nil {
		return nil, err
	}

	form := editor.Form()
	if id == "" {
		form.Enabled = true
	}

	changes.apply(&form)

	if err := editor.SetForm(form); err != nil {
		return nil, err
	}

	s.logger.Debug(s.formatter.FormatForm(editor.Title(), form))

	rec, err := editor.Submit(ctx)
	if err != nil {
		return nil, err
	}

	s.println(s.formatter.FormatAccount(*rec, formatter.FormatLong))

	return rec, nil
}

func runAccountDelete(ctx context.Context, s *session, id string, force bool, in io.Reader) error {
	path := "/user-center/" + url.PathEscape(id)

	var rec account.Record
	if err := s.client.Get(ctx, path, nil, &rec); err != nil {
		return err
	}

	if !force {
		s.printf("Delete account %s? Type 'yes' to confirm: ", s.formatter.FormatAccount(rec, formatter.FormatShort))

		response, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && response == "" {
			return errors.Wrap(err, errors.ErrTypeValidation, "failed to read confirmation")
		}

		if strings.TrimSpace(strings.ToLower(response)) != "yes" {
			s.println("Operation cancelled.")
			return nil
		}
	}

	if err := s.client.Delete(ctx, path, nil); err != nil {
		return err
	}

	s.printf("Deleted account %s\n", rec.Account)

	return nil
}
