package cmd

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/gen-console/internal/errors"
	"github.com/kyleking/gen-console/internal/explorer"
	"github.com/kyleking/gen-console/internal/schema"
)

// genEdits are the explorer edits applied before generating
type genEdits struct {
	Toggles  []string
	Select   []string
	Deselect []string
	Fields   []string
	Labels   []string
}

func GenCommand() *cli.Command {
	return &cli.Command{
		Name:  "gen",
		Usage: "Generate code for the tables of a database",
		Description: `Load the tables of a database, apply the given edits, and ask the backend
to generate code for the selected tables and columns.

Keys are "table" or "table.column". Examples:

  gen-console gen postgres://localhost/shop --deselect orders \
    --toggle users:pageEdit --field users.nick_name=nickname --label users.nick_name=Nickname`,
		ArgsUsage: " [db-url]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "toggle", Usage: "Toggle a table flag, as table:flag"},
			&cli.StringSliceFlag{Name: "select", Usage: "Add a table or column to the selection"},
			&cli.StringSliceFlag{Name: "deselect", Usage: "Remove a table or column from the selection"},
			&cli.StringSliceFlag{Name: "field", Usage: "Rename a column's generated field, as table.column=name"},
			&cli.StringSliceFlag{Name: "label", Usage: "Set a column's display label, as table.column=label"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Print the generation request instead of sending it"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(ctx, cmd)
			if err != nil {
				return err
			}

			s, err := newSession(cfg, os.Stdout)
			if err != nil {
				return err
			}

			edits := genEdits{
				Toggles:  cmd.StringSlice("toggle"),
				Select:   cmd.StringSlice("select"),
				Deselect: cmd.StringSlice("deselect"),
				Fields:   cmd.StringSlice("field"),
				Labels:   cmd.StringSlice("label"),
			}

			return runGen(ctx, s, cmd.Args().First(), edits, cmd.Bool("dry-run"))
		},
	}
}

func runGen(ctx context.Context, s *session, dbURL string, edits genEdits, dryRun bool) error {
	ex := newExplorer(s)
	defer ex.Close()

	if err := loadTables(ctx, ex, dbURL); err != nil {
		return err
	}

	if err := applyEdits(ex, edits); err != nil {
		return err
	}

	if dryRun {
		tree, sel, err := snapshotTree(ex)
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(schema.BuildGenRequest(tree, sel), "", "  ")
		if err != nil {
			return errors.Wrap(err, errors.ErrTypeInternal, "failed to encode generation request")
		}

		s.println(string(data))

		return nil
	}

	res, err := ex.Generate(ctx)
	if err != nil {
		return err
	}

	s.println(s.formatter.FormatGenResult(res))

	return nil
}

func applyEdits(ex *explorer.Explorer, edits genEdits) error {
	for _, t := range edits.Toggles {
		if err := toggle(ex, t); err != nil {
			return err
		}
	}

	for _, k := range edits.Select {
		key, err := ex.Resolve(k)
		if err != nil {
			return err
		}

		if err := ex.Select(key); err != nil {
			return err
		}
	}

	for _, k := range edits.Deselect {
		key, err := ex.Resolve(k)
		if err != nil {
			return err
		}

		if err := ex.Deselect(key); err != nil {
			return err
		}
	}

	for _, f := range edits.Fields {
		key, value, err := parseAssignment(ex, f)
		if err != nil {
			return err
		}

		if err := ex.SetField(key, value); err != nil {
			return err
		}
	}

	for _, l := range edits.Labels {
		key, value, err := parseAssignment(ex, l)
		if err != nil {
			return err
		}

		if err := ex.SetChinese(key, value); err != nil {
			return err
		}
	}

	return nil
}

// toggle applies "table:flag"
func toggle(ex *explorer.Explorer, spec string) error {
	table, name, ok := strings.Cut(spec, ":")
	if !ok || table == "" || name == "" {
		return errors.NewValidationError("toggle", "expected table:flag, got "+spec)
	}

	flag, err := schema.ParseFlag(name)
	if err != nil {
		return err
	}

	_, err = ex.Toggle(table, flag)

	return err
}

// parseAssignment splits "table.column=value" and resolves the key
func parseAssignment(ex *explorer.Explorer, spec string) (schema.RowKey, string, error) {
	target, value, ok := strings.Cut(spec, "=")
	if !ok {
		return schema.RowKey{}, "", errors.NewValidationError("assignment", "expected table.column=value, got "+spec)
	}

	key, err := ex.Resolve(strings.TrimSpace(target))
	if err != nil {
		return schema.RowKey{}, "", err
	}

	return key, value, nil
}
