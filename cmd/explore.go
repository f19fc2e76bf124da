package cmd

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/gen-console/internal/errors"
	"github.com/kyleking/gen-console/internal/explorer"
	"github.com/kyleking/gen-console/internal/formatter"
)

const exploreHelp = `Commands:
  url <db-url>            remember a database url without loading it
  fetch [db-url]          load the tables of db-url (or the current url)
  show [long]             print the tables, with columns when "long"
  toggle <table> <flag>   click a feature tag (listPage, query, add, modalEdit, ...)
  select <key>...         add tables or columns ("users", "users.email") to the selection
  deselect <key>...       remove tables or columns from the selection
  field <key> <name>      rename the generated field of a column
  label <key> <text>      set the display label of a column
  gen                     generate code for the selection
  help                    show this help
  quit                    leave`

func ExploreCommand() *cli.Command {
	return &cli.Command{
		Name:  "explore",
		Usage: "Interactive schema explorer",
		Description: `Open the schema explorer. The last database URL is restored from the
preference store and loaded straight away. Type 'help' for the commands.`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(ctx, cmd)
			if err != nil {
				return err
			}

			s, err := newSession(cfg, os.Stdout)
			if err != nil {
				return err
			}

			return runExplore(ctx, s, os.Stdin)
		},
	}
}

func runExplore(ctx context.Context, s *session, in io.Reader) error {
	ex := newExplorer(s)
	defer ex.Close()

	fetched, err := ex.Mount(ctx)

	switch {
	case err != nil:
		s.println(errors.Describe(err))
	case fetched:
		if err := renderTree(s, ex, formatter.FormatShort); err != nil {
			return err
		}
	default:
		s.println("No database url stored yet. Use 'fetch <db-url>' to load one.")
	}

	scanner := bufio.NewScanner(in)

	for {
		s.printf("gen> ")

		if !scanner.Scan() {
			s.println()
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		quit, err := exploreStep(ctx, s, ex, line)
		if err != nil {
			s.println(errors.Describe(err))
		}

		if quit {
			return nil
		}
	}
}

// exploreStep runs one REPL line and reports whether the session should end
func exploreStep(ctx context.Context, s *session, ex *explorer.Explorer, line string) (bool, error) {
	verb, rest, _ := strings.Cut(line, " ")
	verb = strings.ToLower(verb)
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	switch verb {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		s.println(exploreHelp)
	case "url":
		if rest == "" {
			s.println(ex.Form().DBURL)
			return false, nil
		}

		return false, ex.ChangeDBURL(rest)
	case "fetch", "load":
		dbURL := rest
		if dbURL == "" {
			dbURL = ex.Form().DBURL
		}

		if dbURL == "" {
			return false, errors.NewValidationError("dbUrl", "database url is required")
		}

		if err := loadTables(ctx, ex, dbURL); err != nil {
			return false, err
		}

		return false, renderTree(s, ex, formatter.FormatShort)
	case "show", "ls":
		format := formatter.FormatShort
		if len(args) > 0 {
			format = formatter.ParseFormat(args[0])
		}

		return false, renderTree(s, ex, format)
	case "toggle":
		if len(args) != 2 {
			return false, errors.NewValidationError("toggle", "usage: toggle <table> <flag>")
		}

		if err := toggle(ex, args[0]+":"+args[1]); err != nil {
			return false, err
		}

		tree, _, err := snapshotTree(ex)
		if err != nil {
			return false, err
		}

		row, _, _ := tree.Lookup(args[0])
		s.println(args[0] + "  " + s.formatter.FormatTags(row.Flags))
	case "select", "deselect":
		if len(args) == 0 {
			return false, errors.NewValidationError(verb, "usage: "+verb+" <key>...")
		}

		edits := genEdits{}
		if verb == "select" {
			edits.Select = args
		} else {
			edits.Deselect = args
		}

		return false, applyEdits(ex, edits)
	case "field", "label":
		key, value, ok := strings.Cut(rest, " ")
		if !ok || strings.TrimSpace(value) == "" {
			return false, errors.NewValidationError(verb, "usage: "+verb+" <key> <value>")
		}

		edit := key + "=" + strings.TrimSpace(value)
		if verb == "field" {
			return false, applyEdits(ex, genEdits{Fields: []string{edit}})
		}

		return false, applyEdits(ex, genEdits{Labels: []string{edit}})
	case "gen", "generate":
		res, err := ex.Generate(ctx)
		if err != nil {
			return false, err
		}

		s.println(s.formatter.FormatGenResult(res))
	default:
		return false, errors.NewValidationError("command", "unknown command "+verb).
			WithSuggestion("Type 'help' to list the commands")
	}

	return false, nil
}
