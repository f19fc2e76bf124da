package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/gen-console/internal/api"
	"github.com/kyleking/gen-console/internal/config"
	"github.com/kyleking/gen-console/internal/errors"
	"github.com/kyleking/gen-console/internal/formatter"
	"github.com/kyleking/gen-console/internal/logging"
	"github.com/kyleking/gen-console/internal/prefs"
)

type configKey struct{}

// WithConfig stores an already loaded configuration on ctx; commands use it
// instead of reading files, environment and flags.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

func getConfigFromContext(ctx context.Context) *config.Config {
	cfg, _ := ctx.Value(configKey{}).(*config.Config)
	return cfg
}

// NewRootCommand assembles the gen-console command tree
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "gen-console",
		Usage: "Admin console for schema-driven code generation and account management",
		Description: `gen-console drives an admin backend from the terminal. The explorer screen
loads the tables of a database, lets you choose which tables and columns take
part in code generation and which page features each table gets, then asks the
backend to generate the code. The account screens create and edit back-office
accounts. 'gen-console serve' runs a compatible backend locally.`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "base-url", Usage: "Admin backend base URL"},
			&cli.StringFlag{Name: "log-level", Usage: "Log level (debug, info, warn, error)"},
			&cli.BoolFlag{Name: "verbose", Usage: "Enable verbose logging"},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug output"},
			&cli.BoolFlag{Name: "trace-http", Usage: "Dump HTTP traffic to stderr"},
		},
		Commands: []*cli.Command{
			ExploreCommand(),
			TablesCommand(),
			GenCommand(),
			AccountCommand(),
			ServeCommand(),
			StatsCommand(),
			ClearCommand(),
			ConfigCommand(),
		},
	}
}

// Execute runs the CLI and prints failures with their suggestions
func Execute(ctx context.Context, args []string) error {
	err := NewRootCommand().Run(ctx, args)
	if err != nil {
		logging.WithError(err).Debug("command failed")
		fmt.Fprintln(os.Stderr, errors.Describe(err))
	}

	return err
}

// loadConfig returns the configuration injected on ctx or, failing that,
// loads it with the command-line overrides and initialises logging.
func loadConfig(ctx context.Context, cmd *cli.Command) (*config.Config, error) {
	if cfg := getConfigFromContext(ctx); cfg != nil {
		return cfg, nil
	}

	overrides := map[string]interface{}{}

	for _, name := range []string{"base-url", "log-level", "db-path", "output-dir"} {
		if v := cmd.String(name); v != "" {
			overrides[name] = v
		}
	}

	for _, name := range []string{"verbose", "debug", "trace-http"} {
		if cmd.Bool(name) {
			overrides[name] = true
		}
	}

	cfg, err := config.LoadConfigWithOverrides(overrides)
	if err != nil {
		logging.SetupFallbackLogger()
		return nil, errors.Wrap(err, errors.ErrTypeConfig, "failed to load configuration").
			WithSuggestion("Run 'gen-console config' to inspect the active configuration")
	}

	cfg.ExpandAllPaths()

	logCfg := cfg.Logging
	if cfg.Debug.Enabled || cfg.Debug.Verbose {
		logCfg.Level = "debug"
	}

	if err := logging.InitializeLogger(logCfg); err != nil {
		logging.SetupFallbackLogger()
		return nil, errors.Wrap(err, errors.ErrTypeConfig, "failed to initialize logging")
	}

	return cfg, nil
}

// session bundles what the interactive screens need
type session struct {
	client    api.Client
	prefs     prefs.Store
	logger    *logging.Logger
	out       io.Writer
	formatter *formatter.Formatter
	progress  *progress
}

func newSession(cfg *config.Config, out io.Writer) (*session, error) {
	logger := logging.GetLogger()

	client, err := api.NewClient(api.Options{
		BaseURL:   cfg.API.BaseURL,
		Token:     cfg.API.Token,
		Timeout:   config.Duration(cfg.API.Timeout),
		TraceHTTP: cfg.API.TraceHTTP,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	store, err := prefs.NewFileStore(config.ExpandPath(cfg.Preferences.Directory))
	if err != nil {
		return nil, err
	}

	return &session{
		client:    client,
		prefs:     store,
		logger:    logger,
		out:       out,
		formatter: formatter.NewFormatter(),
		progress:  newProgress(os.Stderr, !cfg.Debug.Verbose),
	}, nil
}

func (s *session) printf(format string, args ...interface{}) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *session) println(lines ...string) {
	fmt.Fprintln(s.out, strings.Join(lines, "\n"))
}
