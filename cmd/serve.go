package cmd

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/kyleking/gen-console/internal/codegen"
	"github.com/kyleking/gen-console/internal/config"
	"github.com/kyleking/gen-console/internal/errors"
	"github.com/kyleking/gen-console/internal/logging"
	"github.com/kyleking/gen-console/internal/server"
)

func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the admin backend locally",
		Description: `Serve GET/POST /gen/tables and the /user-center account API. Table metadata
is read live from the database URL in each request; accounts are kept in the
local DuckDB store; generated code is written under --output-dir.

A .env file in the working directory is loaded first when present.`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Usage: "Listen port (default from config)"},
			&cli.StringFlag{Name: "db-path", Usage: "Account store path"},
			&cli.StringFlag{Name: "output-dir", Usage: "Directory receiving generated code"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				return errors.Wrap(err, errors.ErrTypeConfig, "failed to load .env")
			}

			cfg, err := loadConfig(ctx, cmd)
			if err != nil {
				return err
			}

			if p := cmd.String("port"); p != "" {
				port, err := strconv.Atoi(p)
				if err != nil || port <= 0 || port > 65535 {
					return errors.NewValidationError("port", "must be between 1 and 65535")
				}

				cfg.Server.Port = port
			}

			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := logging.GetLogger()

	if !cfg.Debug.Enabled {
		gin.SetMode(gin.ReleaseMode)
	}

	repo, err := initializeStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	router := server.NewRouter(server.Options{
		Config:    cfg.Server,
		Accounts:  repo,
		Generator: codegen.New(config.ExpandPath(cfg.Server.OutputDir)),
		Logger:    logger,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx, server.New(cfg.Server, router), logger)
}
