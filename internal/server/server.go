package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kyleking/gen-console/internal/config"
	"github.com/kyleking/gen-console/internal/introspect"
	"github.com/kyleking/gen-console/internal/logging"
	"github.com/kyleking/gen-console/internal/schema"
	"github.com/kyleking/gen-console/internal/storage"
)

const shutdownTimeout = 5 * time.Second

// Generator renders the code for a generation request
type Generator interface {
	Generate(ctx context.Context, req schema.GenRequest) (*schema.GenResult, error)
}

// Options wires the router to its collaborators
type Options struct {
	Config    config.ServerConfig
	Accounts  storage.Repository
	Open      introspect.Opener
	Generator Generator
	Logger    *logging.Logger
}

type handlers struct {
	cfg          config.ServerConfig
	accounts     storage.Repository
	open         introspect.Opener
	generator    Generator
	logger       *logging.Logger
	introspectTO time.Duration
}

// NewRouter builds the gin engine serving /gen/tables, /user-center and /ping
func NewRouter(opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger()
	}

	logger = logger.WithField("component", "server")

	open := opts.Open
	if open == nil {
		open = introspect.Open
	}

	introspectTO := config.Duration(opts.Config.IntrospectTime)
	if introspectTO <= 0 {
		introspectTO = 15 * time.Second
	}

	h := &handlers{
		cfg:          opts.Config,
		accounts:     opts.Accounts,
		open:         open,
		generator:    opts.Generator,
		logger:       logger,
		introspectTO: introspectTO,
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	if len(opts.Config.AllowedOrigins) > 0 {
		router.Use(corsMiddleware(opts.Config.AllowedOrigins))
	}

	router.GET("/ping", ping)

	api := router.Group("/", tokenAuth(opts.Config.Token))

	gen := api.Group("/gen")
	gen.GET("/tables", h.listTables)
	gen.POST("/tables", h.generate)

	users := api.Group("/user-center")
	users.GET("", h.listAccounts)
	users.GET("/:id", h.getAccount)
	users.POST("", h.createAccount)
	users.PUT("", h.updateAccount)
	users.DELETE("/:id", h.deleteAccount)

	return router
}

// New creates the HTTP server for the router
func New(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  config.Duration(cfg.ReadTimeout),
		WriteTimeout: config.Duration(cfg.WriteTimeout),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully
func Run(ctx context.Context, srv *http.Server, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.GetLogger()
	}

	errCh := make(chan error, 1)

	go func() {
		logger.WithField("addr", srv.Addr).Info("Server listening")

		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	return <-errCh
}

func ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}
