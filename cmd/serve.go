package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"choicegraph/pkg/db"
	"choicegraph/services/story"
)

const shutdownTimeout = 5 * time.Second

// ServeCmd starts the HTTP API backed by Postgres.
type ServeCmd struct {
	Addr    string `help:"Listen address (overrides http.addr)"`
	Migrate bool   `negatable:"" default:"true" help:"Create missing tables on startup"`
}

// Run executes the serve command.
func (c *ServeCmd) Run(g *Globals) error {
	cfg := g.Config
	if cfg.DatabaseURL == "" {
		return errors.New("database.url is not set (config file or CHOICEGRAPH_DATABASE_URL)")
	}
	addr := cfg.HTTP.Addr
	if c.Addr != "" {
		addr = c.Addr
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if c.Migrate {
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
	}

	svc, err := story.NewService(pool, g.Logger)
	if err != nil {
		return fmt.Errorf("failed to create story service: %w", err)
	}
	defer svc.Close()
	svc.AutoSave = cfg.AutoSave

	srv := &http.Server{
		Addr:    addr,
		Handler: newRouter(svc, cfg.HTTP.AllowedOrigins, g.Out),
	}

	serverErrors := make(chan error, 1)
	go func() {
		g.Logger.Info("Starting server", "addr", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		g.Logger.Info("Shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			g.Logger.Error("Could not stop server gracefully", "error", err)
			srv.Close()
		}
	}
	return nil
}

// newRouter mounts the story API under /api/v1 and wraps it with CORS and
// an access log.
func newRouter(svc *story.Service, origins []string, accessLog io.Writer) http.Handler {
	mainRouter := mux.NewRouter()
	apiRouter := mainRouter.PathPrefix("/api/v1").Subrouter()
	svc.LoadRoutes(apiRouter)

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.AllowCredentials(),
	)(mainRouter)

	return handlers.LoggingHandler(accessLog, corsHandler)
}
