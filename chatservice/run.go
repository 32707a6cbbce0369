// Package chatservice boots the chat HTTP service: config, logging,
// store selection, component wiring and graceful shutdown.
package chatservice

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatforge/chatforge/internal/api"
	"github.com/chatforge/chatforge/internal/chat"
	"github.com/chatforge/chatforge/internal/config"
	"github.com/chatforge/chatforge/internal/conversation"
	"github.com/chatforge/chatforge/internal/convstore"
	"github.com/chatforge/chatforge/internal/convstore/postgres"
	"github.com/chatforge/chatforge/internal/convstore/sqlite"
	"github.com/chatforge/chatforge/internal/logger"
	"github.com/chatforge/chatforge/internal/memory"
	"github.com/chatforge/chatforge/internal/oracle"
	"github.com/chatforge/chatforge/internal/planner"
	"github.com/chatforge/chatforge/internal/search"
)

// Run starts the chat service HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("chat-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Str("oracle_model", cfg.OracleModel).
		Msg("Chat service starting")

	ctx, stop := newServerContext()
	defer stop()

	repo, err := newRepository(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Durable store unavailable")
		return err
	}
	// Warm the durable connection; failure is tolerated, turns fall back.
	if !repo.EnsureConnected(ctx) {
		log.Warn().Msg("Durable store not reachable at startup, serving from fallback")
	}

	router := buildRouter(cfg, repo, log)

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

// newRepository selects the durable backend by driver and wraps it with
// the fallback repository. Driver "none" runs fallback-only.
func newRepository(cfg *config.Config, log zerolog.Logger) (*conversation.Repository, error) {
	var durable convstore.Store
	switch cfg.DBDriver {
	case "postgres":
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		durable = postgres.New(db)
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		durable = sqlite.New(db)
	case "none":
		durable = nil
	}
	return conversation.NewRepository(durable, log), nil
}

// buildRouter wires the domain components into the HTTP router.
func buildRouter(cfg *config.Config, repo *conversation.Repository, log zerolog.Logger) http.Handler {
	memories := memory.NewStore(log)
	oracleClient := oracle.NewClient(cfg.OracleURL, cfg.OracleAPIKey, cfg.OracleModel)
	searcher := search.NewClient(cfg.SearchURL, cfg.SearchAPIKey, cfg.SearchMaxResults, log)
	pl := planner.New(oracleClient, searcher, log)
	turns := chat.NewService(repo, memories, pl, oracleClient, "", log)

	return api.NewRouter(turns, repo, memories, cfg.DefaultUserID, log)
}

// newHTTPServer builds the server. WriteTimeout stays unset: chat
// responses are long-lived streams and a write deadline would sever
// them mid-answer.
func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
