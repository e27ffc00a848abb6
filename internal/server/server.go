// Package server wires the configuration, session store, backend client and
// HTTP adapter into a running BFF server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	webAdapter "efakture/internal/adapters/web"
	"efakture/internal/ai"
	"efakture/internal/app"
	"efakture/internal/backend"
	"efakture/internal/config"
	"efakture/internal/db"
	"efakture/internal/session"
	"efakture/migrations"
)

const purgeInterval = 5 * time.Minute

// OpenStore returns the session store selected by cfg and a function that
// releases it. The postgres store applies migrations on open.
func OpenStore(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	switch cfg.Session.Store {
	case config.StorePostgres:
		pool, err := db.NewPool(ctx, cfg.Session.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("database: %w", err)
		}
		applied, err := migrations.Apply(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Printf("session database ready (%d new migrations)", len(applied))
		return session.NewPostgresStore(pool, cfg.Session.TTL), pool.Close, nil
	case config.StoreMemory, "":
		return session.NewMemoryStore(cfg.Session.TTL), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}
}

// NewBackend returns the backend client configured by cfg.
func NewBackend(cfg *config.Config) *backend.Client {
	return backend.New(cfg.Backend.URL,
		backend.WithCookieName(cfg.Backend.CookieName),
		backend.WithTimeout(cfg.Backend.Timeout),
	)
}

// NewService builds the ApplicationService over store. The draft assistant is
// enabled only when an OpenAI API key is configured.
func NewService(cfg *config.Config, store session.Store) app.ApplicationService {
	var drafts ai.DraftSuggester
	if cfg.AI.APIKey != "" {
		drafts = ai.NewDraftAssistant(cfg.AI.APIKey, cfg.AI.Model)
	} else {
		log.Println("Warning: OPENAI_API_KEY is not set; draft suggestions are disabled")
	}
	return app.NewAppService(NewBackend(cfg), store, drafts)
}

// Run serves the BFF until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	store, closeStore, err := OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	session.StartPurge(ctx, store, purgeInterval)

	handler, err := webAdapter.NewHandler(NewService(cfg, store), webAdapter.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		JWTSecret:      cfg.Server.JWTSecret,
		CookieSecure:   cfg.Server.CookieSecure,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server starting on :%s (backend %s, %s sessions)", cfg.Server.Port, cfg.Backend.URL, cfg.Session.Store)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
		log.Println("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
