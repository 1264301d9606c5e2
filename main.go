// Package main is the storefront API server.
//
// main wires every layer together by hand: config, database, repositories,
// the WebSocket hub, services, handlers and routes. There are no package
// globals beyond the zap logger.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/pillarworks/storefront/config"
	"github.com/pillarworks/storefront/database"
	"github.com/pillarworks/storefront/middleware"
	"github.com/pillarworks/storefront/pkg"
	"github.com/pillarworks/storefront/pkg/logger"
	"github.com/pillarworks/storefront/pkg/ratelimit"
	"github.com/pillarworks/storefront/pkg/seed"
	"github.com/pillarworks/storefront/ws"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	maxRequestBody  = 1 << 20
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "storefront: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ─── 1. Config & logging ───
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck
	log = log.Named("main")
	log.Info("storefront starting", zap.String("version", version), zap.String("env", cfg.Env))

	pkg.SetHideInternalErrors(cfg.IsProduction())

	// ─── 2. Database ───
	db, err := database.New(cfg.Database.URL, database.Migrations())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// ─── 3. Repositories, hub, services ───
	repos := initRepositories(db.Conn)

	hub := ws.NewHub()
	go hub.Run()

	svcs, err := initServices(cfg, db, repos, hub, version)
	if err != nil {
		return err
	}
	defer svcs.Close()

	registerHubCallbacks(hub, svcs.Theme)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	created, err := svcs.Auth.EnsureAdmin(startupCtx, cfg.Admin.Email, cfg.Admin.Password)
	if err != nil {
		cancelStartup()
		return fmt.Errorf("failed to ensure admin account: %w", err)
	}
	if created {
		log.Info("admin account created", zap.String("email", cfg.Admin.Email))
	}

	if cfg.SeedOnStart {
		doc, err := seed.Default()
		if err != nil {
			cancelStartup()
			return fmt.Errorf("failed to load seed document: %w", err)
		}
		report, err := svcs.Seed.Apply(startupCtx, doc)
		if err != nil {
			cancelStartup()
			return fmt.Errorf("failed to seed database: %w", err)
		}
		log.Info("seed applied",
			zap.Int("pillars", report.Pillars),
			zap.Int("services", report.Services),
			zap.Int("faqs", report.Faqs),
			zap.Int("sections", report.Sections),
		)
	}
	cancelStartup()

	// ─── 4. Handlers & routes ───
	loginLimiter := ratelimit.New(cfg.RateLimit.Login, cfg.RateLimit.LoginWindow)
	defer loginLimiter.Close()
	globalLimiter := ratelimit.New(cfg.RateLimit.Global, cfg.RateLimit.GlobalWindow)
	defer globalLimiter.Close()

	h := initHandlers(svcs, loginLimiter, hub, cfg)

	mux := http.NewServeMux()
	initRoutes(mux, h, svcs.Auth, repos.User)

	// ─── 5. Middleware chain ───
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.Origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
	})

	var handler http.Handler = middleware.MaxBodySize(maxRequestBody, mux)
	handler = middleware.RateLimit(globalLimiter, isWebhook, handler)
	handler = corsHandler.Handler(handler)
	handler = middleware.SecurityHeaders(handler)
	handler = middleware.RequestLogger(handler)

	// ─── 6. HTTP server ───
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	svcs.Janitor.Start()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// ─── 7. Graceful shutdown ───
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Close sockets first so clients see the shutdown, then stop taking
	// requests, then let in-flight fulfilment finish.
	hub.Shutdown()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
	if err := svcs.Checkout.Drain(ctx); err != nil {
		log.Warn("order fulfilment did not finish", zap.Error(err))
	}
	svcs.Janitor.Stop()

	log.Info("server stopped")
	return nil
}

// isWebhook exempts payment provider callbacks from the global limiter.
func isWebhook(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/webhooks/")
}
