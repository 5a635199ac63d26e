package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"scrooge-bank/auth"
	"scrooge-bank/config"
	"scrooge-bank/database"
	"scrooge-bank/handlers"
	"scrooge-bank/logging"
	"scrooge-bank/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	log.Info("store ready", zap.String("driver", cfg.StoreDriver))

	bank := service.NewBank(store, cfg.Policy(), log)
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	hasher := auth.NewHasher(cfg.BcryptCost)

	if cfg.AdminEmail != "" {
		hash, err := hasher.HashSecret(cfg.AdminPassword)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		if err := bank.SeedAdmin(ctx, cfg.AdminName, cfg.AdminEmail, hash); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
	}

	h := handlers.NewHandler(bank, tokens, hasher, store, log)
	router := handlers.NewRouter(h, auth.NewAuthenticator(tokens, bank, log), handlers.RouterConfig{
		Prefix:             cfg.APIPrefix,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server is running", zap.String("addr", srv.Addr), zap.String("prefix", cfg.APIPrefix))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
