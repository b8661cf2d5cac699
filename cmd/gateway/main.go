// Package main is the entry point for the rosey-db gateway binary.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/grobertson/Rosey-Robot-sub001/internal/app"
	"github.com/grobertson/Rosey-Robot-sub001/internal/bus"
	"github.com/grobertson/Rosey-Robot-sub001/internal/config"
	"github.com/grobertson/Rosey-Robot-sub001/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "gateway",
		Short:         "Multi-tenant SQL access gateway for Rosey plugins",
		Long:          "Serves parameterized SQL requests from plugins over the message bus,\nenforcing per-tenant namespaces, statement whitelisting, and rate limits.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return config.LoadDotEnv(envFile)
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to a .env file loaded before the environment")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	return rootCmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply audit database migrations and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			if cfg.AuditDBPath == "" {
				return errors.New("AUDIT_DB_PATH must be set to run migrations")
			}
			db, err := store.OpenSQLite(cfg.AuditDBPath, 1)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := store.RunAuditMigrations(db); err != nil {
				return err
			}
			fmt.Println("audit migrations applied")
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	storeDB, err := store.OpenSQLite(cfg.StorePath, 0)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer storeDB.Close()

	deps := app.Deps{Cfg: cfg, StoreDB: storeDB, Logger: logger}
	if cfg.AuditDBPath != "" {
		adb, err := store.OpenSQLite(cfg.AuditDBPath, 1)
		if err != nil {
			return fmt.Errorf("open audit store: %w", err)
		}
		defer adb.Close()
		if err := store.RunAuditMigrations(adb); err != nil {
			return err
		}
		deps.AuditDB = adb
	}

	a, err := app.New(ctx, deps)
	if err != nil {
		return fmt.Errorf("wire application: %w", err)
	}

	nb, err := bus.ConnectNATS(cfg.NATSURL, "rosey-db-gateway", logger.With(slog.String("component", "bus")))
	if err != nil {
		return err
	}
	defer nb.Close()

	if err := a.Start(nb); err != nil {
		return err
	}
	logger.Info("gateway serving",
		slog.String("subject", cfg.SubjectPrefix+".*.execute"),
		slog.String("nats_url", cfg.NATSURL),
		slog.String("store", cfg.StorePath))

	adminSrv := &http.Server{
		Addr:              cfg.AdminListenAddr,
		Handler:           a.Admin.Router(cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(stop)
	g.Go(func() error {
		logger.Info("admin API listening", slog.String("addr", cfg.AdminListenAddr))
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin listener: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return adminSrv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	if err := a.Close(closeCtx); err != nil {
		logger.Warn("app shutdown", slog.String("error", err.Error()))
	}
	logger.Info("gateway stopped")
	return nil
}
